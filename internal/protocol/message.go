package protocol

// Kaillera message type codes. One byte on the wire, after the per-message
// header. Directions and payload layouts are documented in the relay
// package next to the handlers.
const (
	TypeUserQuit           byte = 0x01
	TypeUserJoined         byte = 0x02
	TypeUserLogin          byte = 0x03
	TypeServerStatus       byte = 0x04
	TypeServerToClientAck  byte = 0x05
	TypeClientToServerAck  byte = 0x06
	TypeGlobalChat         byte = 0x07
	TypeGameChat           byte = 0x08
	TypeClientKeepAlive    byte = 0x09
	TypeCreateGame         byte = 0x0A
	TypeQuitGame           byte = 0x0B
	TypeJoinGame           byte = 0x0C
	TypePlayerInformation  byte = 0x0D
	TypeUpdateGameStatus   byte = 0x0E
	TypeKickUser           byte = 0x0F
	TypeCloseGame          byte = 0x10
	TypeStartGame          byte = 0x11
	TypeGameData           byte = 0x12
	TypeGameCache          byte = 0x13
	TypeDropGame           byte = 0x14
	TypeReadyToPlay        byte = 0x15
	TypeConnectionRejected byte = 0x16
	TypeServerInformation  byte = 0x17
)

// Message is one decoded protocol message from a datagram.
type Message struct {
	Seq  uint16
	Type byte
	Data []byte
}

// TypeName converts a message type code to a human-readable name for logs.
func TypeName(t byte) string {
	switch t {
	case TypeUserQuit:
		return "UserQuit"
	case TypeUserJoined:
		return "UserJoined"
	case TypeUserLogin:
		return "UserLogin"
	case TypeServerStatus:
		return "ServerStatus"
	case TypeServerToClientAck:
		return "ServerToClientACK"
	case TypeClientToServerAck:
		return "ClientToServerACK"
	case TypeGlobalChat:
		return "GlobalChat"
	case TypeGameChat:
		return "GameChat"
	case TypeClientKeepAlive:
		return "ClientKeepAlive"
	case TypeCreateGame:
		return "CreateGame"
	case TypeQuitGame:
		return "QuitGame"
	case TypeJoinGame:
		return "JoinGame"
	case TypePlayerInformation:
		return "PlayerInformation"
	case TypeUpdateGameStatus:
		return "UpdateGameStatus"
	case TypeKickUser:
		return "KickUser"
	case TypeCloseGame:
		return "CloseGame"
	case TypeStartGame:
		return "StartGame"
	case TypeGameData:
		return "GameData"
	case TypeGameCache:
		return "GameCache"
	case TypeDropGame:
		return "DropGame"
	case TypeReadyToPlay:
		return "ReadyToPlay"
	case TypeConnectionRejected:
		return "ConnectionRejected"
	case TypeServerInformation:
		return "ServerInformation"
	default:
		return "Unknown"
	}
}
