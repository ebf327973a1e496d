package constants

// Kaillera Protocol Constants
//
// This file contains all protocol-level constants for the Kaillera 0.83
// client protocol. The values are fixed by the stock clients; changing any
// of them breaks interoperability.

// Datagram framing
const (
	// MessageHeaderSize is the per-message header: seq (2B LE) + length (2B LE) + type (1B)
	MessageHeaderSize = 5

	// MaxBundledMessages is the redundancy window: every outbound datagram
	// carries up to this many of the most recent messages, newest first
	MaxBundledMessages = 3

	// MaxDatagramSize bounds a single UDP read on the main socket
	MaxDatagramSize = 4096
)

// Field limits
const (
	// MaxUsernameBytes is the username limit in bytes, not characters;
	// names are stored raw to preserve the client's encoding (CP949 etc.)
	MaxUsernameBytes = 31

	// MaxGameNameBytes is the game name limit in bytes
	MaxGameNameBytes = 127

	// MaxGamePlayers is the seat count of a game room
	MaxGamePlayers = 4
)

// Connection types double as per-frame delays in the sync engine
// (6=Bad, 5=Low, 4=Average, 3=Good, 2=Excellent, 1=LAN).
const (
	ConnTypeLAN = 1
	ConnTypeBad = 6
)

// Sync engine
const (
	// InputCacheSlots is the capacity of the per-player GameCache rings
	InputCacheSlots = 256
)

// Login handshake
const (
	// AckRoundTrips is the number of client acks collected before the
	// server reports status and announces the user to the lobby
	AckRoundTrips = 3

	// PingSampleWindow is the number of recent RTT samples averaged into
	// the advertised ping
	PingSampleWindow = 5
)

// Control port literals
const (
	ControlHello      = "HELLO0.83\x00"
	ControlHelloReply = "HELLOD00D" // followed by "<main_port>\x00"
	ControlPing       = "PING\x00"
	ControlPong       = "PONG\x00"
)
