package relay

import (
	"encoding/binary"
	"fmt"
)

// Payload readers and builders for the lobby messages. Strings on the wire
// are NUL-terminated raw bytes; the server never transcodes them. An
// "empty string" is a single 0x00. Integers are little-endian.

// payloadReader walks a message payload. Reads past the end yield zero
// values rather than errors: stock clients pad short and the reference
// servers tolerate it.
type payloadReader struct {
	buf []byte
}

func newPayloadReader(data []byte) *payloadReader {
	return &payloadReader{buf: data}
}

// bytes consumes up to the next NUL and returns the bytes before it.
func (r *payloadReader) bytes() []byte {
	for i, b := range r.buf {
		if b == 0 {
			s := r.buf[:i]
			r.buf = r.buf[i+1:]
			return s
		}
	}
	s := r.buf
	r.buf = nil
	return s
}

func (r *payloadReader) u8() uint8 {
	if len(r.buf) < 1 {
		return 0
	}
	v := r.buf[0]
	r.buf = r.buf[1:]
	return v
}

func (r *payloadReader) u16() uint16 {
	if len(r.buf) < 2 {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf)
	r.buf = r.buf[2:]
	return v
}

func (r *payloadReader) u32() uint32 {
	if len(r.buf) < 4 {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf)
	r.buf = r.buf[4:]
	return v
}

// take consumes exactly n bytes, or whatever remains.
func (r *payloadReader) take(n int) []byte {
	if n > len(r.buf) {
		n = len(r.buf)
	}
	v := r.buf[:n]
	r.buf = r.buf[n:]
	return v
}

func appendString(dst, s []byte) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

func appendEmptyString(dst []byte) []byte {
	return append(dst, 0)
}

// ackPayload is the ServerToClientACK body: empty string then the fixed
// 0,1,2,3 words the stock clients expect.
func ackPayload() []byte {
	data := appendEmptyString(nil)
	for i := uint32(0); i < 4; i++ {
		data = binary.LittleEndian.AppendUint32(data, i)
	}
	return data
}

// serverInformationPayload carries the welcome message, attributed to
// "Server" like a chat line.
func serverInformationPayload(welcome string) []byte {
	data := appendString(nil, []byte("Server"))
	return appendString(data, []byte(welcome))
}

// serverStatusPayload lists every other user and every game, as sent after
// the login ack exchange completes.
func serverStatusPayload(selfAddr string, clients []*Client, games []*Game) []byte {
	data := appendEmptyString(nil)

	others := 0
	for _, c := range clients {
		if c.Addr.String() != selfAddr {
			others++
		}
	}
	data = binary.LittleEndian.AppendUint32(data, uint32(others))
	data = binary.LittleEndian.AppendUint32(data, uint32(len(games)))

	for _, c := range clients {
		if c.Addr.String() == selfAddr {
			continue
		}
		data = appendString(data, c.Name)
		data = binary.LittleEndian.AppendUint32(data, c.Ping)
		data = append(data, byte(c.Status))
		data = binary.LittleEndian.AppendUint16(data, c.UserID)
		data = append(data, c.ConnType)
	}

	for _, g := range games {
		data = appendString(data, g.Name)
		data = binary.LittleEndian.AppendUint32(data, g.ID)
		data = appendString(data, g.Emulator)
		data = appendString(data, g.OwnerName)
		data = appendString(data, []byte(fmt.Sprintf("%d/%d", len(g.Players), maxPlayers)))
		data = append(data, byte(g.Status))
	}
	return data
}

// userJoinedPayload announces a freshly logged-in user to the lobby.
func userJoinedPayload(c *Client) []byte {
	data := appendString(nil, c.Name)
	data = binary.LittleEndian.AppendUint16(data, c.UserID)
	data = binary.LittleEndian.AppendUint32(data, c.Ping)
	return append(data, c.ConnType)
}

// userQuitPayload announces a user leaving the server, with their reason.
func userQuitPayload(name []byte, userID uint16, message []byte) []byte {
	data := appendString(nil, name)
	data = binary.LittleEndian.AppendUint16(data, userID)
	return appendString(data, message)
}

// chatPayload serves GlobalChat and GameChat notifications alike: the
// server fills in the name it knows the sender by.
func chatPayload(name, message []byte) []byte {
	data := appendString(nil, name)
	return appendString(data, message)
}

// newGamePayload announces a created room to the whole lobby.
func newGamePayload(ownerName, gameName, emulator []byte, gameID uint32) []byte {
	data := appendString(nil, ownerName)
	data = appendString(data, gameName)
	data = appendString(data, emulator)
	return binary.LittleEndian.AppendUint32(data, gameID)
}

// updateGameStatusPayload reports a room's status, seat count and capacity.
func updateGameStatusPayload(g *Game) []byte {
	data := appendEmptyString(nil)
	data = binary.LittleEndian.AppendUint32(data, g.ID)
	data = append(data, byte(g.Status))
	data = append(data, byte(len(g.Players)))
	return append(data, maxPlayers)
}

// joinGameResponsePayload describes one player to the members of a room.
func joinGameResponsePayload(c *Client) []byte {
	data := appendEmptyString(nil)
	data = binary.LittleEndian.AppendUint32(data, 0)
	data = appendString(data, c.Name)
	data = binary.LittleEndian.AppendUint32(data, c.Ping)
	data = binary.LittleEndian.AppendUint16(data, c.UserID)
	return append(data, c.ConnType)
}

// playerInformationPayload lists the other seats of a room to a joining
// player. Pings come from live client state, not the join-time snapshot.
func playerInformationPayload(selfAddr string, g *Game, pingOf func(addr string) uint32) []byte {
	data := appendEmptyString(nil)
	count := len(g.Players)
	if count > 0 {
		count--
	}
	data = binary.LittleEndian.AppendUint32(data, uint32(count))

	for _, p := range g.Players {
		if p.Addr.String() == selfAddr {
			continue
		}
		data = appendString(data, p.Name)
		data = binary.LittleEndian.AppendUint32(data, pingOf(p.Addr.String()))
		data = binary.LittleEndian.AppendUint16(data, p.UserID)
		data = append(data, p.ConnType)
	}
	return data
}

// quitGamePayload announces a player leaving a room.
func quitGamePayload(name []byte, userID uint16) []byte {
	data := appendString(nil, name)
	return binary.LittleEndian.AppendUint16(data, userID)
}

// closeGamePayload announces a room being torn down.
func closeGamePayload(gameID uint32) []byte {
	data := appendEmptyString(nil)
	return binary.LittleEndian.AppendUint32(data, gameID)
}

// startGamePayload is the per-player start notification.
func startGamePayload(frameDelay uint16, playerNum, totalPlayers uint8) []byte {
	data := appendEmptyString(nil)
	data = binary.LittleEndian.AppendUint16(data, frameDelay)
	data = append(data, playerNum)
	return append(data, totalPlayers)
}

// readyToPlayPayload is the all-ready broadcast body.
func readyToPlayPayload() []byte {
	return appendEmptyString(nil)
}

// dropGamePayload announces which seat dropped out of the running game.
func dropGamePayload(name []byte, playerNum uint8) []byte {
	data := appendString(nil, name)
	return append(data, playerNum)
}

// gameDataPayload wraps an input bundle.
func gameDataPayload(bundle []byte) []byte {
	data := appendEmptyString(nil)
	data = binary.LittleEndian.AppendUint16(data, uint16(len(bundle)))
	return append(data, bundle...)
}

// gameCachePayload wraps a cache reference.
func gameCachePayload(pos uint8) []byte {
	return []byte{0, pos}
}
