package relay

import (
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/arcadenet/kaillera/internal/constants"
	"github.com/arcadenet/kaillera/internal/protocol"
)

// PlayerStatus is the lobby-visible state of a client. The values go on the
// wire in ServerStatus reports.
type PlayerStatus uint8

const (
	StatusPlaying PlayerStatus = 0
	StatusIdle    PlayerStatus = 1
	StatusNetSync PlayerStatus = 2
)

// Client is one logged-in user. Name and Emulator are raw bytes: stock
// clients send CP949/Shift-JIS names and expect them echoed verbatim.
//
// Fields are mutated only through State.UpdateClient, which holds the state
// write lock; the State getters hand out clones, never the live struct.
type Client struct {
	SessionID uuid.UUID
	Addr      *net.UDPAddr
	Name      []byte
	Emulator  []byte
	ConnType  uint8
	UserID    uint16
	Ping      uint32
	Status    PlayerStatus
	GameID    uint32 // 0 = not in a game
	Ready     bool   // start-of-game barrier flag

	// Login handshake: the ack exchange doubles as the RTT probe.
	AckCount int
	LastAck  time.Time
	rtts     []uint32

	Sender *protocol.Sender
}

// NewClient creates a client for a freshly logged-in peer. The caller has
// already truncated the name and validated the connection type.
func NewClient(addr *net.UDPAddr, name, emulator []byte, connType uint8, userID uint16) *Client {
	return &Client{
		SessionID: uuid.New(),
		Addr:      addr,
		Name:      name,
		Emulator:  emulator,
		ConnType:  connType,
		UserID:    userID,
		Status:    StatusIdle,
		LastAck:   time.Now(),
		Sender:    protocol.NewSender(),
	}
}

// RecordRTT folds one ack round trip into the advertised ping, a rolling
// average over the most recent samples.
func (c *Client) RecordRTT(rtt time.Duration) {
	ms := uint32(rtt.Milliseconds())
	if len(c.rtts) == constants.PingSampleWindow {
		c.rtts = c.rtts[1:]
	}
	c.rtts = append(c.rtts, ms)

	var sum uint64
	for _, s := range c.rtts {
		sum += uint64(s)
	}
	c.Ping = uint32(sum / uint64(len(c.rtts)))
}

// clone returns a shallow snapshot for reads outside the state lock. The
// Sender stays shared; it is only ever driven through State.PackFor, and
// rtts only through RecordRTT, both under the write lock.
func (c *Client) clone() *Client {
	cp := *c
	return &cp
}

// LogName renders the raw name bytes for logging only; the wire always
// carries the original bytes.
func (c *Client) LogName() string {
	return string(c.Name)
}
