package relay

import (
	"bytes"
	"log/slog"
	"net"
	"time"

	"github.com/arcadenet/kaillera/internal/config"
	"github.com/arcadenet/kaillera/internal/constants"
	"github.com/arcadenet/kaillera/internal/protocol"
)

// Handler turns admitted messages into state changes and outbound packets.
// It never touches the socket: every packet goes through the target
// client's sender and onto the writer queue.
//
// Error policy: malformed or out-of-context requests are logged and
// ignored, never answered. The protocol has no error frame, and stock
// clients treat any reply as authoritative.
type Handler struct {
	log     *slog.Logger
	cfg     config.Server
	state   *State
	out     chan<- Outbound
	metrics *Metrics
}

// NewHandler wires a handler to the state store and the writer queue.
func NewHandler(cfg config.Server, state *State, out chan<- Outbound, metrics *Metrics, log *slog.Logger) *Handler {
	return &Handler{
		log:     log,
		cfg:     cfg,
		state:   state,
		out:     out,
		metrics: metrics,
	}
}

// Handle dispatches one admitted message. A panicking handler must not
// take down the process or other sessions, so the recover sits here at
// the dispatch boundary.
func (h *Handler) Handle(addr *net.UDPAddr, msg protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("handler panic",
				"type", protocol.TypeName(msg.Type),
				"addr", addr.String(),
				"panic", r)
		}
	}()

	switch msg.Type {
	case protocol.TypeUserQuit:
		h.handleUserQuit(addr, msg.Data)
	case protocol.TypeUserLogin:
		h.handleUserLogin(addr, msg.Data)
	case protocol.TypeClientToServerAck:
		h.handleAck(addr)
	case protocol.TypeGlobalChat:
		h.handleGlobalChat(addr, msg.Data)
	case protocol.TypeGameChat:
		h.handleGameChat(addr, msg.Data)
	case protocol.TypeClientKeepAlive:
		// Liveness is tracked by the session manager on every datagram.
	case protocol.TypeCreateGame:
		h.handleCreateGame(addr, msg.Data)
	case protocol.TypeQuitGame:
		h.handleQuitGame(addr)
	case protocol.TypeJoinGame:
		h.handleJoinGame(addr, msg.Data)
	case protocol.TypeKickUser:
		h.handleKickUser(addr, msg.Data)
	case protocol.TypeStartGame:
		h.handleStartGame(addr)
	case protocol.TypeGameData:
		h.handleGameData(addr, msg.Data)
	case protocol.TypeGameCache:
		h.handleGameCache(addr, msg.Data)
	case protocol.TypeDropGame:
		h.handleDropGame(addr)
	case protocol.TypeReadyToPlay:
		h.handleReadyToPlay(addr)
	default:
		h.log.Warn("unknown message type",
			"type", protocol.TypeName(msg.Type),
			"code", msg.Type,
			"addr", addr.String())
	}
}

// send packs one message through the sender of the client at addr and
// queues the datagram. Unknown peers are skipped silently: the client may
// have quit between lookup and send.
func (h *Handler) send(addr *net.UDPAddr, typ byte, payload []byte) {
	datagram := h.state.PackFor(addr.String(), typ, payload)
	if datagram == nil {
		return
	}
	h.out <- Outbound{Addr: addr, Data: datagram}
}

// broadcast sends to every logged-in client.
func (h *Handler) broadcast(typ byte, payload []byte) {
	for _, addr := range h.state.AllClientAddrs() {
		h.send(addr, typ, payload)
	}
}

// broadcastGame sends to every seat of a room.
func (h *Handler) broadcastGame(players []GamePlayer, typ byte, payload []byte) {
	for _, p := range players {
		h.send(p.Addr, typ, payload)
	}
}

func (h *Handler) handleUserLogin(addr *net.UDPAddr, data []byte) {
	if h.cfg.MaxUsers > 0 && h.state.ClientCount() >= h.cfg.MaxUsers {
		h.log.Warn("server full, ignoring login", "addr", addr.String(), "max_users", h.cfg.MaxUsers)
		return
	}

	r := newPayloadReader(data)
	name := r.bytes()
	emulator := r.bytes()
	connType := r.u8()

	if len(name) > constants.MaxUsernameBytes {
		h.log.Warn("username too long, truncating", "len", len(name))
		name = name[:constants.MaxUsernameBytes]
	}
	if connType < constants.ConnTypeLAN || connType > constants.ConnTypeBad {
		h.log.Warn("connection type out of range, clamping", "conn_type", connType, "addr", addr.String())
		if connType < constants.ConnTypeLAN {
			connType = constants.ConnTypeLAN
		} else {
			connType = constants.ConnTypeBad
		}
	}

	client := NewClient(addr, name, emulator, connType, h.state.NextUserID())
	h.state.AddClient(client)
	h.metrics.Users.Set(float64(h.state.ClientCount()))

	h.log.Info("user logged in",
		"name", client.LogName(),
		"user_id", client.UserID,
		"emulator", string(emulator),
		"conn_type", connType,
		"addr", addr.String())

	h.send(addr, protocol.TypeServerToClientAck, ackPayload())
}

// handleAck runs the post-login ack exchange. Each round trip is an RTT
// sample; after the third the server reveals the lobby and announces the
// user.
func (h *Handler) handleAck(addr *net.UDPAddr) {
	var acks int
	ok := h.state.UpdateClient(addr.String(), func(c *Client) {
		c.RecordRTT(time.Since(c.LastAck))
		c.LastAck = time.Now()
		c.AckCount++
		acks = c.AckCount
	})
	if !ok {
		h.log.Warn("ack from unknown peer", "addr", addr.String())
		return
	}

	if acks < constants.AckRoundTrips {
		h.send(addr, protocol.TypeServerToClientAck, ackPayload())
		return
	}

	client, ok := h.state.GetClient(addr.String())
	if !ok {
		return
	}

	status := serverStatusPayload(addr.String(), h.state.AllClients(), h.state.AllGames())
	h.send(addr, protocol.TypeServerStatus, status)

	h.broadcast(protocol.TypeUserJoined, userJoinedPayload(client))

	h.send(addr, protocol.TypeServerInformation, serverInformationPayload(h.cfg.WelcomeMessage))

	h.log.Info("user joined lobby",
		"name", client.LogName(),
		"user_id", client.UserID,
		"ping", client.Ping)
}

func (h *Handler) handleGlobalChat(addr *net.UDPAddr, data []byte) {
	client, ok := h.state.GetClient(addr.String())
	if !ok {
		h.log.Warn("chat from unknown peer", "addr", addr.String())
		return
	}

	r := newPayloadReader(data)
	r.bytes() // client-supplied name, ignored
	message := r.bytes()

	h.log.Info("global chat", "name", client.LogName(), "message", string(message))
	h.broadcast(protocol.TypeGlobalChat, chatPayload(client.Name, message))
}

func (h *Handler) handleGameChat(addr *net.UDPAddr, data []byte) {
	client, ok := h.state.GetClient(addr.String())
	if !ok {
		h.log.Warn("game chat from unknown peer", "addr", addr.String())
		return
	}
	if client.GameID == 0 {
		h.log.Warn("game chat from client not in a game", "name", client.LogName())
		return
	}

	r := newPayloadReader(data)
	r.bytes()
	message := r.bytes()

	// A stray 0x11 in chat can be misread as a start-game byte by some
	// clients; such messages are dropped.
	if bytes.IndexByte(message, 0x11) >= 0 {
		h.log.Info("discarding game chat containing 0x11", "name", client.LogName())
		return
	}

	game, ok := h.state.GetGame(client.GameID)
	if !ok {
		return
	}

	h.log.Info("game chat", "game_id", game.ID, "name", client.LogName(), "message", string(message))
	h.broadcastGame(game.Players, protocol.TypeGameChat, chatPayload(client.Name, message))
}

func (h *Handler) handleUserQuit(addr *net.UDPAddr, data []byte) {
	r := newPayloadReader(data)
	r.bytes() // empty string
	r.u16()
	message := r.bytes()
	h.Disconnect(addr, message)
}

// Disconnect runs the full leave flow for a peer: out of its game, out of
// the store, announced to the lobby. Also used by the idle sweeper.
func (h *Handler) Disconnect(addr *net.UDPAddr, reason []byte) {
	if client, ok := h.state.GetClient(addr.String()); ok && client.GameID != 0 {
		h.leaveGame(addr)
	}

	client := h.state.RemoveClient(addr.String())
	if client == nil {
		h.log.Debug("unknown peer quit", "addr", addr.String())
		return
	}
	h.metrics.Users.Set(float64(h.state.ClientCount()))

	h.log.Info("user quit",
		"name", client.LogName(),
		"user_id", client.UserID,
		"reason", string(reason))

	h.broadcast(protocol.TypeUserQuit, userQuitPayload(client.Name, client.UserID, reason))
}
