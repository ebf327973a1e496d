package relay

import (
	"net"

	"github.com/arcadenet/kaillera/internal/gamesync"
	"github.com/arcadenet/kaillera/internal/protocol"
)

func (h *Handler) handleGameData(addr *net.UDPAddr, data []byte) {
	r := newPayloadReader(data)
	r.u8() // empty string
	length := r.u16()
	bundle := r.take(int(length))

	h.relayInput(addr, gamesync.DataPayload(bundle))
}

func (h *Handler) handleGameCache(addr *net.UDPAddr, data []byte) {
	r := newPayloadReader(data)
	r.u8() // empty string
	pos := r.u8()

	h.relayInput(addr, gamesync.CachePayload(pos))
}

// relayInput feeds one payload into the sender's game engine and delivers
// whatever bundles become ready. Engine errors drop the message; the game
// continues.
func (h *Handler) relayInput(addr *net.UDPAddr, in gamesync.Payload) {
	client, ok := h.state.GetClient(addr.String())
	if !ok || client.GameID == 0 {
		h.log.Warn("game data from peer not in a game", "addr", addr.String())
		return
	}

	var (
		outs    []gamesync.Output
		seats   []GamePlayer
		procErr error
		seated  = true
		running = true
	)
	ok = h.state.UpdateGame(client.GameID, func(g *Game) {
		if g.Sync == nil {
			running = false
			return
		}
		seat := g.SeatIndex(addr.String())
		if seat < 0 {
			seated = false
			return
		}
		outs, procErr = g.Sync.Process(seat, in)
		seats = append([]GamePlayer(nil), g.Seats...)
	})
	if !ok || !running || !seated {
		h.log.Warn("game data outside a running game",
			"name", client.LogName(), "game_id", client.GameID)
		return
	}
	if procErr != nil {
		h.log.Error("game sync error",
			"game_id", client.GameID, "name", client.LogName(), "err", procErr)
		return
	}

	h.deliver(seats, outs)
}

// deliver sends ready bundles to their seats, compressed bundles as cache
// references. Vacated seats have no one behind them to send to.
func (h *Handler) deliver(seats []GamePlayer, outs []gamesync.Output) {
	for _, out := range outs {
		if out.Player >= len(seats) || seats[out.Player].Addr == nil {
			continue
		}
		target := seats[out.Player].Addr
		if out.Payload.Cached {
			h.send(target, protocol.TypeGameCache, gameCachePayload(out.Payload.CachePos))
		} else {
			h.send(target, protocol.TypeGameData, gameDataPayload(out.Payload.Data))
		}
		h.metrics.GameDataRelayed.Inc()
	}
}

func (h *Handler) handleDropGame(addr *net.UDPAddr) {
	client, ok := h.state.GetClient(addr.String())
	if !ok || client.GameID == 0 {
		h.log.Warn("drop from peer not in a game", "addr", addr.String())
		return
	}
	h.dropSeat(client.GameID, addr)
}

// dropSeat takes the peer's seat out of the running game: the engine
// substitutes zero input for it, pending bundles unblock, and the room
// stays open. When the last seat drops, the engine is torn down and the
// room returns to waiting. No-op if no engine is live.
func (h *Handler) dropSeat(gameID uint32, addr *net.UDPAddr) {
	var (
		outs       []gamesync.Output
		players    []GamePlayer
		seats      []GamePlayer
		dropName   []byte
		seat       = -1
		allDropped bool
		status     []byte
		dropErr    error
	)
	ok := h.state.UpdateGame(gameID, func(g *Game) {
		if g.Sync == nil {
			return
		}
		seat = g.SeatIndex(addr.String())
		if seat < 0 {
			return
		}
		dropName = g.Seats[seat].Name

		outs, dropErr = g.Sync.MarkDropped(seat)
		if dropErr != nil {
			return
		}
		seats = append([]GamePlayer(nil), g.Seats...)

		if g.Sync.AllDropped() {
			allDropped = true
			g.Sync = nil
			g.Seats = nil
			g.Status = GameWaiting
			g.ClearReady()
			status = updateGameStatusPayload(g)
		}
		players = append([]GamePlayer(nil), g.Players...)
	})
	if !ok || seat < 0 {
		return
	}
	if dropErr != nil {
		h.log.Error("drop failed", "game_id", gameID, "seat", seat, "err", dropErr)
		return
	}

	h.state.UpdateClient(addr.String(), func(c *Client) {
		c.Status = StatusIdle
		c.Ready = false
	})

	h.log.Info("player dropped from game",
		"game_id", gameID, "name", string(dropName), "player", seat+1)

	h.broadcastGame(players, protocol.TypeDropGame, dropGamePayload(dropName, uint8(seat+1)))
	h.deliver(seats, outs)

	if allDropped {
		h.log.Info("game ended, room remains open", "game_id", gameID, "players", len(players))
		h.broadcast(protocol.TypeUpdateGameStatus, status)
	}
}
