package relay

import (
	"net"

	"github.com/arcadenet/kaillera/internal/constants"
	"github.com/arcadenet/kaillera/internal/gamesync"
	"github.com/arcadenet/kaillera/internal/protocol"
)

func (h *Handler) handleCreateGame(addr *net.UDPAddr, data []byte) {
	client, ok := h.state.GetClient(addr.String())
	if !ok {
		h.log.Warn("create game from unknown peer", "addr", addr.String())
		return
	}
	if client.GameID != 0 {
		h.log.Warn("create game while already in a game",
			"name", client.LogName(), "game_id", client.GameID)
		return
	}

	r := newPayloadReader(data)
	r.bytes() // empty string
	gameName := r.bytes()
	if len(gameName) > constants.MaxGameNameBytes {
		h.log.Warn("game name too long, truncating", "len", len(gameName))
		gameName = gameName[:constants.MaxGameNameBytes]
	}

	game := NewGame(h.state.NextGameID(), gameName, client.Emulator, GamePlayer{
		Addr:     client.Addr,
		Name:     client.Name,
		UserID:   client.UserID,
		ConnType: client.ConnType,
	})
	h.state.AddGame(game)
	h.state.UpdateClient(addr.String(), func(c *Client) {
		c.GameID = game.ID
	})
	h.metrics.Games.Set(float64(h.state.GameCount()))

	h.log.Info("game created",
		"game_id", game.ID,
		"game_name", string(gameName),
		"owner", client.LogName())

	h.broadcast(protocol.TypeCreateGame, newGamePayload(client.Name, gameName, client.Emulator, game.ID))
	h.broadcast(protocol.TypeUpdateGameStatus, updateGameStatusPayload(game))
	h.send(addr, protocol.TypePlayerInformation, playerInformationPayload(addr.String(), game, h.pingOf))
	h.send(addr, protocol.TypeJoinGame, joinGameResponsePayload(client))
}

func (h *Handler) handleJoinGame(addr *net.UDPAddr, data []byte) {
	r := newPayloadReader(data)
	r.bytes() // empty string
	gameID := r.u32()

	client, ok := h.state.GetClient(addr.String())
	if !ok {
		h.log.Warn("join game from unknown peer", "addr", addr.String())
		return
	}
	if client.GameID != 0 {
		h.log.Warn("join game while already in a game",
			"name", client.LogName(), "game_id", gameID, "current_game_id", client.GameID)
		return
	}

	joined := false
	ok = h.state.UpdateGame(gameID, func(g *Game) {
		if g.Status != GameWaiting || g.Full() || g.PlayerIndex(addr.String()) >= 0 {
			return
		}
		g.Players = append(g.Players, GamePlayer{
			Addr:     client.Addr,
			Name:     client.Name,
			UserID:   client.UserID,
			ConnType: client.ConnType,
		})
		joined = true
	})
	if !ok {
		h.log.Warn("join for unknown game", "game_id", gameID, "name", client.LogName())
		return
	}
	if !joined {
		h.log.Warn("join rejected", "game_id", gameID, "name", client.LogName())
		return
	}

	h.state.UpdateClient(addr.String(), func(c *Client) {
		c.GameID = gameID
	})

	game, ok := h.state.GetGame(gameID)
	if !ok {
		return
	}

	h.log.Info("player joined game",
		"game_id", gameID,
		"name", client.LogName(),
		"players", len(game.Players))

	h.broadcast(protocol.TypeUpdateGameStatus, updateGameStatusPayload(game))
	h.send(addr, protocol.TypePlayerInformation, playerInformationPayload(addr.String(), game, h.pingOf))

	// Every seat, the joiner included, maintains its own player list and
	// gets told about the new player.
	h.broadcastGame(game.Players, protocol.TypeJoinGame, joinGameResponsePayload(client))
}

func (h *Handler) handleQuitGame(addr *net.UDPAddr) {
	h.leaveGame(addr)
}

// leaveGame removes the peer from its room. An owner leaving closes the
// room for everyone; anyone leaving a running game drops their seat first
// so the remaining players stay unblocked.
func (h *Handler) leaveGame(addr *net.UDPAddr) {
	client, ok := h.state.GetClient(addr.String())
	if !ok {
		h.log.Warn("quit game from unknown peer", "addr", addr.String())
		return
	}
	gameID := client.GameID
	if gameID == 0 {
		h.log.Warn("quit game from client not in a game", "name", client.LogName())
		return
	}

	h.dropSeat(gameID, addr)

	var remaining []GamePlayer
	ok = h.state.UpdateGame(gameID, func(g *Game) {
		// The engine keeps addressing seats by their start-time index, so
		// the leaver's seat is vacated rather than renumbered away.
		g.VacateSeat(addr.String())
		g.RemovePlayer(addr.String())
		remaining = append([]GamePlayer(nil), g.Players...)
	})
	h.state.UpdateClient(addr.String(), func(c *Client) {
		c.GameID = 0
		c.Status = StatusIdle
		c.Ready = false
	})
	if !ok {
		h.log.Warn("quit for unknown game", "game_id", gameID, "name", client.LogName())
		return
	}

	game, _ := h.state.GetGame(gameID)

	if game != nil && game.OwnerUserID == client.UserID {
		h.state.RemoveGame(gameID)
		h.metrics.Games.Set(float64(h.state.GameCount()))

		for _, p := range remaining {
			h.state.UpdateClient(p.Addr.String(), func(c *Client) {
				c.GameID = 0
				c.Status = StatusIdle
				c.Ready = false
			})
		}

		h.log.Info("owner quit, closing game", "game_id", gameID, "owner", client.LogName())

		h.broadcast(protocol.TypeCloseGame, closeGamePayload(gameID))
		h.broadcastGame(remaining, protocol.TypeQuitGame, quitGamePayload(client.Name, client.UserID))
		return
	}

	h.log.Info("player quit game", "game_id", gameID, "name", client.LogName())

	if game != nil {
		h.broadcast(protocol.TypeUpdateGameStatus, updateGameStatusPayload(game))
	}
	h.broadcastGame(remaining, protocol.TypeQuitGame, quitGamePayload(client.Name, client.UserID))
}

func (h *Handler) handleKickUser(addr *net.UDPAddr, data []byte) {
	r := newPayloadReader(data)
	r.bytes() // empty string
	targetID := r.u16()

	requester, ok := h.state.GetClient(addr.String())
	if !ok || requester.GameID == 0 {
		h.log.Warn("kick from peer not in a game", "addr", addr.String())
		return
	}

	game, ok := h.state.GetGame(requester.GameID)
	if !ok {
		return
	}
	if game.OwnerUserID != requester.UserID {
		h.log.Warn("non-owner attempted kick",
			"name", requester.LogName(), "game_id", game.ID, "target_user_id", targetID)
		return
	}

	target, ok := h.state.FindClientByUserID(targetID)
	if !ok {
		h.log.Warn("kick target not found", "target_user_id", targetID)
		return
	}
	if target.GameID != requester.GameID {
		h.log.Warn("kick target in different game",
			"target_user_id", targetID, "game_id", requester.GameID)
		return
	}

	h.log.Info("user kicked from game",
		"game_id", game.ID, "name", string(target.Name), "user_id", targetID)

	h.leaveGame(target.Addr)
}

func (h *Handler) handleStartGame(addr *net.UDPAddr) {
	client, ok := h.state.GetClient(addr.String())
	if !ok || client.GameID == 0 {
		h.log.Warn("start game from peer not in a game", "addr", addr.String())
		return
	}

	var players []GamePlayer
	started := false
	ok = h.state.UpdateGame(client.GameID, func(g *Game) {
		if g.PlayerIndex(addr.String()) < 0 {
			h.log.Warn("start game from peer not seated", "game_id", g.ID, "name", client.LogName())
			return
		}
		if g.OwnerUserID != client.UserID {
			h.log.Warn("non-owner attempted start",
				"game_id", g.ID, "name", client.LogName(), "owner_user_id", g.OwnerUserID)
			return
		}
		if g.Status != GameWaiting {
			h.log.Warn("start for game not in waiting state", "game_id", g.ID, "status", g.Status)
			return
		}
		g.Sync = gamesync.NewSync(g.Delays())
		g.Seats = append([]GamePlayer(nil), g.Players...)
		g.Status = GameNetSync
		g.ClearReady()
		players = append([]GamePlayer(nil), g.Players...)
		started = true
	})
	if !ok || !started {
		return
	}

	for _, p := range players {
		h.state.UpdateClient(p.Addr.String(), func(c *Client) {
			c.Status = StatusNetSync
			c.Ready = false
		})
	}

	game, _ := h.state.GetGame(client.GameID)
	if game != nil {
		h.broadcast(protocol.TypeUpdateGameStatus, updateGameStatusPayload(game))
	}

	h.log.Info("game starting", "game_id", client.GameID, "players", len(players))

	for i, p := range players {
		notif := startGamePayload(uint16(p.ConnType), uint8(i+1), uint8(len(players)))
		h.send(p.Addr, protocol.TypeStartGame, notif)
	}
}

func (h *Handler) handleReadyToPlay(addr *net.UDPAddr) {
	client, ok := h.state.GetClient(addr.String())
	if !ok || client.GameID == 0 {
		h.log.Warn("ready signal from peer not in a game", "addr", addr.String())
		return
	}

	var players []GamePlayer
	allReady := false
	ok = h.state.UpdateGame(client.GameID, func(g *Game) {
		if g.Status != GameNetSync {
			h.log.Warn("ready signal outside netsync", "game_id", g.ID, "status", g.Status)
			return
		}
		g.MarkReady(client.UserID)
		if g.AllReady() {
			g.Status = GamePlaying
			allReady = true
		}
		players = append([]GamePlayer(nil), g.Players...)
	})
	if !ok {
		return
	}

	h.state.UpdateClient(addr.String(), func(c *Client) {
		c.Ready = true
	})

	game, _ := h.state.GetGame(client.GameID)

	if !allReady {
		if game != nil {
			h.broadcast(protocol.TypeUpdateGameStatus, updateGameStatusPayload(game))
		}
		return
	}

	for _, p := range players {
		h.state.UpdateClient(p.Addr.String(), func(c *Client) {
			c.Status = StatusPlaying
		})
	}

	h.log.Info("all players ready, game playing",
		"game_id", client.GameID, "players", len(players))

	h.broadcastGame(players, protocol.TypeReadyToPlay, readyToPlayPayload())
	if game != nil {
		h.broadcast(protocol.TypeUpdateGameStatus, updateGameStatusPayload(game))
	}
}

// pingOf looks up a live client's current ping for player listings.
func (h *Handler) pingOf(addr string) uint32 {
	if c, ok := h.state.GetClient(addr); ok {
		return c.Ping
	}
	return 0
}
