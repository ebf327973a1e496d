package relay

import (
	"net"

	"github.com/arcadenet/kaillera/internal/constants"
	"github.com/arcadenet/kaillera/internal/gamesync"
)

const maxPlayers = constants.MaxGamePlayers

// GameStatus is the lobby-visible state of a game room.
type GameStatus uint8

const (
	GameWaiting GameStatus = 0
	GamePlaying GameStatus = 1
	GameNetSync GameStatus = 2
)

// GamePlayer is one seat in a game room. Seat order is fixed at join time
// and indexes directly into the sync engine.
type GamePlayer struct {
	Addr     *net.UDPAddr
	Name     []byte
	UserID   uint16
	ConnType uint8
}

// Game is one room. The owner is tracked by user id, not by display name,
// since names are client-supplied and spoofable. Sync is nil until the game
// starts and goes back to nil when every player has dropped.
type Game struct {
	ID          uint32
	Name        []byte
	Emulator    []byte
	OwnerName   []byte
	OwnerUserID uint16
	Status      GameStatus
	Players     []GamePlayer
	Sync        *gamesync.Sync

	// Seats is the seat order frozen when the engine is created: index i is
	// engine seat i for the whole run, even as Players shrinks. A seat whose
	// player left the room has a nil Addr. Nil while Sync is nil.
	Seats []GamePlayer

	ready map[uint16]bool
}

// NewGame creates a room in Waiting state with the owner seated first.
func NewGame(id uint32, name, emulator []byte, owner GamePlayer) *Game {
	return &Game{
		ID:          id,
		Name:        name,
		Emulator:    emulator,
		OwnerName:   owner.Name,
		OwnerUserID: owner.UserID,
		Status:      GameWaiting,
		Players:     []GamePlayer{owner},
		ready:       make(map[uint16]bool),
	}
}

// Full reports whether every seat is taken.
func (g *Game) Full() bool {
	return len(g.Players) >= constants.MaxGamePlayers
}

// PlayerIndex returns the seat of the peer at addr, or -1.
func (g *Game) PlayerIndex(addr string) int {
	for i, p := range g.Players {
		if p.Addr.String() == addr {
			return i
		}
	}
	return -1
}

// RemovePlayer takes the peer at addr out of the room, preserving the
// order of the remaining seats. Returns false if the peer was not seated.
func (g *Game) RemovePlayer(addr string) bool {
	i := g.PlayerIndex(addr)
	if i < 0 {
		return false
	}
	g.Players = append(g.Players[:i], g.Players[i+1:]...)
	return true
}

// SeatIndex returns the engine seat of the peer at addr, or -1. Vacated
// seats never match.
func (g *Game) SeatIndex(addr string) int {
	for i, p := range g.Seats {
		if p.Addr != nil && p.Addr.String() == addr {
			return i
		}
	}
	return -1
}

// VacateSeat detaches the peer at addr from its engine seat, keeping the
// seat numbering of everyone else intact.
func (g *Game) VacateSeat(addr string) {
	if i := g.SeatIndex(addr); i >= 0 {
		g.Seats[i].Addr = nil
	}
}

// Delays returns the per-seat frame delays, which are the connection types.
func (g *Game) Delays() []int {
	delays := make([]int, len(g.Players))
	for i, p := range g.Players {
		delays[i] = int(p.ConnType)
	}
	return delays
}

// ClearReady resets the start barrier.
func (g *Game) ClearReady() {
	g.ready = make(map[uint16]bool)
}

// MarkReady records a ready-to-play signal from a seated user.
func (g *Game) MarkReady(userID uint16) {
	g.ready[userID] = true
}

// AllReady reports whether every seated player has signalled ready.
func (g *Game) AllReady() bool {
	for _, p := range g.Players {
		if !g.ready[p.UserID] {
			return false
		}
	}
	return true
}
