package relay

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is the in-process store of clients and games. Clients are indexed
// twice, peer address to session id and session id to client, mirroring how
// peers are identified on the socket versus inside handlers. All state dies
// with the process.
//
// Locking is whole-store: reads share, writes exclude. Rooms hold at most
// four players and handler critical sections are short, so finer
// granularity buys nothing.
type State struct {
	mu     sync.RWMutex
	byAddr map[string]uuid.UUID
	byID   map[uuid.UUID]*Client
	games  map[uint32]*Game

	nextUserID atomic.Uint32
	nextGameID atomic.Uint32
}

// NewState returns an empty store with id counters starting at 1.
func NewState() *State {
	return &State{
		byAddr: make(map[string]uuid.UUID),
		byID:   make(map[uuid.UUID]*Client),
		games:  make(map[uint32]*Game),
	}
}

// NextUserID allocates a user id. The u16 space can wrap within a long
// process lifetime, so 0 and ids still held by a logged-in client are
// skipped. The login cap keeps the population far below the id space.
func (s *State) NextUserID() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for {
		id := uint16(s.nextUserID.Add(1))
		if id == 0 || s.userIDInUse(id) {
			continue
		}
		return id
	}
}

func (s *State) userIDInUse(id uint16) bool {
	for _, c := range s.byID {
		if c.UserID == id {
			return true
		}
	}
	return false
}

// NextGameID allocates a game id. Ids are never reused within a process.
func (s *State) NextGameID() uint32 {
	return s.nextGameID.Add(1)
}

// AddClient registers a client under its peer address.
func (s *State) AddClient(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[c.SessionID] = c
	s.byAddr[c.Addr.String()] = c.SessionID
}

// RemoveClient deletes the client at addr and returns it, or nil.
func (s *State) RemoveClient(addr string) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byAddr[addr]
	if !ok {
		return nil
	}
	delete(s.byAddr, addr)
	c := s.byID[id]
	delete(s.byID, id)
	return c
}

// GetClient returns a snapshot of the client at addr. Handlers read the
// snapshot after the lock is gone, so the shared struct never escapes;
// mutations go through UpdateClient.
func (s *State) GetClient(addr string) (*Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byAddr[addr]
	if !ok {
		return nil, false
	}
	c, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return c.clone(), true
}

// UpdateClient runs fn on the client at addr under the write lock.
// Returns false if no client lives there.
func (s *State) UpdateClient(addr string, fn func(*Client)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byAddr[addr]
	if !ok {
		return false
	}
	c, ok := s.byID[id]
	if !ok {
		return false
	}
	fn(c)
	return true
}

// FindClientByUserID scans for the client with the given numeric id and
// returns a snapshot.
func (s *State) FindClientByUserID(userID uint16) (*Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.byID {
		if c.UserID == userID {
			return c.clone(), true
		}
	}
	return nil, false
}

// AllClientAddrs returns the peer addresses of every live client.
func (s *State) AllClientAddrs() []*net.UDPAddr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addrs := make([]*net.UDPAddr, 0, len(s.byID))
	for _, c := range s.byID {
		addrs = append(addrs, c.Addr)
	}
	return addrs
}

// AllClients returns snapshots of every live client.
func (s *State) AllClients() []*Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clients := make([]*Client, 0, len(s.byID))
	for _, c := range s.byID {
		clients = append(clients, c.clone())
	}
	return clients
}

// ClientCount returns the number of live clients.
func (s *State) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// AddGame registers a game room.
func (s *State) AddGame(g *Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = g
}

// GetGame returns the game with the given id.
func (s *State) GetGame(id uint32) (*Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	return g, ok
}

// RemoveGame deletes the game with the given id and returns it, or nil.
func (s *State) RemoveGame(id uint32) *Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.games[id]
	delete(s.games, id)
	return g
}

// UpdateGame runs fn on the game with the given id under the write lock;
// the sync engine is only ever touched inside fn. Returns false if the
// game does not exist.
func (s *State) UpdateGame(id uint32, fn func(*Game)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return false
	}
	fn(g)
	return true
}

// AllGames returns a snapshot slice of every game room.
func (s *State) AllGames() []*Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	games := make([]*Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, g)
	}
	return games
}

// GameCount returns the number of open rooms.
func (s *State) GameCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// PackFor serializes one outbound message through the sender of the client
// at addr, under the write lock so per-client sequence numbers stay
// serial. Returns nil if no client lives there.
func (s *State) PackFor(addr string, typ byte, payload []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byAddr[addr]
	if !ok {
		return nil
	}
	c, ok := s.byID[id]
	if !ok {
		return nil
	}
	return c.Sender.Pack(typ, payload)
}
