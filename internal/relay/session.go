package relay

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcadenet/kaillera/internal/protocol"
)

// sessionInboxSize bounds the per-peer datagram queue. A peer flooding
// faster than its handlers drain loses datagrams, which UDP permits.
const sessionInboxSize = 64

// session is the per-peer receive pipeline: one goroutine draining the
// inbox so that all of a peer's messages are handled serially and in
// admitted-sequence order.
type session struct {
	addr     *net.UDPAddr
	gate     *protocol.Gate
	inbox    chan []byte
	cancel   context.CancelFunc
	lastSeen atomic.Int64
}

func (s *session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *session) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}

// SessionManager maps peer addresses to sessions and evicts peers that
// have gone quiet.
type SessionManager struct {
	log     *slog.Logger
	handler *Handler
	metrics *Metrics
	timeout time.Duration
	sweep   time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionManager creates a manager evicting sessions idle longer than
// timeout, checked every sweep interval.
func NewSessionManager(handler *Handler, metrics *Metrics, timeout, sweep time.Duration, log *slog.Logger) *SessionManager {
	return &SessionManager{
		log:      log,
		handler:  handler,
		metrics:  metrics,
		timeout:  timeout,
		sweep:    sweep,
		sessions: make(map[string]*session),
	}
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Dispatch routes one datagram to its peer's session, creating the
// session on first contact. Never blocks the socket reader: a full inbox
// drops the datagram.
func (m *SessionManager) Dispatch(ctx context.Context, addr *net.UDPAddr, datagram []byte) {
	key := addr.String()

	m.mu.Lock()
	s, ok := m.sessions[key]
	if !ok {
		sessionCtx, cancel := context.WithCancel(ctx)
		s = &session{
			addr:   addr,
			gate:   protocol.NewGate(),
			inbox:  make(chan []byte, sessionInboxSize),
			cancel: cancel,
		}
		m.sessions[key] = s
		m.metrics.Sessions.Set(float64(len(m.sessions)))
		go m.run(sessionCtx, s)
		m.log.Debug("session opened", "addr", key)
	}
	m.mu.Unlock()

	s.touch()
	select {
	case s.inbox <- datagram:
	default:
		m.log.Warn("session inbox full, dropping datagram", "addr", key)
	}
}

func (m *SessionManager) run(ctx context.Context, s *session) {
	for {
		select {
		case <-ctx.Done():
			return
		case datagram := <-s.inbox:
			m.process(s, datagram)
		}
	}
}

// process parses one datagram, de-duplicates, and hands each admitted
// message to the handler. Parse failures drop the datagram only; the
// session lives on.
func (m *SessionManager) process(s *session, datagram []byte) {
	msgs, err := protocol.ParseDatagram(datagram)
	if err != nil {
		m.metrics.MalformedFrames.Inc()
		m.log.Warn("malformed datagram", "addr", s.addr.String(), "err", err)
		return
	}

	admitted := s.gate.Filter(msgs)
	m.metrics.MessagesAdmitted.Add(float64(len(admitted)))
	m.metrics.MessagesDiscarded.Add(float64(len(msgs) - len(admitted)))

	for _, msg := range admitted {
		m.handler.Handle(s.addr, msg)
	}
}

// Sweep evicts idle sessions until ctx is cancelled. An evicted peer is
// disconnected exactly as if it had sent a quit with reason "timeout".
func (m *SessionManager) Sweep(ctx context.Context) error {
	ticker := time.NewTicker(m.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.evictIdle(now)
		}
	}
}

func (m *SessionManager) evictIdle(now time.Time) {
	var idle []*session
	m.mu.Lock()
	for key, s := range m.sessions {
		if s.idleFor(now) > m.timeout {
			delete(m.sessions, key)
			idle = append(idle, s)
		}
	}
	m.metrics.Sessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range idle {
		s.cancel()
		m.metrics.SessionsEvicted.Inc()
		m.log.Info("session timed out", "addr", s.addr.String(), "timeout", m.timeout)
		m.handler.Disconnect(s.addr, []byte("timeout"))
	}
}
