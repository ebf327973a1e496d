package relay

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadenet/kaillera/internal/config"
	"github.com/arcadenet/kaillera/internal/protocol"
)

func newTestManager(timeout time.Duration) (*SessionManager, *testEnv) {
	e := &testEnv{state: NewState(), out: make(chan Outbound, 256)}
	metrics := NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.h = NewHandler(config.Default(), e.state, e.out, metrics, logger)
	return NewSessionManager(e.h, metrics, timeout, time.Millisecond, logger), e
}

func TestSessionManager_DispatchCreatesSessionAndHandles(t *testing.T) {
	m, e := newTestManager(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := testAddr(17000)

	// Client side of the wire: a sender producing properly framed,
	// sequenced datagrams.
	clientSender := protocol.NewSender()
	m.Dispatch(ctx, addr, clientSender.Pack(protocol.TypeUserLogin, loginPayload("player", 1)))

	require.Eventually(t, func() bool {
		_, ok := e.state.GetClient(addr.String())
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, m.Count())

	// A duplicate of the same datagram is de-duplicated, not re-handled.
	first, _ := e.state.GetClient(addr.String())
	m.Dispatch(ctx, addr, clientSender.Pack(protocol.TypeClientToServerAck, nil))
	require.Eventually(t, func() bool {
		c, ok := e.state.GetClient(addr.String())
		return ok && c.AckCount == 1
	}, time.Second, 5*time.Millisecond)

	again, _ := e.state.GetClient(addr.String())
	assert.Equal(t, first.SessionID, again.SessionID)
}

func TestSessionManager_EvictsIdlePeers(t *testing.T) {
	m, e := newTestManager(50 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quiet := testAddr(17010)
	witness := testAddr(17011)

	// Log both peers in directly; the sessions only track liveness.
	e.login(t, quiet, "quiet", 1)
	e.login(t, witness, "witness", 1)

	clientSender := protocol.NewSender()
	m.Dispatch(ctx, quiet, clientSender.Pack(protocol.TypeClientKeepAlive, nil))
	require.Equal(t, 1, m.Count())

	// Push the session past the idle deadline and sweep once.
	m.mu.Lock()
	s := m.sessions[quiet.String()]
	m.mu.Unlock()
	s.lastSeen.Store(time.Now().Add(-time.Minute).UnixNano())

	m.evictIdle(time.Now())

	assert.Equal(t, 0, m.Count())
	_, ok := e.state.GetClient(quiet.String())
	assert.False(t, ok, "evicted peer's client state must be gone")

	// The lobby hears a quit with the timeout reason.
	quits := onlyType(e.drain(t), protocol.TypeUserQuit)
	require.NotEmpty(t, quits)
	last := quits[len(quits)-1]
	r := newPayloadReader(last.data)
	assert.Equal(t, []byte("quiet"), r.bytes())
	r.u16()
	assert.Equal(t, []byte("timeout"), r.bytes())
}
