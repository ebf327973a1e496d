package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/arcadenet/kaillera/internal/config"
	"github.com/arcadenet/kaillera/internal/constants"
)

// outboundQueueSize bounds the writer queue. Handlers block when it fills,
// which backpressures them against a slow kernel send buffer.
const outboundQueueSize = 256

// Outbound is one finished datagram bound for a peer.
type Outbound struct {
	Addr *net.UDPAddr
	Data []byte
}

// Server runs the two UDP listeners: the main socket carrying the framed
// protocol and the stateless control socket. One goroutine reads the main
// socket, one writes it; handlers never touch it directly.
type Server struct {
	cfg      config.Server
	log      *slog.Logger
	state    *State
	metrics  *Metrics
	handler  *Handler
	sessions *SessionManager
	out      chan Outbound
}

// New assembles a server from config.
func New(cfg config.Server, metrics *Metrics, log *slog.Logger) *Server {
	state := NewState()
	out := make(chan Outbound, outboundQueueSize)
	handler := NewHandler(cfg, state, out, metrics, log)
	sessions := NewSessionManager(handler, metrics, cfg.SessionTimeout, cfg.CleanupInterval, log)

	return &Server{
		cfg:      cfg,
		log:      log,
		state:    state,
		metrics:  metrics,
		handler:  handler,
		sessions: sessions,
		out:      out,
	}
}

// State exposes the store, mainly for tests.
func (s *Server) State() *State { return s.state }

// Run binds both sockets and serves until ctx is cancelled. A bind
// failure is returned immediately so the process can exit non-zero.
func (s *Server) Run(ctx context.Context) error {
	mainConn, err := listenUDP(s.cfg.MainAddr())
	if err != nil {
		return fmt.Errorf("binding main socket %s: %w", s.cfg.MainAddr(), err)
	}
	defer mainConn.Close()

	controlConn, err := listenUDP(s.cfg.ControlAddr())
	if err != nil {
		return fmt.Errorf("binding control socket %s: %w", s.cfg.ControlAddr(), err)
	}
	defer controlConn.Close()

	s.log.Info("server listening",
		"main_addr", s.cfg.MainAddr(),
		"control_addr", s.cfg.ControlAddr(),
		"server_name", s.cfg.ServerName)

	g, ctx := errgroup.WithContext(ctx)

	// Closing the sockets is the only way to unblock the readers.
	g.Go(func() error {
		<-ctx.Done()
		mainConn.Close()
		controlConn.Close()
		return nil
	})

	g.Go(func() error { return s.readLoop(ctx, mainConn) })
	g.Go(func() error { return s.writeLoop(ctx, mainConn) })
	g.Go(func() error { return s.controlLoop(ctx, controlConn) })
	g.Go(func() error { return s.sessions.Sweep(ctx) })

	return g.Wait()
}

func listenUDP(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", udpAddr)
}

func (s *Server) readLoop(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, constants.MaxDatagramSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading main socket: %w", err)
		}
		s.metrics.DatagramsIn.Inc()

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		s.sessions.Dispatch(ctx, addr, datagram)
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *net.UDPConn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ob := <-s.out:
			if _, err := conn.WriteToUDP(ob.Data, ob.Addr); err != nil {
				// The peer may be gone; the idle sweeper will evict it.
				s.log.Warn("send failed", "addr", ob.Addr.String(), "err", err)
				continue
			}
			s.metrics.DatagramsOut.Inc()
		}
	}
}

// controlLoop answers the stateless port-discovery handshake: HELLO with
// the main port, PING with PONG. Anything else is logged and ignored.
func (s *Server) controlLoop(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, 128)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading control socket: %w", err)
		}

		var reply []byte
		switch string(buf[:n]) {
		case constants.ControlHello:
			reply = []byte(constants.ControlHelloReply + strconv.Itoa(s.cfg.MainPort) + "\x00")
		case constants.ControlPing:
			reply = []byte(constants.ControlPong)
		default:
			s.log.Info("unknown control request", "addr", addr.String(), "len", n)
			continue
		}

		if _, err := conn.WriteToUDP(reply, addr); err != nil {
			s.log.Warn("control reply failed", "addr", addr.String(), "err", err)
		}
	}
}
