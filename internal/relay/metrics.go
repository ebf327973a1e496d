package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the relay.
type Metrics struct {
	DatagramsIn       prometheus.Counter
	DatagramsOut      prometheus.Counter
	MalformedFrames   prometheus.Counter
	MessagesAdmitted  prometheus.Counter
	MessagesDiscarded prometheus.Counter
	GameDataRelayed   prometheus.Counter
	SessionsEvicted   prometheus.Counter
	Sessions          prometheus.Gauge
	Users             prometheus.Gauge
	Games             prometheus.Gauge
}

// NewMetrics registers the relay collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DatagramsIn: factory.NewCounter(prometheus.CounterOpts{
			Name: "kaillera_datagrams_in_total",
			Help: "Datagrams read from the main socket.",
		}),
		DatagramsOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "kaillera_datagrams_out_total",
			Help: "Datagrams written to the main socket.",
		}),
		MalformedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "kaillera_malformed_frames_total",
			Help: "Datagrams dropped because they failed to parse.",
		}),
		MessagesAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "kaillera_messages_admitted_total",
			Help: "Messages passed to handlers after de-duplication.",
		}),
		MessagesDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "kaillera_messages_discarded_total",
			Help: "Redundancy copies and out-of-order messages dropped by the gate.",
		}),
		GameDataRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "kaillera_game_data_relayed_total",
			Help: "Input bundles and cache references sent to players.",
		}),
		SessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "kaillera_sessions_evicted_total",
			Help: "Sessions removed by the idle sweeper.",
		}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kaillera_sessions",
			Help: "Live peer sessions.",
		}),
		Users: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kaillera_users",
			Help: "Logged-in users.",
		}),
		Games: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kaillera_games",
			Help: "Open game rooms.",
		}),
	}
}

// ServeMetrics exposes reg on addr under /metrics until ctx is cancelled.
func ServeMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
