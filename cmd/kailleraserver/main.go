package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/arcadenet/kaillera/internal/config"
	"github.com/arcadenet/kaillera/internal/relay"
)

const ConfigPath = "config/kailleraserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load config FIRST to determine log level
	cfgPath := ConfigPath
	if p := os.Getenv("KAILLERA_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("kaillera server starting",
		"server_name", cfg.ServerName,
		"main_port", cfg.MainPort,
		"control_port", cfg.ControlPort,
		"log_level", cfg.LogLevel)

	registry := prometheus.NewRegistry()
	metrics := relay.NewMetrics(registry)
	server := relay.New(cfg, metrics, slog.Default())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return server.Run(ctx) })

	if cfg.MetricsAddress != "" {
		g.Go(func() error {
			return relay.ServeMetrics(ctx, cfg.MetricsAddress, registry, slog.Default())
		})
	}

	return g.Wait()
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
