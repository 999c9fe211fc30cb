package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/odin-mesh/routecore/internal/bridge/kafka"
	"github.com/odin-mesh/routecore/internal/bridge/nats"
	"github.com/odin-mesh/routecore/internal/config"
	"github.com/odin-mesh/routecore/internal/envelope"
	"github.com/odin-mesh/routecore/internal/logging"
	"github.com/odin-mesh/routecore/internal/metrics"
	"github.com/odin-mesh/routecore/internal/session"
	"github.com/odin-mesh/routecore/internal/sysmonitor"
	"github.com/odin-mesh/routecore/internal/transport"
)

func main() {
	if _, err := maxprocs.Set(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set GOMAXPROCS: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	metricsRegistry := metrics.NewRegistry()
	env := envelope.New()
	hub := session.NewHub(cfg.Session, cfg.RateLimit, metricsRegistry)

	monitor := sysmonitor.New(cfg.Resource, metricsRegistry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go monitor.Run(ctx)

	transportServer := transport.NewServer(cfg, logger, hub, env, metricsRegistry, monitor)
	if err := transportServer.Start(ctx); err != nil {
		logger.Fatal("transport start failed", zap.Error(err))
	}

	var natsBridge *nats.Bridge
	if cfg.NATS.Enabled {
		natsBridge, err = nats.Connect(cfg.NATS, logger, metricsRegistry)
		if err != nil {
			logger.Error("nats bridge connect failed", zap.Error(err))
		} else if err := natsBridge.Subscribe(env, hub); err != nil {
			logger.Error("nats bridge subscribe failed", zap.Error(err))
		}
	}

	var kafkaBridge *kafka.Bridge
	if cfg.Kafka.Enabled {
		kafkaBridge, err = kafka.New(cfg.Kafka, logger, metricsRegistry, env, hub)
		if err != nil {
			logger.Error("kafka bridge init failed", zap.Error(err))
		} else {
			kafkaBridge.Start()
		}
	}

	httpErrCh := make(chan error, 1)
	go func() {
		httpErrCh <- runHTTPServer(ctx, cfg, hub, metricsRegistry, logger)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
		stop()
	}

	transportServer.Stop()
	hub.Shutdown(context.Background())
	if kafkaBridge != nil {
		kafkaBridge.Stop()
	}
	if natsBridge != nil {
		natsBridge.Close()
	}
	logger.Info("routecore stopped")
}

func runHTTPServer(ctx context.Context, cfg config.Config, hub *session.Hub, metricsRegistry *metrics.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"clients":   hub.ClientCount(),
		})
	})

	mux.Handle(cfg.Metrics.Endpoint, metricsRegistry.Handler())

	httpServer := &http.Server{
		Addr:         cfg.Metrics.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics http server starting", zap.String("addr", cfg.Metrics.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics http server shutdown error", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
