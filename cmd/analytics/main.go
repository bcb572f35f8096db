// Command analytics runs the search analytics service.
//
// It consumes search and corpus-reload events from Kafka, aggregates them in
// memory (totals, latency percentiles, top queries, top-ranked hotels),
// snapshots the aggregate to PostgreSQL, and serves GET /api/v1/analytics
// plus the persisted snapshot history at GET /api/v1/analytics/history.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8081, "HTTP port for the analytics API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(os.Stdout, "analytics", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", *port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	var (
		background sync.WaitGroup
		history    analytics.HistorySource
	)

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := aggregator.NewStore(db, 0)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare analytics schema", "error", err)
			os.Exit(1)
		}
		history = store
		if latest, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("could not restore analytics snapshot", "error", err)
		} else if latest != nil {
			agg.Restore(*latest)
			slog.Info("analytics restored from snapshot", "total_searches", latest.TotalSearches)
		}
		background.Add(1)
		go func() {
			defer background.Done()
			store.RunPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		}()
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: consumer.Stats().String(),
		}
	})
	if db != nil {
		checker.Register("postgres", health.PingCheck(db.Ping, true))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	mux := http.NewServeMux()
	statsHandler := analytics.NewHandler(agg, history)
	mux.HandleFunc("GET /api/v1/analytics", statsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", statsHandler.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	background.Wait()
	slog.Info("analytics service stopped")
}
