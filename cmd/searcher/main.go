// Command searcher serves BIM-ranked hotel search over HTTP.
//
// It loads the hotel description corpus, keeps it fresh in the background,
// answers GET/POST /api/v1/search, and optionally caches rankings in Redis and
// publishes search analytics to Kafka.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(os.Stdout, "searcher", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "corpus_dir", cfg.Corpus.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	loader := corpus.NewDirLoader(cfg.Corpus.Dir, cfg.Corpus.Extension, cfg.Corpus.LoadConcurrency)
	manager := corpus.NewManager(loader, m)

	var tracker handler.Tracker
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize, m)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		manager.OnPublish(func(prev, next *corpus.Snapshot) {
			summary := next.Summary()
			event := analytics.CorpusReloadEvent{
				Type:       analytics.EventCorpusReload,
				Version:    summary.Version,
				Documents:  summary.Documents,
				Vocabulary: summary.VocabularySize,
				Tokens:     summary.Tokens,
				Timestamp:  summary.LoadedAt,
			}
			if prev != nil {
				event.PreviousVersion = prev.Version
			}
			collector.Track(event)
		})
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	if _, _, err := manager.Refresh(ctx); err != nil {
		slog.Error("initial corpus load failed", "dir", cfg.Corpus.Dir, "error", err)
		os.Exit(1)
	}
	manager.Watch(ctx, cfg.Corpus.RefreshInterval)

	var (
		queryCache  handler.Cache
		redisClient *pkgredis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	checker := health.NewChecker()
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		snap := manager.Current()
		if snap == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot"}
		}
		msg := fmt.Sprintf("%d documents, version %s", snap.Stats.DocCount(), snap.Version)
		if err := manager.LastError(); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: msg + ": " + err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: msg}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, true))
	}

	h := handler.New(executor.New(manager), manager, queryCache, tracker, m, handler.Options{
		DefaultLimit:  cfg.Search.DefaultLimit,
		MaxResults:    cfg.Search.MaxResults,
		ScorePlaces:   cfg.Search.ScorePlaces,
		ReloadTimeout: cfg.Server.WriteTimeout,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter = ratelimit.New(cfg.Server.RateLimitPerMinute, time.Minute)
		go limiter.RunCleanup(ctx, 5*time.Minute)
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.Timeout, "/api/v1/corpus/reload")(chain)
	chain = middleware.RateLimit(limiter, 60)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"/health/live":  checker.LiveHandler(),
			"/health/ready": checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-shutdownDone
	slog.Info("search service stopped")
}
