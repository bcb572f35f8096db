package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/tracing"
)

// CacheHeader reports HIT or MISS on search responses when caching is on.
const CacheHeader = "X-Cache"

type SearchExecutor interface {
	ExecuteSnapshot(ctx context.Context, snap *corpus.Snapshot, query string, limit int, explain bool) (*executor.SearchResult, error)
}

// Corpus is the snapshot owner the handler reads from and reloads.
type Corpus interface {
	Current() *corpus.Snapshot
	Refresh(ctx context.Context) (*corpus.Snapshot, bool, error)
	LastError() error
}

type Cache interface {
	GetOrCompute(ctx context.Context, version, query string, limit int, computeFn func(context.Context) (*executor.SearchResult, error)) (*executor.SearchResult, bool, error)
	Invalidate(ctx context.Context) (int64, error)
	Stats() (hits, misses int64)
}

// Tracker receives analytics events.
type Tracker interface {
	Track(event any)
}

type Options struct {
	DefaultLimit  int
	MaxResults    int
	ScorePlaces   int
	ReloadTimeout time.Duration
}

type Handler struct {
	executor SearchExecutor
	corpus   Corpus
	cache    Cache
	tracker  Tracker
	metrics  *metrics.Metrics
	opts     Options
	logger   *slog.Logger
}

// New builds a Handler. cache, tracker, and m may be nil.
func New(exec SearchExecutor, c Corpus, cache Cache, tracker Tracker, m *metrics.Metrics, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 5
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = 30 * time.Second
	}
	return &Handler{
		executor: exec,
		corpus:   c,
		cache:    cache,
		tracker:  tracker,
		metrics:  m,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every search-service route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/corpus/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/corpus/stats", h.CorpusStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search answers GET ?q= and POST form field "query". A missing or
// punctuation-only query is valid and ranks every hotel equally.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetRequestID(r.Context())
	ctx, root := tracing.StartSpan(r.Context(), "search", requestID)
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "malformed form body"))
			return
		}
		if v := r.PostForm.Get("query"); v != "" {
			query = v
		}
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	explain, _ := strconv.ParseBool(r.URL.Query().Get("explain"))

	snap := h.corpus.Current()
	if snap == nil {
		h.metrics.ObserveSearch("error", false, 0, time.Since(start))
		h.writeError(w, apperrors.New(apperrors.ErrCorpusUnavailable, http.StatusServiceUnavailable,
			"corpus has not been loaded yet"))
		return
	}

	compute := func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.ExecuteSnapshot(ctx, snap, query, limit, explain)
	}
	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil && !explain {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, snap.Version, query, limit, compute)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			err = apperrors.New(apperrors.ErrTimeout, http.StatusServiceUnavailable, err.Error())
		}
	} else {
		result, err = compute(ctx)
	}
	root.SetAttr("cache_hit", cacheHit)
	root.End()
	latency := time.Since(start)

	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.metrics.ObserveSearch("error", cacheHit, 0, latency)
		h.writeError(w, err)
		return
	}

	resultType := "ok"
	if len(result.Terms) == 0 {
		resultType = "empty_query"
	}
	h.metrics.ObserveSearch(resultType, cacheHit, len(result.Results), latency)
	root.Log(log)
	log.Info("search completed",
		"query", query,
		"terms", len(result.Terms),
		"returned", len(result.Results),
		"corpus_version", result.CorpusVersion,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	if h.tracker != nil {
		ids := make([]string, len(result.Results))
		for i, doc := range result.Results {
			ids[i] = doc.DocID
		}
		h.tracker.Track(analytics.SearchEvent{
			Type:          analytics.EventSearch,
			Query:         query,
			Terms:         result.Terms,
			CorpusSize:    result.CorpusSize,
			CorpusVersion: result.CorpusVersion,
			ResultIDs:     ids,
			LatencyMs:     latency.Milliseconds(),
			CacheHit:      cacheHit,
			Timestamp:     time.Now().UTC(),
			RequestID:     requestID,
		})
	}

	if h.cache != nil && !explain {
		cacheHeader := "MISS"
		if cacheHit {
			cacheHeader = "HIT"
		}
		w.Header().Set(CacheHeader, cacheHeader)
	}
	display := *result
	display.Query = query
	display.Results = ranker.Round(result.Results, h.opts.ScorePlaces)
	h.writeJSON(w, http.StatusOK, &display)
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.opts.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"limit must be a positive integer, got %q", raw)
	}
	return min(n, h.opts.MaxResults), nil
}

// Reload forces a corpus refresh. The previous snapshot keeps serving if the
// reload fails.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	var (
		snap    *corpus.Snapshot
		changed bool
	)
	err := resilience.WithTimeout(r.Context(), h.opts.ReloadTimeout, "corpus-reload", func(ctx context.Context) error {
		var err error
		snap, changed, err = h.corpus.Refresh(ctx)
		return err
	})
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.New(apperrors.ErrTimeout, http.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		h.logger.Error("corpus reload failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"corpus":  snap.Summary(),
	})
}

func (h *Handler) CorpusStats(w http.ResponseWriter, r *http.Request) {
	snap := h.corpus.Current()
	if snap == nil {
		h.writeError(w, apperrors.New(apperrors.ErrCorpusUnavailable, http.StatusServiceUnavailable,
			"corpus has not been loaded yet"))
		return
	}
	body := map[string]any{"corpus": snap.Summary()}
	if err := h.corpus.LastError(); err != nil {
		body["last_reload_error"] = err.Error()
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrCacheDisabled, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status code. Messages of unclassified errors are
// not exposed to clients.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, message := apperrors.Public(err)
	h.writeJSON(w, status, map[string]string{"error": message})
}
