package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "hotelsearch:"

// computeTimeout bounds a shared computation, which runs detached from the
// request that started it.
const computeTimeout = 10 * time.Second

// QueryCache stores ranked results in Redis. Keys include the corpus version,
// so a reload never serves rankings computed against an older corpus. Redis
// calls go through a circuit breaker; when it is open the cache is bypassed.
type QueryCache struct {
	client  *pkgredis.Client
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(client *pkgredis.Client, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client: client,
		ttl:    ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			OnStateChange: func(name string, _, to resilience.State) {
				m.SetBreakerState(name, int(to))
			},
		}),
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, version, query string, limit int) (*executor.SearchResult, bool) {
	key := BuildKey(version, query, limit)
	var (
		data  []byte
		found bool
	)
	err := c.breaker.Execute(func() error {
		var err error
		data, found, err = c.client.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	result.Query = query
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, version, query string, limit int, result *executor.SearchResult) {
	key := BuildKey(version, query, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or computes, stores, and returns a new
// one. Concurrent misses for the same key share one computation, which runs
// under its own deadline so a cancelled caller does not fail the others. The
// returned result always echoes the caller's raw query.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	version, query string,
	limit int,
	computeFn func(context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, version, query, limit); ok {
		return result, true, nil
	}
	key := BuildKey(version, query, limit)
	ch := c.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		result, err := computeFn(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, version, query, limit, result)
		return result, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return withQuery(res.Val.(*executor.SearchResult), query), false, nil
	}
}

// withQuery returns result with Query set to query, copying when the shared
// result came from a caller with different raw text.
func withQuery(result *executor.SearchResult, query string) *executor.SearchResult {
	if result.Query == query {
		return result
	}
	cp := *result
	cp.Query = query
	return &cp
}

func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Ping reports whether Redis is reachable.
func (c *QueryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// BuildKey derives the cache key. The query is normalized with the same
// tokenizer the scorer uses, keeping token order and repeats since both
// affect the score.
func BuildKey(version, query string, limit int) string {
	normalized := strings.Join(tokenizer.Tokenize(query), " ")
	raw := fmt.Sprintf("%s|%s|limit=%d", version, normalized, limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, version, hash[:16])
}
