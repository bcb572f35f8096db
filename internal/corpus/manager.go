package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/indexer/stats"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// Snapshot is one fully built, immutable view of the corpus.
type Snapshot struct {
	Stats    *stats.CorpusStatistics
	Version  string
	LoadedAt time.Time
}

// Summary describes a snapshot for APIs and events.
type Summary struct {
	Version        string    `json:"version"`
	Documents      int       `json:"documents"`
	VocabularySize int       `json:"vocabulary_size"`
	Tokens         int       `json:"tokens"`
	LoadedAt       time.Time `json:"loaded_at"`
}

// Summary returns the snapshot's headline numbers.
func (s *Snapshot) Summary() Summary {
	return Summary{
		Version:        s.Version,
		Documents:      s.Stats.DocCount(),
		VocabularySize: s.Stats.VocabularySize(),
		Tokens:         s.Stats.TokenCount(),
		LoadedAt:       s.LoadedAt,
	}
}

// PublishFunc is called after a new snapshot has been published. prev is nil
// for the first publish.
type PublishFunc func(prev, next *Snapshot)

// Manager owns the current corpus snapshot. Readers call Current and never see
// a partially built snapshot; Refresh builds a new one off to the side and
// swaps it in.
type Manager struct {
	loader  Loader
	current atomic.Pointer[Snapshot]
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	lastErr   error
	onPublish []PublishFunc
}

// NewManager creates a Manager with no snapshot published yet.
func NewManager(loader Loader, m *metrics.Metrics) *Manager {
	return &Manager{
		loader:  loader,
		metrics: m,
		logger:  slog.Default().With("component", "corpus-manager"),
	}
}

// OnPublish registers fn to run after every successful publish.
func (m *Manager) OnPublish(fn PublishFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPublish = append(m.onPublish, fn)
}

// Current returns the published snapshot, or nil before the first successful
// Refresh.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// LastError returns the error of the most recent Refresh, or nil.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// refreshTimeout bounds one shared reload. It runs detached from the caller
// that started it, so callers that give up do not fail the others.
const refreshTimeout = 2 * time.Minute

// Refresh reloads the corpus and publishes a new snapshot if its content
// changed. Concurrent calls share one reload. On failure the previous
// snapshot stays published and the error is returned. A caller whose ctx ends
// first gets ctx.Err() while the shared reload carries on.
func (m *Manager) Refresh(ctx context.Context) (*Snapshot, bool, error) {
	type outcome struct {
		snap    *Snapshot
		changed bool
	}
	ch := m.group.DoChan("refresh", func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		snap, changed, err := m.refresh(shared)

		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		if err != nil {
			m.metrics.ObserveReload("failed")
		}
		return outcome{snap, changed}, err
	})

	select {
	case <-ctx.Done():
		return m.Current(), false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return m.Current(), false, res.Err
		}
		out := res.Val.(outcome)
		return out.snap, out.changed, nil
	}
}

func (m *Manager) refresh(ctx context.Context) (*Snapshot, bool, error) {
	start := time.Now()
	texts, err := m.loader.Load(ctx)
	if err != nil {
		m.logger.Error("corpus load failed", "error", err)
		return nil, false, fmt.Errorf("loading corpus: %w", err)
	}

	version := Fingerprint(texts)
	prev := m.current.Load()
	if prev != nil && prev.Version == version {
		m.metrics.ObserveReload("unchanged")
		m.logger.Debug("corpus unchanged", "version", version)
		return prev, false, nil
	}

	next := Build(texts, version)
	m.current.Store(next)

	summary := next.Summary()
	m.metrics.ObserveReload("published")
	m.metrics.SetCorpus(summary.Documents, summary.VocabularySize, summary.Tokens)
	m.logger.Info("corpus snapshot published",
		"version", version,
		"documents", summary.Documents,
		"vocabulary_size", summary.VocabularySize,
		"tokens", summary.Tokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	m.mu.Lock()
	hooks := append([]PublishFunc(nil), m.onPublish...)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn(prev, next)
	}
	return next, true, nil
}

// Watch calls Refresh every interval until ctx is cancelled. Failures are
// logged and the previous snapshot keeps serving.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				m.logger.Info("corpus watch stopping")
				return
			case <-ticker.C:
				if _, _, err := m.Refresh(ctx); err != nil {
					m.logger.Warn("periodic corpus refresh failed, keeping previous snapshot", "error", err)
				}
			}
		}
	}()
	m.logger.Info("corpus watch started", "interval", interval)
}

// Build tokenizes texts and builds a snapshot with the given version.
func Build(texts map[string]string, version string) *Snapshot {
	docs := make(map[string][]string, len(texts))
	for id, text := range texts {
		docs[id] = tokenizer.Tokenize(text)
	}
	return &Snapshot{
		Stats:    stats.Build(docs),
		Version:  version,
		LoadedAt: time.Now().UTC(),
	}
}

// Fingerprint hashes document ids and contents in id order, so equal corpora
// get equal versions regardless of load order.
func Fingerprint(texts map[string]string) string {
	ids := make([]string, 0, len(texts))
	for id := range texts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(texts[id]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:12])
}
