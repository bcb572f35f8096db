package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/kafka"
)

const (
	topN          = 10
	latencyWindow = 10000
)

type AggregatedStats struct {
	TotalSearches    int64        `json:"total_searches"`
	CacheHits        int64        `json:"cache_hits"`
	CacheMisses      int64        `json:"cache_misses"`
	EmptyQueries     int64        `json:"empty_queries"`
	CorpusReloads    int64        `json:"corpus_reloads"`
	CorpusVersion    string       `json:"corpus_version,omitempty"`
	CorpusDocuments  int          `json:"corpus_documents"`
	AvgLatencyMs     float64      `json:"avg_latency_ms"`
	P50LatencyMs     int64        `json:"p50_latency_ms"`
	P95LatencyMs     int64        `json:"p95_latency_ms"`
	P99LatencyMs     int64        `json:"p99_latency_ms"`
	TopQueries       []QueryCount `json:"top_queries"`
	TopHotels        []QueryCount `json:"top_hotels"`
	QueriesPerMinute float64      `json:"queries_per_minute"`
	CapturedAt       time.Time    `json:"captured_at"`
}

// QueryCount pairs a key (a normalized query or a hotel id) with a count.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds analytics events into running totals. Queries are grouped
// by their token sequence, so "Lake, Resort" and "lake resort" count together.
// Top hotels counts how often each hotel was ranked first.
type Aggregator struct {
	mu            sync.RWMutex
	totalSearches int64
	sinceStart    int64
	cacheHits     int64
	emptyQueries  int64
	reloads       int64
	corpusVersion string
	corpusDocs    int
	latencies     []int64
	next          int
	queryCounts   map[string]int64
	topHotels     map[string]int64
	startTime     time.Time
	now           func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]int64, 0, 1024),
		queryCounts: make(map[string]int64),
		topHotels:   make(map[string]int64),
		startTime:   time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer. Undecodable messages
// are logged and acknowledged so one bad record cannot stall the partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := decodeEvent(value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record folds a single event into the totals.
func (a *Aggregator) Record(event any) {
	switch e := event.(type) {
	case SearchEvent:
		a.recordSearch(e)
	case CorpusReloadEvent:
		a.recordReload(e)
	default:
		a.logger.Warn("ignoring unknown analytics event", "type", fmt.Sprintf("%T", event))
	}
}

func (a *Aggregator) recordSearch(e SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	a.sinceStart++
	if e.CacheHit {
		a.cacheHits++
	}
	if len(e.Terms) == 0 {
		a.emptyQueries++
	} else {
		a.queryCounts[strings.Join(e.Terms, " ")]++
	}
	if len(e.ResultIDs) > 0 && len(e.Terms) > 0 {
		a.topHotels[e.ResultIDs[0]]++
	}

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.next] = e.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
}

func (a *Aggregator) recordReload(e CorpusReloadEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reloads++
	a.corpusVersion = e.Version
	a.corpusDocs = e.Documents
}

// Stats returns a point-in-time copy of the totals. Latency percentiles cover
// the most recent searches only.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.now()
	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.totalSearches - a.cacheHits,
		EmptyQueries:    a.emptyQueries,
		CorpusReloads:   a.reloads,
		CorpusVersion:   a.corpusVersion,
		CorpusDocuments: a.corpusDocs,
		TopQueries:      top(a.queryCounts, topN),
		TopHotels:       top(a.topHotels, topN),
		CapturedAt:      now.UTC(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := now.Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.sinceStart) / elapsed
	}
	return stats
}

// Restore seeds the totals from a persisted snapshot so counts survive a
// restart. Latency samples are not persisted and start empty, and the query
// rate only counts searches seen by this process.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches = s.TotalSearches
	a.cacheHits = s.CacheHits
	a.emptyQueries = s.EmptyQueries
	a.reloads = s.CorpusReloads
	a.corpusVersion = s.CorpusVersion
	a.corpusDocs = s.CorpusDocuments
	for _, q := range s.TopQueries {
		a.queryCounts[q.Query] = q.Count
	}
	for _, h := range s.TopHotels {
		a.topHotels[h.Query] = h.Count
	}
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// top returns the n largest counts, ties ordered by key.
func top(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for key, count := range counts {
		result = append(result, QueryCount{Query: key, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
