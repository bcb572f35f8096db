// Package metrics defines the Prometheus metric collectors used by the hotel
// search services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the services.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CorpusDocuments      prometheus.Gauge
	CorpusVocabulary     prometheus.Gauge
	CorpusTokens         prometheus.Gauge
	CorpusReloadsTotal   *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
	AnalyticsDropped     *prometheus.CounterVec
}

// New creates the collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by outcome (ok, empty_query, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 3, 5, 10, 25, 50},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		CorpusDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_documents",
				Help: "Number of documents in the published corpus snapshot.",
			},
		),
		CorpusVocabulary: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_vocabulary_size",
				Help: "Number of distinct tokens in the published corpus snapshot.",
			},
		),
		CorpusTokens: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_tokens",
				Help: "Total tokens across the published corpus snapshot.",
			},
		),
		CorpusReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_reloads_total",
				Help: "Corpus reload attempts by status (published, unchanged, failed).",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		AnalyticsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Analytics events discarded before publishing, by reason (buffer_full, closed).",
			},
			[]string{"reason"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CorpusDocuments,
		m.CorpusVocabulary,
		m.CorpusTokens,
		m.CorpusReloadsTotal,
		m.CircuitBreakerState,
		m.AnalyticsDropped,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetCorpus publishes the size of the current corpus snapshot.
func (m *Metrics) SetCorpus(docs, vocabulary, tokens int) {
	if m == nil {
		return
	}
	m.CorpusDocuments.Set(float64(docs))
	m.CorpusVocabulary.Set(float64(vocabulary))
	m.CorpusTokens.Set(float64(tokens))
}

// ObserveSearch records one search request.
func (m *Metrics) ObserveSearch(resultType string, cacheHit bool, returned int, latency time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	m.SearchResultsCount.Observe(float64(returned))
}

// ObserveReload counts one corpus reload attempt.
func (m *Metrics) ObserveReload(status string) {
	if m == nil {
		return
	}
	m.CorpusReloadsTotal.WithLabelValues(status).Inc()
}

// SetBreakerState publishes a circuit breaker's state code.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveAnalyticsDropped counts one analytics event that was never published.
func (m *Metrics) ObserveAnalyticsDropped(reason string) {
	if m == nil {
		return
	}
	m.AnalyticsDropped.WithLabelValues(reason).Inc()
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(latency.Seconds())
}
