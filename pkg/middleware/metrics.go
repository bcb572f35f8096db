// Package middleware provides HTTP middleware for request IDs, Prometheus
// metrics, per-client rate limiting, and request timeouts.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/metrics"
)

// routes are the paths reported as their own label. Anything else is
// reported as "other" so scanners cannot blow up label cardinality.
var routes = map[string]bool{
	"/api/v1/search":            true,
	"/api/v1/corpus/reload":     true,
	"/api/v1/corpus/stats":      true,
	"/api/v1/cache/stats":       true,
	"/api/v1/cache/invalidate":  true,
	"/api/v1/analytics":         true,
	"/api/v1/analytics/history": true,
	"/health/live":              true,
	"/health/ready":             true,
	"/metrics":                  true,
}

// Metrics records request count, latency, and in-flight requests per route.
// A nil m disables it.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r)
			m.ObserveHTTP(r.Method, routeLabel(r.URL.Path), rec.statusCode(), time.Since(start))
		})
	}
}

func routeLabel(path string) string {
	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	if routes[path] {
		return path
	}
	return "other"
}

// statusRecorder remembers the first status written; a body written without
// WriteHeader means 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (s *statusRecorder) statusCode() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
