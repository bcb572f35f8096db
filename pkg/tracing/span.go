// Package tracing provides a lightweight span-based tracing system that
// propagates trace context through Go contexts. Spans form parent–child trees
// and are logged through slog once the root span ends.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	mu        sync.Mutex
}

// Timing is a flattened, JSON-friendly view of one span.
type Timing struct {
	Span       string  `json:"span"`
	Depth      int     `json:"depth"`
	DurationMs float64 `json:"duration_ms"`
}

// StartSpan creates a new root span and stores it in the returned context.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := newSpan(name, traceID)
	return context.WithValue(ctx, spanKey, span), span
}

// StartChildSpan creates a child of the span in ctx. Without a parent the
// child is a detached root.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	parent := SpanFromContext(ctx)
	child := newSpan(name, "")
	if parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.Children = append(parent.Children, child)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey, child), child
}

func newSpan(name, traceID string) *Span {
	return &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
}

// End records the span's duration.
func (s *Span) End() {
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

// Timings flattens the span tree depth-first.
func (s *Span) Timings() []Timing {
	var out []Timing
	s.walk(0, func(sp *Span, depth int) {
		out = append(out, Timing{
			Span:       sp.Name,
			Depth:      depth,
			DurationMs: float64(sp.Duration.Microseconds()) / 1000,
		})
	})
	return out
}

// Log writes the span tree to logger at debug level.
func (s *Span) Log(logger *slog.Logger) {
	s.walk(0, func(sp *Span, depth int) {
		attrs := []any{
			"trace_id", sp.TraceID,
			"span", sp.Name,
			"duration_us", sp.Duration.Microseconds(),
			"depth", depth,
		}
		for k, v := range sp.Attrs {
			attrs = append(attrs, k, v)
		}
		logger.Debug("span", attrs...)
	})
}

func (s *Span) walk(depth int, fn func(*Span, int)) {
	s.mu.Lock()
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()
	fn(s, depth)
	for _, child := range children {
		child.walk(depth+1, fn)
	}
}
