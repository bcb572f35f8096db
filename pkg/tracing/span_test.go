package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-1")
	_, tok := StartChildSpan(ctx, "tokenize")
	tok.End()
	scoreCtx, score := StartChildSpan(ctx, "score")
	_, inner := StartChildSpan(scoreCtx, "score.doc")
	inner.End()
	score.End()
	root.End()

	timings := root.Timings()
	want := []struct {
		name  string
		depth int
	}{{"search", 0}, {"tokenize", 1}, {"score", 1}, {"score.doc", 2}}
	if len(timings) != len(want) {
		t.Fatalf("got %d timings, want %d", len(timings), len(want))
	}
	for i, w := range want {
		if timings[i].Span != w.name || timings[i].Depth != w.depth {
			t.Errorf("timing[%d] = %+v, want %s@%d", i, timings[i], w.name, w.depth)
		}
	}
	if inner.TraceID != "req-1" {
		t.Errorf("child trace ID = %q, want req-1", inner.TraceID)
	}
}

func TestChildWithoutParent(t *testing.T) {
	ctx, span := StartChildSpan(context.Background(), "orphan")
	if SpanFromContext(ctx) != span {
		t.Error("child span not stored in context")
	}
	if span.TraceID != "" {
		t.Errorf("orphan trace ID = %q", span.TraceID)
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx, root := StartSpan(context.Background(), "search", "req-2")
	_, child := StartChildSpan(ctx, "rank")
	child.SetAttr("results", 5)
	child.End()
	root.End()
	root.Log(logger)

	out := buf.String()
	if strings.Count(out, "msg=span") != 2 {
		t.Errorf("expected 2 span lines, got: %s", out)
	}
	if !strings.Contains(out, "results=5") {
		t.Errorf("attribute missing from log: %s", out)
	}
}
