package executor

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/tracing"
)

type fixedSource struct{ snap *corpus.Snapshot }

func (f fixedSource) Current() *corpus.Snapshot { return f.snap }

func hotelSource(texts map[string]string) fixedSource {
	return fixedSource{snap: corpus.Build(texts, corpus.Fingerprint(texts))}
}

func TestExecuteLakeResort(t *testing.T) {
	exec := New(hotelSource(map[string]string{
		"A.txt": "Lake View Resort",
		"B.txt": "Mountain Lodge",
	}))
	res, err := exec.Execute(context.Background(), "lake resort", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Terms) != 2 || res.Terms[0] != "lake" || res.Terms[1] != "resort" {
		t.Errorf("Terms = %v", res.Terms)
	}
	if len(res.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(res.Results))
	}
	if res.Results[0].DocID != "A.txt" || res.Results[0].Score <= res.Results[1].Score {
		t.Errorf("A.txt should rank strictly first: %+v", res.Results)
	}
	if res.CorpusSize != 2 || res.CorpusVersion == "" {
		t.Errorf("corpus info = %d / %q", res.CorpusSize, res.CorpusVersion)
	}
	if res.Explanations != nil {
		t.Error("Execute should not attach explanations")
	}
}

func TestExecuteLimit(t *testing.T) {
	texts := map[string]string{
		"1.txt": "lake", "2.txt": "lake lake", "3.txt": "hill",
		"4.txt": "lake hill", "5.txt": "river", "6.txt": "lake river", "7.txt": "sky",
	}
	res, err := New(hotelSource(texts)).Execute(context.Background(), "lake", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 5 {
		t.Errorf("got %d results, want 5", len(res.Results))
	}
}

func TestExecuteEmptyQuery(t *testing.T) {
	exec := New(hotelSource(map[string]string{"b.txt": "Mountain Lodge", "a.txt": "Lake View"}))
	res, err := exec.Execute(context.Background(), "  ?! ", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(res.Results))
	}
	for _, r := range res.Results {
		if r.Score != 1.0 {
			t.Errorf("score(%s) = %v, want 1.0", r.DocID, r.Score)
		}
	}
	if res.Results[0].DocID != "a.txt" {
		t.Errorf("tie should break by id, got %s first", res.Results[0].DocID)
	}
}

func TestExecuteEmptyCorpus(t *testing.T) {
	res, err := New(hotelSource(map[string]string{})).Execute(context.Background(), "lake", 5)
	if err != nil {
		t.Fatal(err)
	}
	if res.CorpusSize != 0 || len(res.Results) != 0 {
		t.Errorf("empty corpus result = %+v", res)
	}
}

func TestExecuteNoSnapshot(t *testing.T) {
	_, err := New(fixedSource{}).Execute(context.Background(), "lake", 5)
	if !errors.Is(err, apperrors.ErrCorpusUnavailable) {
		t.Errorf("err = %v, want ErrCorpusUnavailable", err)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(hotelSource(map[string]string{"a.txt": "lake"})).Execute(ctx, "lake", 5)
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestExplain(t *testing.T) {
	exec := New(hotelSource(map[string]string{
		"A.txt": "Lake View Resort",
		"B.txt": "Mountain Lodge",
	}))
	res, err := exec.Explain(context.Background(), "lake resort", 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, doc := range res.Results {
		parts := res.Explanations[doc.DocID]
		if len(parts) != 2 {
			t.Fatalf("%s: %d contributions, want 2", doc.DocID, len(parts))
		}
		product := 1.0
		for _, p := range parts {
			product *= p.Factor
		}
		if math.Abs(product-doc.Score) > 1e-12 {
			t.Errorf("%s: product of factors %v != score %v", doc.DocID, product, doc.Score)
		}
	}
	if a := res.Explanations["A.txt"][0]; a.TermFreq != 1 || a.DocFreq != 1 {
		t.Errorf("A.txt lake contribution = %+v", a)
	}
}

func TestExecuteRecordsSpans(t *testing.T) {
	ctx, root := tracing.StartSpan(context.Background(), "search", "req-1")
	if _, err := New(hotelSource(map[string]string{"a.txt": "lake"})).Execute(ctx, "lake", 5); err != nil {
		t.Fatal(err)
	}
	root.End()
	names := map[string]bool{}
	for _, tm := range root.Timings() {
		names[tm.Span] = true
	}
	for _, want := range []string{"tokenize", "score", "rank"} {
		if !names[want] {
			t.Errorf("missing span %q", want)
		}
	}
}

func TestExplainReportsPhaseTimings(t *testing.T) {
	exec := New(hotelSource(map[string]string{"A.txt": "Lake View Resort", "B.txt": "Mountain Lodge"}))
	res, err := exec.Explain(context.Background(), "lake resort", 5)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"execute", "tokenize", "score", "rank"}
	if len(res.Timings) != len(want) {
		t.Fatalf("timings = %+v", res.Timings)
	}
	for i, name := range want {
		if res.Timings[i].Span != name {
			t.Errorf("timing[%d] = %q, want %q", i, res.Timings[i].Span, name)
		}
		if res.Timings[i].DurationMs < 0 {
			t.Errorf("%s duration = %v", name, res.Timings[i].DurationMs)
		}
	}

	plain, err := exec.Execute(context.Background(), "lake resort", 5)
	if err != nil {
		t.Fatal(err)
	}
	if plain.Timings != nil {
		t.Errorf("plain search carried timings: %+v", plain.Timings)
	}
}
