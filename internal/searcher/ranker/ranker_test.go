package ranker

import (
	"fmt"
	"testing"
)

func TestRankOrderAndLimit(t *testing.T) {
	scores := map[string]float64{
		"a.txt": 0.5,
		"b.txt": 2.0,
		"c.txt": 1.25,
		"d.txt": 0.01,
	}
	got := Rank(scores, 3)
	want := []string{"b.txt", "c.txt", "a.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].DocID != id {
			t.Errorf("result[%d] = %s, want %s", i, got[i].DocID, id)
		}
		if got[i].Score != scores[id] {
			t.Errorf("result[%d] score = %v, want %v", i, got[i].Score, scores[id])
		}
	}
}

func TestRankTieBreakByDocID(t *testing.T) {
	scores := map[string]float64{
		"zeta.txt":  1.0,
		"alpha.txt": 1.0,
		"mid.txt":   1.0,
		"top.txt":   3.0,
	}
	got := Rank(scores, 0)
	want := []string{"top.txt", "alpha.txt", "mid.txt", "zeta.txt"}
	for i, id := range want {
		if got[i].DocID != id {
			t.Errorf("result[%d] = %s, want %s", i, got[i].DocID, id)
		}
	}
}

func TestRankEmpty(t *testing.T) {
	got := Rank(map[string]float64{}, 5)
	if got == nil || len(got) != 0 {
		t.Errorf("Rank(empty) = %#v, want empty non-nil slice", got)
	}
}

func TestRankNonPositiveLimitKeepsAll(t *testing.T) {
	scores := map[string]float64{"a": 1, "b": 2}
	for _, limit := range []int{0, -1} {
		if got := Rank(scores, limit); len(got) != 2 {
			t.Errorf("Rank(limit=%d) returned %d results, want 2", limit, len(got))
		}
	}
}

func TestRankProperties(t *testing.T) {
	scores := make(map[string]float64)
	for i := 0; i < 50; i++ {
		scores[fmt.Sprintf("hotel-%02d.txt", i)] = float64((i*37)%11) / 3
	}
	for _, limit := range []int{1, 5, 10, 50, 100} {
		got := Rank(scores, limit)
		if len(got) > limit {
			t.Errorf("limit %d: got %d results", limit, len(got))
		}
		seen := make(map[string]bool)
		for i, d := range got {
			want, ok := scores[d.DocID]
			if !ok {
				t.Errorf("limit %d: unknown doc %s", limit, d.DocID)
			}
			if d.Score != want {
				t.Errorf("limit %d: score for %s changed: %v != %v", limit, d.DocID, d.Score, want)
			}
			if seen[d.DocID] {
				t.Errorf("limit %d: duplicate doc %s", limit, d.DocID)
			}
			seen[d.DocID] = true
			if i > 0 && got[i-1].Score < d.Score {
				t.Errorf("limit %d: results not sorted at %d", limit, i)
			}
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	scores := map[string]float64{"a": 1, "b": 2, "c": 3}
	Rank(scores, 1)
	if len(scores) != 3 || scores["a"] != 1 || scores["b"] != 2 || scores["c"] != 3 {
		t.Errorf("input mutated: %v", scores)
	}
}

func TestRound(t *testing.T) {
	docs := []ScoredDoc{{DocID: "a", Score: 0.56254}, {DocID: "b", Score: 12.34567}}
	got := Round(docs, 4)
	if got[0].Score != 0.5625 || got[1].Score != 12.3457 {
		t.Errorf("Round = %v", got)
	}
	if docs[0].Score != 0.56254 {
		t.Error("Round mutated its input")
	}
}
