package scorer

import (
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/indexer/stats"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/indexer/tokenizer"
)

const epsilon = 1e-12

func buildCorpus(texts map[string]string) *stats.CorpusStatistics {
	docs := make(map[string][]string, len(texts))
	for id, text := range texts {
		docs[id] = tokenizer.Tokenize(text)
	}
	return stats.Build(docs)
}

func twoHotels() *stats.CorpusStatistics {
	return buildCorpus(map[string]string{
		"A.txt": "Lake View Resort",
		"B.txt": "Mountain Lodge",
	})
}

func TestScoreFormula(t *testing.T) {
	s := twoHotels()
	scores := Score(tokenizer.Tokenize("lake resort"), s)

	// V=5, N=2. A: each term (1+1)/(3+5) over (1+1)/(2-1+5) = 0.75.
	if got, want := scores["A.txt"], 0.75*0.75; math.Abs(got-want) > epsilon {
		t.Errorf("score(A) = %v, want %v", got, want)
	}
	// B: each term (0+1)/(2+5) over (1+1)/(2-1+5) = 3/7.
	if got, want := scores["B.txt"], (3.0/7)*(3.0/7); math.Abs(got-want) > epsilon {
		t.Errorf("score(B) = %v, want %v", got, want)
	}
	if scores["A.txt"] <= scores["B.txt"] {
		t.Errorf("A (%v) should outrank B (%v)", scores["A.txt"], scores["B.txt"])
	}
}

func TestScoreEveryDocument(t *testing.T) {
	s := twoHotels()
	scores := Score([]string{"lake"}, s)
	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	for id, v := range scores {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("score(%s) = %v, want finite positive", id, v)
		}
	}
}

func TestScoreEmptyQuery(t *testing.T) {
	scores := Score(nil, twoHotels())
	for id, v := range scores {
		if v != 1.0 {
			t.Errorf("score(%s) = %v for empty query, want exactly 1.0", id, v)
		}
	}
	if len(scores) != 2 {
		t.Errorf("got %d scores, want 2", len(scores))
	}
}

func TestScoreEmptyCorpus(t *testing.T) {
	scores := Score([]string{"lake"}, stats.Build(map[string][]string{}))
	if len(scores) != 0 {
		t.Errorf("empty corpus produced %d scores", len(scores))
	}
}

func TestScoreOnlyEmptyDocuments(t *testing.T) {
	s := buildCorpus(map[string]string{"blank.txt": "", "dots.txt": "..."})
	scores := Score([]string{"lake"}, s)
	for id, v := range scores {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("score(%s) = %v, want finite positive", id, v)
		}
	}
}

func TestScoreUnknownTokenKeepsOrder(t *testing.T) {
	s := twoHotels()
	base := Score([]string{"lake", "resort"}, s)
	withUnknown := Score([]string{"lake", "resort", "xyzzy"}, s)

	if (base["A.txt"] > base["B.txt"]) != (withUnknown["A.txt"] > withUnknown["B.txt"]) {
		t.Errorf("unknown token changed order: base=%v with=%v", base, withUnknown)
	}
	for id := range base {
		if withUnknown[id] <= 0 {
			t.Errorf("unknown token excluded %s", id)
		}
	}
}

func TestScoreRepeatedToken(t *testing.T) {
	s := twoHotels()
	once := Score([]string{"lake"}, s)
	twice := Score([]string{"lake", "lake"}, s)
	for id := range once {
		want := once[id] * once[id]
		if math.Abs(twice[id]-want) > epsilon {
			t.Errorf("score(%s) for repeated token = %v, want %v", id, twice[id], want)
		}
	}
}

func TestTermFactorMatchesScore(t *testing.T) {
	s := twoHotels()
	scores := Score([]string{"lake", "view"}, s)
	for _, id := range s.DocIDs() {
		want := TermFactor("lake", id, s) * TermFactor("view", id, s)
		if math.Abs(scores[id]-want) > epsilon {
			t.Errorf("score(%s) = %v, product of factors = %v", id, scores[id], want)
		}
	}
}

func BenchmarkScore(b *testing.B) {
	texts := make(map[string]string, 200)
	for i := 0; i < 200; i++ {
		texts[string(rune('a'+i%26))+string(rune('a'+i/26))+".txt"] =
			"Lakeside hotel with mountain views, free wifi, spa and breakfast near the old bazaar"
	}
	s := buildCorpus(texts)
	query := tokenizer.Tokenize("lake view hotel breakfast")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Score(query, s)
	}
}
