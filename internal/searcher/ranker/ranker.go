// Package ranker turns a map of document scores into an ordered result list.
package ranker

import (
	"cmp"
	"math"
	"slices"
)

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

func byScoreThenID(a, b ScoredDoc) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.DocID, b.DocID)
}

// Rank returns the top limit documents, highest score first with equal scores
// in ascending id order. limit <= 0 means no limit. Scores are not altered.
func Rank(scores map[string]float64, limit int) []ScoredDoc {
	docs := make([]ScoredDoc, 0, len(scores))
	for id, score := range scores {
		docs = append(docs, ScoredDoc{DocID: id, Score: score})
	}
	slices.SortFunc(docs, byScoreThenID)
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit:limit]
	}
	return docs
}

// Round copies docs with each score rounded to places decimals.
func Round(docs []ScoredDoc, places int) []ScoredDoc {
	scale := math.Pow10(places)
	rounded := make([]ScoredDoc, len(docs))
	copy(rounded, docs)
	for i := range rounded {
		rounded[i].Score = math.Round(rounded[i].Score*scale) / scale
	}
	return rounded
}
