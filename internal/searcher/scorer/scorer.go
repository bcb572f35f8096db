// Package scorer computes Binary Independence Model relevance scores with
// add-one smoothing over a corpus snapshot.
package scorer

import "github.com/Adithya-Monish-Kumar-K/hotel-search/internal/indexer/stats"

// Score returns a multiplicative BIM score for every document in s, including
// documents that match none of the query tokens. Repeated query tokens apply
// their factor once per occurrence. An empty query scores every document 1.0;
// an empty corpus yields an empty map.
func Score(query []string, s *stats.CorpusStatistics) map[string]float64 {
	docIDs := s.DocIDs()
	scores := make(map[string]float64, len(docIDs))
	vocab := s.VocabularySize()
	docCount := s.DocCount()

	// The irrelevant-side probability depends only on the term.
	irrelevant := make([]float64, len(query))
	for i, term := range query {
		irrelevant[i] = pIrrelevant(s.DocumentFrequency(term), docCount, vocab)
	}

	for _, docID := range docIDs {
		docLen := s.DocLength(docID)
		score := 1.0
		for i, term := range query {
			pRel := pRelevant(s.TermFrequency(docID, term), docLen, vocab)
			score *= pRel / irrelevant[i]
		}
		scores[docID] = score
	}
	return scores
}

// TermFactor returns the factor a single query term contributes to docID's
// score.
func TermFactor(term, docID string, s *stats.CorpusStatistics) float64 {
	vocab := s.VocabularySize()
	pRel := pRelevant(s.TermFrequency(docID, term), s.DocLength(docID), vocab)
	pIrr := pIrrelevant(s.DocumentFrequency(term), s.DocCount(), vocab)
	return pRel / pIrr
}

func pRelevant(termFreq, docLen, vocab int) float64 {
	denominator := docLen + vocab
	if denominator <= 0 {
		// Only reachable when every document is empty.
		return 1
	}
	return float64(termFreq+1) / float64(denominator)
}

func pIrrelevant(docFreq, docCount, vocab int) float64 {
	rest := docCount - docFreq
	if rest < 0 {
		rest = 0
	}
	denominator := rest + vocab
	if denominator <= 0 {
		return 1
	}
	return float64(docFreq+1) / float64(denominator)
}
