// Package stats builds the per-document and corpus-wide term statistics the
// BIM scorer consumes. A CorpusStatistics value is immutable once Build
// returns it; reloading a corpus means building a new one.
package stats

import "sort"

// TermCounts maps a token to its number of occurrences in one document.
type TermCounts map[string]int

// Get returns the count for term, or 0 when the term is absent.
func (c TermCounts) Get(term string) int {
	return c[term]
}

// Total returns the sum of all counts.
func (c TermCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// TermFrequencyTable maps a document id to its term counts.
type TermFrequencyTable map[string]TermCounts

// Get returns tf(docID, term), or 0 when either key is absent. It never
// inserts.
func (t TermFrequencyTable) Get(docID, term string) int {
	counts, ok := t[docID]
	if !ok {
		return 0
	}
	return counts.Get(term)
}

// DocumentFrequencyTable maps a token to the number of distinct documents
// containing it.
type DocumentFrequencyTable map[string]int

// Get returns df(term), or 0 when the term is absent. It never inserts.
func (t DocumentFrequencyTable) Get(term string) int {
	return t[term]
}

// CorpusStatistics aggregates everything the scorer needs about one corpus
// snapshot.
type CorpusStatistics struct {
	termFreq   TermFrequencyTable
	docFreq    DocumentFrequencyTable
	docLengths map[string]int
	docCount   int
	tokenCount int
}

// Build counts term and document frequencies for docs, a mapping from
// document id to that document's token sequence. The input is not modified.
func Build(docs map[string][]string) *CorpusStatistics {
	s := &CorpusStatistics{
		termFreq:   make(TermFrequencyTable, len(docs)),
		docFreq:    make(DocumentFrequencyTable),
		docLengths: make(map[string]int, len(docs)),
		docCount:   len(docs),
	}
	for docID, tokens := range docs {
		counts := make(TermCounts)
		for _, token := range tokens {
			counts[token]++
		}
		// Each key of counts is one distinct token of the document.
		for term := range counts {
			s.docFreq[term]++
		}
		s.termFreq[docID] = counts
		s.docLengths[docID] = len(tokens)
		s.tokenCount += len(tokens)
	}
	return s
}

// TermFrequency returns the occurrence count of term in docID.
func (s *CorpusStatistics) TermFrequency(docID, term string) int {
	return s.termFreq.Get(docID, term)
}

// DocumentFrequency returns the number of documents containing term.
func (s *CorpusStatistics) DocumentFrequency(term string) int {
	return s.docFreq.Get(term)
}

// DocLength returns the total number of tokens in docID, or 0 if unknown.
func (s *CorpusStatistics) DocLength(docID string) int {
	return s.docLengths[docID]
}

// DocCount returns N, the number of documents in the corpus.
func (s *CorpusStatistics) DocCount() int {
	return s.docCount
}

// VocabularySize returns V, the number of distinct tokens across the corpus.
func (s *CorpusStatistics) VocabularySize() int {
	return len(s.docFreq)
}

// TokenCount returns the total number of tokens across all documents.
func (s *CorpusStatistics) TokenCount() int {
	return s.tokenCount
}

// HasDocument reports whether docID is part of the corpus.
func (s *CorpusStatistics) HasDocument(docID string) bool {
	_, ok := s.termFreq[docID]
	return ok
}

// DocIDs returns every document id in ascending order.
func (s *CorpusStatistics) DocIDs() []string {
	ids := make([]string, 0, len(s.termFreq))
	for id := range s.termFreq {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TermCounts returns a copy of the term counts for docID.
func (s *CorpusStatistics) TermCounts(docID string) TermCounts {
	src := s.termFreq[docID]
	out := make(TermCounts, len(src))
	for term, n := range src {
		out[term] = n
	}
	return out
}

// Terms returns every vocabulary term in ascending order.
func (s *CorpusStatistics) Terms() []string {
	terms := make([]string, 0, len(s.docFreq))
	for term := range s.docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}
