package executor

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/scorer"
	apperrors "github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/tracing"
)

type SearchResult struct {
	Query         string                        `json:"query"`
	Terms         []string                      `json:"terms"`
	CorpusSize    int                           `json:"corpus_size"`
	CorpusVersion string                        `json:"corpus_version"`
	Results       []ranker.ScoredDoc            `json:"results"`
	Explanations  map[string][]TermContribution `json:"explanations,omitempty"`
	Timings       []tracing.Timing              `json:"timings,omitempty"`
}

// TermContribution is the factor one query term applied to a document score.
type TermContribution struct {
	Term     string  `json:"term"`
	TermFreq int     `json:"tf"`
	DocFreq  int     `json:"df"`
	Factor   float64 `json:"factor"`
}

// SnapshotSource returns the corpus snapshot queries run against.
type SnapshotSource interface {
	Current() *corpus.Snapshot
}

type Executor struct {
	source SnapshotSource
	logger *slog.Logger
}

func New(source SnapshotSource) *Executor {
	return &Executor{
		source: source,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute ranks the current corpus snapshot against query and keeps the top
// limit documents. An empty query is answered, not rejected: every document
// scores 1.0 and ties resolve by document id.
func (e *Executor) Execute(ctx context.Context, query string, limit int) (*SearchResult, error) {
	return e.ExecuteSnapshot(ctx, e.source.Current(), query, limit, false)
}

// Explain is Execute plus a per-term breakdown for every returned document and
// the time spent in each phase.
func (e *Executor) Explain(ctx context.Context, query string, limit int) (*SearchResult, error) {
	return e.ExecuteSnapshot(ctx, e.source.Current(), query, limit, true)
}

// ExecuteSnapshot runs query against a caller-chosen snapshot, so a caller
// that keys a cache on the snapshot version scores against that same version.
func (e *Executor) ExecuteSnapshot(ctx context.Context, snap *corpus.Snapshot, query string, limit int, explain bool) (*SearchResult, error) {
	if snap == nil {
		return nil, apperrors.New(apperrors.ErrCorpusUnavailable, http.StatusServiceUnavailable,
			"no corpus snapshot has been published yet")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.New(apperrors.ErrTimeout, http.StatusServiceUnavailable, err.Error())
	}

	ctx, exec := tracing.StartChildSpan(ctx, "execute")
	defer exec.End()

	_, span := tracing.StartChildSpan(ctx, "tokenize")
	terms := tokenizer.Tokenize(query)
	span.SetAttr("terms", len(terms))
	span.End()

	_, span = tracing.StartChildSpan(ctx, "score")
	scores := scorer.Score(terms, snap.Stats)
	span.SetAttr("documents", len(scores))
	span.End()

	_, span = tracing.StartChildSpan(ctx, "rank")
	ranked := ranker.Rank(scores, limit)
	span.SetAttr("results", len(ranked))
	span.End()

	result := &SearchResult{
		Query:         query,
		Terms:         terms,
		CorpusSize:    snap.Stats.DocCount(),
		CorpusVersion: snap.Version,
		Results:       ranked,
	}
	if explain {
		result.Explanations = make(map[string][]TermContribution, len(ranked))
		for _, doc := range ranked {
			parts := make([]TermContribution, 0, len(terms))
			for _, term := range terms {
				parts = append(parts, TermContribution{
					Term:     term,
					TermFreq: snap.Stats.TermFrequency(doc.DocID, term),
					DocFreq:  snap.Stats.DocumentFrequency(term),
					Factor:   scorer.TermFactor(term, doc.DocID, snap.Stats),
				})
			}
			result.Explanations[doc.DocID] = parts
		}
		exec.End()
		result.Timings = exec.Timings()
	}

	e.logger.Debug("query executed",
		"query", query,
		"terms", terms,
		"corpus_version", snap.Version,
		"results", len(ranked),
	)
	return result, nil
}
