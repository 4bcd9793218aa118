// Package searcher answers free-text questions against one sealed index
// snapshot, returning BM25-ranked hits with their stored fields.
package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/analyzer"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/tracing"
)

const DefaultField = "content"

type Hit struct {
	DocID  uint32             `json:"doc_id"`
	Fields index.StoredFields `json:"fields"`
	Score  float64            `json:"score"`
}

type Options struct {
	// Field is the field queries run against; DefaultField if empty.
	Field string
	// Params are the BM25 constants; ranker.DefaultParams if zero.
	Params  ranker.Params
	Metrics *metrics.Metrics
}

// Searcher owns a store for its lifetime. It is safe for concurrent use.
type Searcher struct {
	store    index.Store
	analyzer analyzer.Analyzer
	field    string
	params   ranker.Params
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New binds a searcher to store. The analyzer must be configured exactly as
// the one the index was built with; a different language or option is a
// configuration error.
func New(store index.Store, a analyzer.Analyzer, opts Options) (*Searcher, error) {
	if store.Language() != a.Language() {
		return nil, apperrors.Newf(apperrors.ErrConfiguration,
			"analyzer language %q does not match index language %q", a.Language(), store.Language())
	}
	if store.AnalyzerSignature() != a.Signature() {
		return nil, apperrors.Newf(apperrors.ErrConfiguration,
			"analyzer %q does not match index analyzer %q", a.Signature(), store.AnalyzerSignature())
	}
	if opts.Field == "" {
		opts.Field = DefaultField
	}
	if opts.Params == (ranker.Params{}) {
		opts.Params = ranker.DefaultParams()
	}
	return &Searcher{
		store:    store,
		analyzer: a,
		field:    opts.Field,
		params:   opts.Params,
		metrics:  opts.Metrics,
		logger: slog.Default().With(
			"component", "searcher",
			"language", store.Language(),
			"generation", store.Generation(),
		),
	}, nil
}

// Search parses raw and returns at most topN hits, best first. topN <= 0
// yields no hits. A question with no searchable terms fails with
// ErrQuerySyntax; it never matches everything.
func (s *Searcher) Search(ctx context.Context, raw string, topN int) ([]Hit, error) {
	if topN <= 0 {
		return []Hit{}, nil
	}
	q, err := parser.Parse(raw, s.field, s.analyzer)
	if err != nil {
		s.count("syntax_error")
		return nil, err
	}
	return s.Execute(ctx, q, topN)
}

// Execute runs a parsed query. Any read failure fails the whole query; no
// partial result is returned.
func (s *Searcher) Execute(ctx context.Context, q *parser.Query, topN int) ([]Hit, error) {
	if topN <= 0 {
		return []Hit{}, nil
	}
	start := time.Now()
	terms, err := s.postings(ctx, q)
	if err != nil {
		return nil, err
	}

	span := tracing.StartChild(ctx, "rank")
	ranked := ranker.Rank(terms, q.Field, s.store, s.params, topN)
	span.End()

	span = tracing.StartChild(ctx, "fetch")
	defer span.End()
	hits := make([]Hit, 0, len(ranked))
	for _, doc := range ranked {
		fields, err := s.store.StoredFields(doc.DocID)
		if err != nil {
			s.count("error")
			return nil, fmt.Errorf("loading document %d: %w", doc.DocID, err)
		}
		hits = append(hits, Hit{DocID: doc.DocID, Fields: fields, Score: doc.Score})
	}

	elapsed := time.Since(start)
	if len(hits) == 0 {
		s.count("zero_result")
	} else {
		s.count("hit")
	}
	if s.metrics != nil {
		s.metrics.SearchResultsCount.Observe(float64(len(hits)))
	}
	s.logger.Debug("query executed",
		"query", q.Raw,
		"terms", q.Terms,
		"matched_terms", len(terms),
		"results", len(hits),
		"duration", elapsed,
	)
	return hits, nil
}

// postings loads the postings of every query term present in the index,
// skipping terms no document contains.
func (s *Searcher) postings(ctx context.Context, q *parser.Query) ([]ranker.TermPostings, error) {
	span := tracing.StartChild(ctx, "postings")
	defer span.End()
	terms := make([]ranker.TermPostings, 0, len(q.Terms))
	for _, term := range q.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		df, err := s.store.DocumentFrequency(q.Field, term)
		if err != nil {
			s.count("error")
			return nil, fmt.Errorf("document frequency of %q: %w", term, err)
		}
		if df == 0 {
			continue
		}
		postings, err := s.store.PostingsFor(q.Field, term)
		if err != nil {
			s.count("error")
			return nil, fmt.Errorf("postings of %q: %w", term, err)
		}
		terms = append(terms, ranker.TermPostings{Term: term, DocFreq: df, Postings: postings})
	}
	span.SetAttr("matched_terms", len(terms))
	return terms, nil
}

func (s *Searcher) count(resultType string) {
	if s.metrics != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func (s *Searcher) Field() string { return s.field }

// Fingerprint names every setting that decides a ranking besides the index
// snapshot: the analyzer signature, the field and the BM25 constants.
func (s *Searcher) Fingerprint() string {
	return fmt.Sprintf("%s|%s|k1=%g|b=%g", s.analyzer.Signature(), s.field, s.params.K1, s.params.B)
}

func (s *Searcher) Language() string { return s.store.Language() }

// Generation identifies the snapshot this searcher reads.
func (s *Searcher) Generation() uint64 { return s.store.Generation() }

// Close releases the underlying store.
func (s *Searcher) Close() error {
	return s.store.Close()
}
