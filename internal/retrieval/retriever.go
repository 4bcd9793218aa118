package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/config"
)

const (
	modePassage  = "passage"
	modeSentence = "sentence"
)

// BestSentence splits passages into sentences, indexes them in a memory
// store that lives only for this call and returns the sentence that best
// answers question. found is false when no sentence matches.
func (r *Runtime) BestSentence(ctx context.Context, passages []string, question, languageTag string) (sentence string, found bool, err error) {
	field := r.cfg.Search.Field
	var docs []index.Document
	for _, p := range passages {
		for _, s := range corpus.SplitSentences(p) {
			docs = append(docs, index.Document{
				field: {Content: s, Stored: true, Indexed: true},
			})
		}
	}
	if len(docs) == 0 {
		return "", false, nil
	}
	a, err := r.NewAnalyzer(languageTag)
	if err != nil {
		return "", false, err
	}
	cfg := config.IndexConfig{LogInterval: r.cfg.Index.LogInterval}
	store, err := indexer.NewEngine(cfg, a, nil).BuildInMemory(ctx, indexer.NewSliceSource(docs...))
	if err != nil {
		return "", false, fmt.Errorf("indexing %d sentences: %w", len(docs), err)
	}
	s, err := searcher.New(store, a, r.searchOptions())
	if err != nil {
		store.Close()
		return "", false, err
	}
	defer s.Close()

	hits, err := s.Search(ctx, question, 1)
	if err != nil {
		return "", false, err
	}
	if len(hits) == 0 {
		return "", false, nil
	}
	return hits[0].Fields[field], true, nil
}

// PassageRetriever answers one question with the best passage of a searcher,
// optionally narrowed to its best sentence and memoized in the cache.
type PassageRetriever struct {
	rt         *Runtime
	searcher   *searcher.Searcher
	cache      *cache.PassageCache
	refine     bool
	refineTopK int
}

// NewRetriever wraps s with the runtime's batch settings and cache.
func (r *Runtime) NewRetriever(s *searcher.Searcher) *PassageRetriever {
	return &PassageRetriever{
		rt:         r,
		searcher:   s,
		cache:      r.cache,
		refine:     r.cfg.Batch.RefineSentences,
		refineTopK: r.cfg.Batch.RefineTopK,
	}
}

// Retrieve returns the best passage for question. found is false when
// nothing matches; err wraps ErrQuerySyntax when the question has no
// searchable terms.
func (p *PassageRetriever) Retrieve(ctx context.Context, question string) (passage string, found bool, err error) {
	start := time.Now()
	if p.cache == nil {
		entry, err := p.compute(ctx, question)
		p.observe("disabled", start, err)
		return entry.Passage, entry.Found, err
	}
	key := cache.Key{
		Language:   p.searcher.Language(),
		Generation: p.searcher.Generation(),
		Settings:   p.searcher.Fingerprint(),
		Mode:       p.mode(),
		Question:   question,
		TopN:       p.topN(),
	}
	entry, cached, err := p.cache.GetOrCompute(ctx, key, func() (cache.Entry, error) {
		return p.compute(ctx, question)
	})
	status := "miss"
	if cached {
		status = "hit"
	}
	p.observe(status, start, err)
	return entry.Passage, entry.Found, err
}

func (p *PassageRetriever) observe(cacheStatus string, start time.Time, err error) {
	if err != nil || p.rt.metrics == nil {
		return
	}
	p.rt.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
}

func (p *PassageRetriever) compute(ctx context.Context, question string) (cache.Entry, error) {
	hits, err := p.searcher.Search(ctx, question, p.topN())
	if err != nil {
		return cache.Entry{}, err
	}
	if len(hits) == 0 {
		return cache.Entry{}, nil
	}
	field := p.searcher.Field()
	best := cache.Entry{Passage: hits[0].Fields[field], Found: true, Score: hits[0].Score}
	if !p.refine {
		return best, nil
	}
	passages := make([]string, 0, len(hits))
	for _, h := range hits {
		passages = append(passages, h.Fields[field])
	}
	sentence, ok, err := p.rt.BestSentence(ctx, passages, question, p.searcher.Language())
	if err != nil {
		return cache.Entry{}, err
	}
	if ok {
		best.Passage = sentence
	}
	return best, nil
}

func (p *PassageRetriever) mode() string {
	if p.refine {
		return modeSentence
	}
	return modePassage
}

func (p *PassageRetriever) topN() int {
	if p.refine && p.refineTopK > 1 {
		return p.refineTopK
	}
	return 1
}
