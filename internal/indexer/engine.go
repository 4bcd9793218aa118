// Package indexer drives index builds: it pulls documents from a source,
// feeds them through a Builder and seals the result into the persisted or
// memory-resident backend.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/analyzer"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/metrics"
)

// DocumentSource yields documents in order and returns io.EOF when
// exhausted.
type DocumentSource interface {
	Next(ctx context.Context) (index.Document, error)
}

type Engine struct {
	cfg      config.IndexConfig
	analyzer analyzer.Analyzer
	metrics  *metrics.Metrics
}

// NewEngine returns an engine that analyzes with a. m may be nil.
func NewEngine(cfg config.IndexConfig, a analyzer.Analyzer, m *metrics.Metrics) *Engine {
	return &Engine{cfg: cfg, analyzer: a, metrics: m}
}

// Build indexes every document of src into a new generation under cfg.Dir
// and returns the sealed store. On any error, including cancellation, the
// partial generation is discarded and the previous one stays current.
func (e *Engine) Build(ctx context.Context, src DocumentSource) (index.Store, error) {
	sink, err := segment.Create(e.cfg.Dir, segment.Options{Overwrite: e.cfg.Overwrite})
	if err != nil {
		e.observe("failed", 0)
		return nil, err
	}
	return e.build(ctx, sink, src, "persisted")
}

// BuildInMemory indexes src into a memory-resident store that lives until
// Close.
func (e *Engine) BuildInMemory(ctx context.Context, src DocumentSource) (index.Store, error) {
	return e.build(ctx, index.NewMemorySink(), src, "memory")
}

func (e *Engine) build(ctx context.Context, sink index.Sink, src DocumentSource, backend string) (index.Store, error) {
	log := logger.FromContext(ctx).With("component", "indexer", "backend", backend)
	builder := index.NewBuilder(e.analyzer, sink)
	defer builder.Abort()

	start := time.Now()
	interval := e.cfg.LogInterval
	if interval <= 0 {
		interval = 10000
	}
	docs := 0
	for {
		if err := ctx.Err(); err != nil {
			log.Warn("index build cancelled", "docs", docs)
			e.observe("aborted", time.Since(start))
			return nil, fmt.Errorf("index build cancelled after %d documents: %w", docs, err)
		}
		doc, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			e.observe("failed", time.Since(start))
			return nil, fmt.Errorf("reading document %d: %w", docs, err)
		}
		if _, err := builder.Add(doc); err != nil {
			e.observe("failed", time.Since(start))
			return nil, err
		}
		docs++
		if e.metrics != nil {
			e.metrics.DocsIndexedTotal.Inc()
		}
		if docs%interval == 0 {
			log.Info("indexing progress", "docs", docs, "elapsed", time.Since(start).Round(time.Second))
		}
	}

	if err := builder.Close(); err != nil {
		e.observe("failed", time.Since(start))
		return nil, err
	}
	store, err := builder.Store()
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	e.observe("sealed", elapsed)
	if e.metrics != nil {
		e.metrics.IndexDocCount.Set(float64(store.DocumentCount()))
	}
	log.Info("index build complete",
		"docs", store.DocumentCount(),
		"generation", store.Generation(),
		"language", store.Language(),
		"duration", elapsed.Round(time.Millisecond),
	)
	return store, nil
}

func (e *Engine) observe(status string, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	if status == "sealed" {
		e.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
	}
}

// SliceSource serves a fixed list of documents.
type SliceSource struct {
	docs []index.Document
	next int
}

func NewSliceSource(docs ...index.Document) *SliceSource {
	return &SliceSource{docs: docs}
}

func (s *SliceSource) Next(context.Context) (index.Document, error) {
	if s.next >= len(s.docs) {
		return nil, io.EOF
	}
	doc := s.docs[s.next]
	s.next++
	return doc, nil
}
