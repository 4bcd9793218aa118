// Package retrieval is the process-level entry point: it owns configuration,
// metrics and the optional cache, builds the corpus index and hands out
// searchers. Callers create one Runtime with Init and release it with Close.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/analyzer"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/redis"
)

var errClosed = apperrors.New(apperrors.ErrConfiguration, "retrieval runtime is closed")

type Runtime struct {
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	redis    *pkgredis.Client
	cache    *cache.PassageCache
	health   *health.Checker
	logger   *slog.Logger

	mu        sync.Mutex
	closed    bool
	searchers []*searcher.Searcher
}

// Init validates cfg and sets up the shared resources. When Redis is enabled
// and unreachable, Init fails rather than running silently uncached.
func Init(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := analyzer.New(cfg.Analyzer.Language); err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt := &Runtime{
		cfg:      cfg,
		registry: registry,
		metrics:  metrics.New(registry),
		health:   health.NewChecker(),
		logger:   slog.Default().With("component", "retrieval"),
	}
	rt.health.Register("index", func(context.Context) error {
		_, err := segment.CurrentGeneration(cfg.Index.Dir)
		return err
	})
	if cfg.Redis.Enabled {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting retrieval cache: %w", err)
		}
		rt.redis = client
		rt.cache = cache.New(client, cfg.Redis.CacheTTL, rt.metrics)
		rt.health.Register("cache", client.Ping)
	}
	rt.logger.Info("retrieval runtime initialised",
		"index_dir", cfg.Index.Dir,
		"language", cfg.Analyzer.Language,
		"cache", cfg.Redis.Enabled,
	)
	return rt, nil
}

func (r *Runtime) Config() *config.Config { return r.cfg }

// Registry is the Prometheus registry every collector of this runtime is
// registered with.
func (r *Runtime) Registry() *prometheus.Registry { return r.registry }

func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Health reports whether a sealed index exists and the cache answers.
func (r *Runtime) Health() *health.Checker { return r.health }

// Cache is nil when Redis is disabled.
func (r *Runtime) Cache() *cache.PassageCache { return r.cache }

// NewAnalyzer returns the analyzer for tag with the configured options.
func (r *Runtime) NewAnalyzer(tag string) (analyzer.Analyzer, error) {
	return analyzer.New(tag, analyzer.WithStemming(r.cfg.Analyzer.Stemming))
}

// BuildIndex indexes every document of src into the configured directory
// with the configured analyzer and returns the sealed store. Cached answers
// for the language are dropped once the new generation is current.
func (r *Runtime) BuildIndex(ctx context.Context, src indexer.DocumentSource) (index.Store, error) {
	if r.isClosed() {
		return nil, errClosed
	}
	a, err := r.NewAnalyzer(r.cfg.Analyzer.Language)
	if err != nil {
		return nil, err
	}
	store, err := indexer.NewEngine(r.cfg.Index, a, r.metrics).Build(ctx, src)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, store.Language()); err != nil {
			r.logger.Warn("dropping stale cache entries", "error", err)
		}
	}
	return store, nil
}

// BuildCorpusIndex indexes every line of the configured corpus.
func (r *Runtime) BuildCorpusIndex(ctx context.Context) (index.Store, error) {
	paths, err := corpus.ListFiles(r.cfg.Corpus.DocPath, r.cfg.Corpus.Extension)
	if err != nil {
		return nil, err
	}
	r.logger.Info("corpus files discovered", "files", len(paths), "root", r.cfg.Corpus.DocPath)
	src := corpus.NewLineSource(paths, r.cfg.Corpus.TitlePlaceholder)
	defer src.Close()
	return r.BuildIndex(ctx, src)
}

// OpenSearcher opens the current generation of the configured index for
// languageTag. The searcher is closed by the caller or, at the latest, by
// Close.
func (r *Runtime) OpenSearcher(languageTag string) (*searcher.Searcher, error) {
	if r.isClosed() {
		return nil, errClosed
	}
	a, err := r.NewAnalyzer(languageTag)
	if err != nil {
		return nil, err
	}
	store, err := segment.Open(r.cfg.Index.Dir)
	if err != nil {
		return nil, err
	}
	s, err := searcher.New(store, a, r.searchOptions())
	if err != nil {
		store.Close()
		return nil, err
	}
	r.mu.Lock()
	r.searchers = append(r.searchers, s)
	r.mu.Unlock()
	r.metrics.IndexDocCount.Set(float64(store.DocumentCount()))
	r.logger.Info("searcher opened",
		"language", languageTag,
		"generation", s.Generation(),
		"docs", store.DocumentCount(),
	)
	return s, nil
}

func (r *Runtime) searchOptions() searcher.Options {
	return searcher.Options{
		Field:   r.cfg.Search.Field,
		Params:  ranker.Params{K1: r.cfg.Search.K1, B: r.cfg.Search.B},
		Metrics: r.metrics,
	}
}

// Close releases every searcher opened through the runtime and the cache
// connection. It is idempotent.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	searchers := r.searchers
	r.searchers = nil
	r.mu.Unlock()

	var errs []error
	for _, s := range searchers {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	r.logger.Info("retrieval runtime closed", "searchers", len(searchers))
	return errors.Join(errs...)
}

func (r *Runtime) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
