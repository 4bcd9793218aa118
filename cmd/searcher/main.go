package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/batch"
	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/tracing"
)

func main() {
	os.Exit(run())
}

// run either answers one question given with -q, printing the hits as JSON,
// or augments every configured TSV split.
func run() int {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	lang := flag.String("lang", "", "analyzer language; defaults to analyzer.language")
	query := flag.String("q", "", "answer a single question instead of running the batch")
	topN := flag.Int("top", -1, "hits for -q; defaults to search.topN")
	refine := flag.Bool("refine", false, "narrow each passage to its best sentence")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return apperrors.ExitCode(err)
	}
	if *lang == "" {
		*lang = cfg.Analyzer.Language
	}
	if *topN < 0 {
		*topN = cfg.Search.TopN
	}
	if *refine {
		cfg.Batch.RefineSentences = true
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)
	log := logger.FromContext(ctx)

	rt, err := retrieval.Init(ctx, cfg)
	if err != nil {
		log.Error("failed to initialise runtime", "error", err)
		return apperrors.ExitCode(err)
	}
	defer rt.Close()

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, rt.Registry(), rt.Health().Handler())
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}

	s, err := rt.OpenSearcher(*lang)
	if err != nil {
		log.Error("failed to open searcher", "error", err, "index_dir", cfg.Index.Dir)
		return apperrors.ExitCode(err)
	}
	defer s.Close()

	if *query != "" {
		sctx, span := tracing.StartSpan(ctx, "search", runID)
		hits, err := s.Search(sctx, *query, *topN)
		span.SetAttr("hits", len(hits))
		span.End()
		span.Log(log)
		if err != nil {
			log.Error("search failed", "error", err)
			return apperrors.ExitCode(err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(hits); err != nil {
			log.Error("writing results", "error", err)
			return apperrors.ExitCode(apperrors.IOf(err, "stdout"))
		}
		return 0
	}

	log.Info("augmenting splits",
		"splits", len(cfg.Batch.Splits),
		"generation", s.Generation(),
		"refine", cfg.Batch.RefineSentences,
		"cache", rt.Cache() != nil,
	)
	augmenter := batch.NewAugmenter(rt.NewRetriever(s), rt.Metrics())
	stats, err := augmenter.ProcessSplits(ctx, cfg.Batch.Splits)
	if err != nil {
		log.Error("batch failed", "error", err)
		return apperrors.ExitCode(err)
	}
	total := 0
	for _, st := range stats {
		total += st.Records
	}
	if c := rt.Cache(); c != nil {
		hits, misses := c.Stats()
		log.Info("cache usage", "hits", hits, "misses", misses)
	}
	log.Info("batch complete", "records", total)
	return 0
}
