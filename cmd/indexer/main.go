package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/passage-search/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/metrics"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	docPath := flag.String("doc_path", "", "corpus root; overrides corpus.docPath")
	indexDir := flag.String("index_dir", "", "index directory; overrides index.dir")
	overwrite := flag.Bool("overwrite", false, "replace an existing sealed index")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return apperrors.ExitCode(err)
	}
	if *docPath != "" {
		cfg.Corpus.DocPath = *docPath
	}
	if *indexDir != "" {
		cfg.Index.Dir = *indexDir
	}
	if *overwrite {
		cfg.Index.Overwrite = true
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRun(ctx, uuid.NewString())
	log := logger.FromContext(ctx)
	log.Info("starting indexer",
		"args", os.Args[1:],
		"doc_path", cfg.Corpus.DocPath,
		"index_dir", cfg.Index.Dir,
		"language", cfg.Analyzer.Language,
		"overwrite", cfg.Index.Overwrite,
	)

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

	start := time.Now()
	store, err := rt.BuildCorpusIndex(ctx)
	if err != nil {
		log.Error("index build failed", "error", err)
		return apperrors.ExitCode(err)
	}
	defer store.Close()

	log.Info("indexed corpus",
		"docs", store.DocumentCount(),
		"generation", store.Generation(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return 0
}
