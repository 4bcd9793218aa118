package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/passage-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/passage-search/pkg/metrics"
)

// Retriever finds the passage that best answers a question. found is false
// when nothing matches.
type Retriever interface {
	Retrieve(ctx context.Context, question string) (passage string, found bool, err error)
}

type Outcome string

const (
	OutcomeFound   Outcome = "found"
	OutcomeEmpty   Outcome = "empty"
	OutcomeSkipped Outcome = "skipped"
)

// Stats summarises one processed split.
type Stats struct {
	Split    string
	Records  int
	Found    int
	Empty    int
	Skipped  int
	Duration time.Duration
}

func (s *Stats) add(o Outcome) {
	s.Records++
	switch o {
	case OutcomeFound:
		s.Found++
	case OutcomeEmpty:
		s.Empty++
	case OutcomeSkipped:
		s.Skipped++
	}
}

type Augmenter struct {
	retriever Retriever
	metrics   *metrics.Metrics
}

// NewAugmenter returns an augmenter backed by r. m may be nil.
func NewAugmenter(r Retriever, m *metrics.Metrics) *Augmenter {
	return &Augmenter{retriever: r, metrics: m}
}

// Augment sets rec's passage to the best match for its question. When
// nothing matches the passage is left as it was. A question without
// searchable terms is logged and skipped; any other failure is returned.
func (a *Augmenter) Augment(ctx context.Context, rec Record) (Outcome, error) {
	question := rec[questionField]
	passage, found, err := a.retriever.Retrieve(ctx, question)
	if err != nil {
		if errors.Is(err, apperrors.ErrQuerySyntax) {
			logger.FromContext(ctx).Warn("question skipped",
				"qid", rec["qid"],
				"question", question,
				"error", err,
			)
			return OutcomeSkipped, nil
		}
		return "", fmt.Errorf("question %s: %w", rec["qid"], err)
	}
	if !found {
		return OutcomeEmpty, nil
	}
	rec[passageField] = strings.TrimSpace(passage)
	return OutcomeFound, nil
}

// Process streams every record of in through Augment into out.
func (a *Augmenter) Process(ctx context.Context, split string, in io.Reader, out io.Writer) (Stats, error) {
	stats := Stats{Split: split}
	start := time.Now()
	r, err := NewReader(in)
	if err != nil {
		return stats, apperrors.IOf(err, "split %s", split)
	}
	w, err := NewWriter(out)
	if err != nil {
		return stats, apperrors.IOf(err, "split %s", split)
	}
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, apperrors.IOf(err, "split %s", split)
		}
		outcome, err := a.Augment(ctx, rec)
		if err != nil {
			return stats, err
		}
		stats.add(outcome)
		if a.metrics != nil {
			a.metrics.BatchRecordsTotal.WithLabelValues(split, string(outcome)).Inc()
		}
		if err := w.Write(rec); err != nil {
			return stats, apperrors.IOf(err, "writing split %s", split)
		}
	}
	if err := w.Flush(); err != nil {
		return stats, apperrors.IOf(err, "writing split %s", split)
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

// ProcessFile augments the input file of split into its output file. The
// output appears only once complete.
func (a *Augmenter) ProcessFile(ctx context.Context, split config.SplitConfig) (Stats, error) {
	in, err := os.Open(split.Input)
	if err != nil {
		return Stats{Split: split.Name}, apperrors.IOf(err, "opening split %s", split.Name)
	}
	defer in.Close()

	tmp := split.Output + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return Stats{Split: split.Name}, apperrors.IOf(err, "creating output of split %s", split.Name)
	}
	stats, err := a.Process(ctx, split.Name, in, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = apperrors.IOf(cerr, "closing output of split %s", split.Name)
	}
	if err != nil {
		os.Remove(tmp)
		return stats, err
	}
	if err := os.Rename(tmp, split.Output); err != nil {
		os.Remove(tmp)
		return stats, apperrors.IOf(err, "publishing output of split %s", split.Name)
	}
	return stats, nil
}

// ProcessSplits runs every split concurrently against the shared retriever.
// The first failure cancels the others.
func (a *Augmenter) ProcessSplits(ctx context.Context, splits []config.SplitConfig) ([]Stats, error) {
	results := make([]Stats, len(splits))
	g, gctx := errgroup.WithContext(ctx)
	for i, split := range splits {
		i, split := i, split
		g.Go(func() error {
			log := logger.WithComponent("batch").With("split", split.Name)
			log.Info("split started", "input", split.Input)
			stats, err := a.ProcessFile(gctx, split)
			results[i] = stats
			if err != nil {
				log.Error("split failed", "error", err, "records", stats.Records)
				return err
			}
			log.Info("split complete",
				"records", stats.Records,
				"found", stats.Found,
				"empty", stats.Empty,
				"skipped", stats.Skipped,
				"output", split.Output,
				"duration", stats.Duration.Round(time.Millisecond),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
