package evaluation

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pair is one ground truth / prediction pair.
type Pair struct {
	ID          string         `json:"id,omitempty"`
	GroundTruth map[string]any `json:"ground_truth" validate:"required"`
	Prediction  map[string]any `json:"prediction"`
}

// Row is a scored pair.
type Row struct {
	ID      string  `json:"id,omitempty"`
	Metrics Metrics `json:"metrics"`
}

// Summary averages a batch. ExactMatch is the share of exact matches.
type Summary struct {
	Count         int     `json:"count"`
	ExactMatch    float64 `json:"exact_match_rate"`
	FieldAccuracy float64 `json:"field_level_accuracy"`
	Levenshtein   float64 `json:"levenshtein"`
	BLEU          float64 `json:"bleu"`
	F1            float64 `json:"f1"`
	MSE           float64 `json:"mse"`
}

// EvaluateBatch scores pairs concurrently, preserving input order. It stops
// early and returns ctx.Err() when the context is cancelled.
func EvaluateBatch(ctx context.Context, pairs []Pair, logger *slog.Logger) ([]Row, Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	rows := make([]Row, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = Row{ID: p.ID, Metrics: Evaluate(p.GroundTruth, p.Prediction)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}

	sum := Summarize(rows)
	logger.Info("evaluation.batch.done",
		"count", sum.Count,
		"exact_match_rate", sum.ExactMatch,
		"field_level_accuracy", sum.FieldAccuracy,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rows, sum, nil
}

// Summarize averages row metrics.
func Summarize(rows []Row) Summary {
	s := Summary{Count: len(rows)}
	if len(rows) == 0 {
		return s
	}
	for _, r := range rows {
		if r.Metrics.ExactMatch {
			s.ExactMatch++
		}
		s.FieldAccuracy += r.Metrics.FieldAccuracy
		s.Levenshtein += r.Metrics.Levenshtein
		s.BLEU += r.Metrics.BLEU
		s.F1 += r.Metrics.F1
		s.MSE += r.Metrics.MSE
	}
	n := float64(len(rows))
	s.ExactMatch /= n
	s.FieldAccuracy /= n
	s.Levenshtein /= n
	s.BLEU /= n
	s.F1 /= n
	s.MSE /= n
	return s
}
