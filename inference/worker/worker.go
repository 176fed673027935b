// Package worker pulls batches of classification jobs from the remote
// queue, runs zero-shot NLI classification via the classifier package,
// and pushes results.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oniz93/business-finder/classifier"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/inference/producer"
	"github.com/oniz93/business-finder/queue"
)

// Result is one classification outcome, pushed to the results queue.
type Result struct {
	FilePath string  `json:"file_path"`
	RowID    string  `json:"row_id"`
	Label    string  `json:"label"`
	Score    float32 `json:"score"`
}

// Worker runs the pull-classify-push loop.
type Worker struct {
	Cfg       config.InferenceWorkerConfig
	Queue     queue.Queue
	Session   classifier.Session
	Tokenizer classifier.Tokenizer
}

// Run pulls batches until ctx is cancelled. A batch with nothing
// available is followed by a short sleep rather than a busy spin.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.waitForBackpressure(ctx); err != nil {
			return err
		}

		var items []string
		err := queue.Retry(ctx, "pop jobs", func() error {
			var perr error
			items, perr = w.Queue.PopUpToN(ctx, w.Cfg.JobsQueue, w.Cfg.BatchSize)
			return perr
		})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if err := w.processBatch(ctx, items); err != nil {
			return err
		}
	}
}

func (w *Worker) waitForBackpressure(ctx context.Context) error {
	for {
		var n int64
		err := queue.Retry(ctx, "results queue length", func() error {
			var lerr error
			n, lerr = w.Queue.Length(ctx, w.Cfg.ResultsQueue)
			return lerr
		})
		if err != nil {
			return err
		}
		if n <= int64(w.Cfg.BackpressureResults) {
			return nil
		}
		select {
		case <-time.After(5 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, items []string) error {
	var results []string
	for _, raw := range items {
		var job producer.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			slog.Warn("worker: dropping malformed job", "error", err)
			continue
		}

		outcome, err := classifier.Classify(w.Session, w.Tokenizer, job.Text, w.Cfg.Labels, w.Cfg.HypothesisTemplate, w.Cfg.MaxLength, w.Cfg.EntailmentIndex)
		if err != nil {
			// Dropped, not retried per-job: at-least-once semantics come
			// from whole-system re-runs.
			slog.Warn("worker: dropping failed job", "row_id", job.RowID, "error", err)
			continue
		}

		result := Result{FilePath: job.FilePath, RowID: job.RowID, Label: outcome.Label, Score: outcome.Score}
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("%w: serialize result: %v", errkind.ErrSerialization, err)
		}
		results = append(results, string(data))
	}
	if len(results) == 0 {
		return nil
	}
	return queue.Retry(ctx, "push results", func() error {
		return w.Queue.Push(ctx, w.Cfg.ResultsQueue, results...)
	})
}
