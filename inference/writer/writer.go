// Package writer consumes classification results grouped by file_path
// and performs a per-file left-join update into the columnar store,
// atomically.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/inference/worker"
	"github.com/oniz93/business-finder/queue"
)

// Writer runs the accumulate-then-flush loop.
type Writer struct {
	Cfg   config.InferenceWriterConfig
	Queue queue.Queue
}

// Run consumes results until the results queue yields nothing for
// Cfg.PopTimeout while the buffer is empty. Non-empty-buffer timeouts
// trigger a flush instead of a shutdown.
func (w *Writer) Run(ctx context.Context) error {
	buffer := make(map[string][]worker.Result) // file_path -> results
	total := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var raw string
		var ok bool
		err := queue.Retry(ctx, "pop results", func() error {
			var perr error
			raw, ok, perr = w.Queue.BlockingPop(ctx, w.Cfg.ResultsQueue, w.Cfg.PopTimeout)
			return perr
		})
		if err != nil {
			return err
		}
		if !ok {
			if total == 0 {
				return nil // empty buffer + timeout: shut down
			}
			if err := w.flushAll(buffer); err != nil {
				return err
			}
			buffer = make(map[string][]worker.Result)
			total = 0
			continue
		}

		var result worker.Result
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			continue // malformed result: dropped
		}
		buffer[result.FilePath] = append(buffer[result.FilePath], result)
		total++

		if total >= w.Cfg.BatchWriter {
			if err := w.flushAll(buffer); err != nil {
				return err
			}
			buffer = make(map[string][]worker.Result)
			total = 0
		}
	}
}

// flushAll writes every accumulated file, isolating per-file errors so
// one bad file never blocks the others.
func (w *Writer) flushAll(buffer map[string][]worker.Result) error {
	for path, results := range buffer {
		if err := applyResults(path, results); err != nil {
			// Per-file errors (corrupted files included) are logged and
			// skipped: the writer must not let one bad file stall the
			// pipeline, and at-least-once re-runs will revisit the rows.
			slog.Warn("writer: dropping results for file", "file", path, "results", len(results), "error", err)
			continue
		}
	}
	return nil
}

// applyResults joins results into a single target file by row id and
// rewrites it atomically.
func applyResults(path string, results []worker.Result) error {
	byID := make(map[string]worker.Result, len(results))
	for _, r := range results {
		byID[r.RowID] = r
	}

	rows, err := columnar.ReadFile(path)
	if err != nil {
		return err
	}

	for i, row := range rows {
		r, found := byID[row.ID]
		if !found {
			continue
		}
		// classified_positive = (new_label IS NULL) ? unchanged : (new_label == "idea")
		if r.Label != "" {
			rows[i].ClassifiedPositive = r.Label == "idea"
		}
		score := r.Score
		rows[i].ClassifierScore = &score
	}

	if err := columnar.WriteFile(path, rows); err != nil {
		return fmt.Errorf("%w: rewrite %s: %v", errkind.ErrIO, path, err)
	}
	return nil
}
