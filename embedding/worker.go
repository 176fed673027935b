package embedding

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/queue"
)

// Worker runs the pull-embed-write loop: blocking-pop a single job,
// re-check idempotency, read the input file, embed in batches, write
// the mirrored output atomically.
type Worker struct {
	Cfg       config.EmbeddingConfig
	Queue     queue.Queue
	Session   Session
	Tokenizer Tokenizer
}

// Run pops one job at a time with a 5s blocking-pop timeout (section
// 4.12: "blocking-pop single job w/ 5s timeout") until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var raw string
		var ok bool
		err := queue.Retry(ctx, "pop jobs", func() error {
			var perr error
			raw, ok, perr = w.Queue.BlockingPop(ctx, w.Cfg.JobsQueue, w.Cfg.PopTimeout)
			return perr
		})
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			slog.Warn("embed worker: dropping malformed job", "error", err)
			continue
		}

		if err := w.processJob(ctx, job); err != nil {
			return err
		}
	}
}

// processJob re-checks idempotency at worker time, reads the input
// file, embeds every row's text in batches of Cfg.BatchSize, and
// writes the result atomically to job.OutputPath.
func (w *Worker) processJob(ctx context.Context, job Job) error {
	if _, err := os.Stat(job.OutputPath); err == nil {
		return nil // already embedded by a prior attempt
	}

	rows, err := columnar.ReadFile(job.InputPath)
	if err != nil {
		if errkind.LooksCorrupted(err) {
			slog.Warn("embed worker: skipping corrupted input", "file", job.InputPath, "error", err)
			return nil
		}
		return err
	}
	if len(rows) == 0 {
		return columnar.WriteGeneric(job.OutputPath, []EmbeddedRow{})
	}

	out := make([]EmbeddedRow, len(rows))
	for start := 0; start < len(rows); start += w.Cfg.BatchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := start + w.Cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}

		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = TextOf(rows[i])
		}

		vectors, err := EmbedBatch(w.Session, w.Tokenizer, texts, w.Cfg.MaxLength)
		if err != nil {
			return err
		}
		for i := start; i < end; i++ {
			out[i] = EmbeddedRow{Record: rows[i], Embedding: vectors[i-start]}
		}
	}

	return columnar.WriteGeneric(job.OutputPath, out)
}
