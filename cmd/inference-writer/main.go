// Package main implements the inference writer command line interface:
// the left-join of classification results back into the Processed
// store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/inference/writer"
	"github.com/oniz93/business-finder/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("inference-writer", flag.ExitOnError)

	cfg := config.DefaultInferenceWriterConfig()
	queueAddr := fs.String("queue-addr", "", "remote queue address (host:port)")
	resultsQueue := fs.String("results-queue", cfg.ResultsQueue, "name of the results queue")
	batchWriter := fs.Int("batch-writer", cfg.BatchWriter, "results accumulated per file before flush")
	popTimeout := fs.Duration("pop-timeout", cfg.PopTimeout, "blocking-pop timeout; an empty buffer idle this long shuts down")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.QueueAddr = *queueAddr
	cfg.ResultsQueue = *resultsQueue
	cfg.BatchWriter = *batchWriter
	cfg.PopTimeout = *popTimeout

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	q := queue.NewRedisQueue(cfg.QueueAddr, 0)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	w := &writer.Writer{Cfg: cfg, Queue: q}
	slog.Info("inference-writer: draining", "queue", cfg.ResultsQueue)
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("inference writer failed: %w", err)
	}
	slog.Info("inference-writer: completed successfully")
	return nil
}
