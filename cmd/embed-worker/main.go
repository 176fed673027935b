// Package main implements the embedding worker command line interface:
// the pull-embed-write half of the embedding phase.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/embedding"
	"github.com/oniz93/business-finder/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("embed-worker", flag.ExitOnError)

	cfg := config.DefaultEmbeddingConfig()
	queueAddr := fs.String("queue-addr", "", "remote queue address (host:port)")
	jobsQueue := fs.String("jobs-queue", cfg.JobsQueue, "name of the embedding jobs queue")
	modelPath := fs.String("model", "", "path to the ONNX sentence-transformer model")
	tokenizerPath := fs.String("tokenizer", "", "path to the tokenizer.json")
	embeddingDim := fs.Int("embedding-dim", 384, "hidden-state dimension the model emits per token")
	maxLength := fs.Int("max-length", cfg.MaxLength, "maximum token sequence length")
	batchSize := fs.Int("batch-size", cfg.BatchSize, "rows embedded per internal batch")
	popTimeout := fs.Duration("pop-timeout", cfg.PopTimeout, "blocking-pop timeout per job")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.QueueAddr = *queueAddr
	cfg.JobsQueue = *jobsQueue
	cfg.ModelPath = *modelPath
	cfg.TokenizerPath = *tokenizerPath
	cfg.MaxLength = *maxLength
	cfg.BatchSize = *batchSize
	cfg.PopTimeout = *popTimeout

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if *embeddingDim < 1 {
		return fmt.Errorf("embedding-dim must be at least 1")
	}

	session, err := embedding.NewONNXSession(cfg.ModelPath, *embeddingDim)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	tok, err := embedding.NewSugarmeTokenizer(cfg.TokenizerPath)
	if err != nil {
		return err
	}

	q := queue.NewRedisQueue(cfg.QueueAddr, 0)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	w := &embedding.Worker{Cfg: cfg, Queue: q, Session: session, Tokenizer: tok}
	slog.Info("embed-worker: pulling", "queue", cfg.JobsQueue)
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("embedding worker failed: %w", err)
	}
	slog.Info("embed-worker: completed successfully")
	return nil
}
