// Package main implements the embedding producer command line
// interface: the enqueue half of the embedding phase, mirroring the
// Chains tree.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/durablestate"
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
	fs := flag.NewFlagSet("embed-producer", flag.ExitOnError)

	cfg := config.DefaultEmbeddingConfig()
	chainsDir := fs.String("chains-dir", "", "base directory of chains_chunk_*.parquet files")
	embeddingsDir := fs.String("embeddings-dir", "", "mirrored output directory for embedded rows")
	checkpointDir := fs.String("checkpoint-dir", "", "directory holding producer progress and the cached subreddit list")
	queueAddr := fs.String("queue-addr", "", "remote queue address (host:port)")
	jobsQueue := fs.String("jobs-queue", cfg.JobsQueue, "name of the embedding jobs queue")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.ChainsDir = *chainsDir
	cfg.EmbeddingsDir = *embeddingsDir
	cfg.CheckpointDir = *checkpointDir
	cfg.QueueAddr = *queueAddr
	cfg.JobsQueue = *jobsQueue

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.CheckpointDir == "" {
		return fmt.Errorf("checkpoint directory is required")
	}

	progress, err := durablestate.NewFileStore(filepath.Join(cfg.CheckpointDir, "phase4_manager_progress.json"))
	if err != nil {
		return err
	}
	list, err := durablestate.NewFileStore(filepath.Join(cfg.CheckpointDir, "subreddits_list_phase4.json"))
	if err != nil {
		return err
	}

	q := queue.NewRedisQueue(cfg.QueueAddr, 0)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	p := &embedding.Producer{Cfg: cfg, Queue: q, Progress: progress, List: list}
	slog.Info("embed-producer: scanning", "dir", cfg.ChainsDir)
	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("embedding producer failed: %w", err)
	}
	slog.Info("embed-producer: completed successfully")
	return nil
}
