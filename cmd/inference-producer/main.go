// Package main implements the inference producer command line
// interface: scanning the Processed store and dispatching
// classification jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/durablestate"
	"github.com/oniz93/business-finder/inference/producer"
	"github.com/oniz93/business-finder/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("inference-producer", flag.ExitOnError)

	cfg := config.DefaultInferenceProducerConfig()

	processedDir := fs.String("processed-dir", "", "base directory of Processed partitions")
	stateFile := fs.String("state-file", "", "path to the producer's durable checkpoint file")
	queueAddr := fs.String("queue-addr", "", "remote queue address (host:port)")
	jobsQueue := fs.String("jobs-queue", cfg.JobsQueue, "name of the jobs queue")
	chunkSize := fs.Int("chunk-size", cfg.ChunkSize, "rows dispatched per pushed chunk")
	highWater := fs.Int("high-water", cfg.HighWater, "jobs queue high-water mark for backpressure")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.ProcessedDir = *processedDir
	cfg.StateFile = *stateFile
	cfg.QueueAddr = *queueAddr
	cfg.JobsQueue = *jobsQueue
	cfg.ChunkSize = *chunkSize
	cfg.HighWater = *highWater

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := durablestate.NewFileStore(cfg.StateFile)
	if err != nil {
		return err
	}
	q := queue.NewRedisQueue(cfg.QueueAddr, 0)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	p := &producer.Producer{Cfg: cfg, Store: store, Queue: q}
	slog.Info("inference-producer: scanning", "dir", cfg.ProcessedDir)
	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("inference producer failed: %w", err)
	}
	slog.Info("inference-producer: completed successfully")
	return nil
}
