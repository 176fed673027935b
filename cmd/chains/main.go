// Package main implements the chain builder command line interface:
// root-reachability filtering run standalone, or distributed over the
// coordinator/worker protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/oniz93/business-finder/chainbuilder"
	"github.com/oniz93/business-finder/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("chains", flag.ExitOnError)

	cfg := config.DefaultChainConfig()
	mode := fs.String("mode", string(config.ChainModeStandalone), "run mode: standalone|coordinator|worker")
	dataDir := fs.String("data-dir", "", "base directory of partitions to process")
	outputDir := fs.String("output-dir", "", "output directory for chains_chunk_*.parquet files")
	group := fs.String("subreddit", "", "standalone mode: restrict to a single subreddit's partition")
	coordinatorAddr := fs.String("coordinator-addr", "", "worker mode: coordinator address (host:port); resolved via mDNS if empty")
	localCacheDir := fs.String("local-cache-dir", "", "worker mode: local directory used to stage multi-file partitions")
	workerID := fs.String("worker-id", "", "worker mode: identifier reported to the coordinator")
	port := fs.Int("port", cfg.Port, "coordinator mode: TCP listen port")
	checkpointFile := fs.String("checkpoint-file", "", "coordinator mode: path to the durable task checkpoint")
	chunkSize := fs.Int("chunk-size", cfg.ChunkSize, "candidate ids processed per SQL chunk")
	memoryFraction := fs.Float64("memory-fraction", cfg.MemoryFraction, "fraction of system RAM allotted to the in-process SQL engine")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.Mode = config.ChainMode(*mode)
	cfg.DataDir = *dataDir
	cfg.OutputDir = *outputDir
	cfg.Group = *group
	cfg.CoordinatorAddr = *coordinatorAddr
	cfg.LocalCacheDir = *localCacheDir
	cfg.WorkerID = *workerID
	cfg.Port = *port
	cfg.CheckpointFile = *checkpointFile
	cfg.ChunkSize = *chunkSize
	cfg.MemoryFraction = *memoryFraction

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer cancel()

	switch cfg.Mode {
	case config.ChainModeStandalone:
		log.Printf("chains: standalone run over %s", cfg.DataDir)
		if err := chainbuilder.RunStandalone(ctx, cfg); err != nil {
			return fmt.Errorf("chain builder failed: %w", err)
		}
	case config.ChainModeCoordinator:
		log.Printf("chains: coordinator listening on port %d", cfg.Port)
		if err := chainbuilder.RunCoordinator(ctx, cfg); err != nil {
			return fmt.Errorf("chain builder coordinator failed: %w", err)
		}
	case config.ChainModeWorker:
		log.Printf("chains: worker %s connecting to %s", cfg.WorkerID, cfg.CoordinatorAddr)
		if err := chainbuilder.RunWorkerMode(ctx, cfg); err != nil {
			return fmt.Errorf("chain builder worker failed: %w", err)
		}
	}

	log.Println("chains: completed successfully")
	return nil
}
