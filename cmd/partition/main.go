// Package main implements the partitioning command line interface:
// re-partitioning Intermediate artifacts into the Processed store.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/partition"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("partition", flag.ExitOnError)

	cfg := config.DefaultPartitionConfig()
	intermediateDir := fs.String("intermediate-dir", "", "base directory of Intermediate artifacts")
	processedDir := fs.String("processed-dir", "", "output directory for Processed partitions")
	workers := fs.Int("workers", cfg.Workers, "number of files partitioned concurrently")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.IntermediateDir = *intermediateDir
	cfg.ProcessedDir = *processedDir
	cfg.Workers = *workers

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Printf("partition: partitioning %s into %s", cfg.IntermediateDir, cfg.ProcessedDir)
	if err := partition.Run(cfg); err != nil {
		return fmt.Errorf("partitioning failed: %w", err)
	}
	log.Println("partition: completed successfully")
	return nil
}
