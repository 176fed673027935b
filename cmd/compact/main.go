// Package main implements the compaction command line interface:
// coalescing small Intermediate artifacts into row-limited ones.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/oniz93/business-finder/compaction"
	"github.com/oniz93/business-finder/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)

	cfg := config.DefaultCompactionConfig()
	intermediateDir := fs.String("intermediate-dir", "", "base directory of Intermediate artifacts to compact")
	rowLimit := fs.Int("row-limit", cfg.RowLimit, "maximum rows per compacted file")
	workers := fs.Int("workers", cfg.Workers, "number of directories compacted concurrently")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.IntermediateDir = *intermediateDir
	cfg.RowLimit = *rowLimit
	cfg.Workers = *workers

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Printf("compaction: compacting %s (row limit %d)", cfg.IntermediateDir, cfg.RowLimit)
	if err := compaction.Run(cfg); err != nil {
		return fmt.Errorf("compaction failed: %w", err)
	}
	log.Println("compaction: completed successfully")
	return nil
}
