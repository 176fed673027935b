package chainbuilder

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/oniz93/business-finder/config"
)

// RunStandalone walks every partition under cfg.DataDir and processes
// each independently, in parallel across key/group directories. This is
// the mode used when cmd/chains runs with --mode standalone and no
// coordinator is involved.
func RunStandalone(ctx context.Context, cfg config.ChainConfig) error {
	partitions, err := DiscoverPartitions(cfg.DataDir)
	if err != nil {
		return err
	}
	if cfg.Group != "" {
		partitions = filterByGroup(partitions, cfg.Group)
	}

	cacheBytes := MemoryBudget(cfg.MemoryFraction)
	workers := runtime.NumCPU()
	if workers > len(partitions) {
		workers = len(partitions)
	}
	if workers < 1 {
		workers = 1
	}

	tasks := make(chan Partition)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range tasks {
				outDir := filepath.Join(cfg.OutputDir, p.RelativePath)
				if err := ProcessPartition(ctx, p.Dir, outDir, cfg.ChunkSize, cacheBytes); err != nil {
					// Keep the first error; workers keep draining so the
					// feeder never blocks on a dead pool.
					select {
					case errCh <- fmt.Errorf("process partition %s: %w", p.RelativePath, err):
					default:
					}
				}
			}
		}()
	}
	for _, p := range partitions {
		tasks <- p
	}
	close(tasks)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

func filterByGroup(partitions []Partition, group string) []Partition {
	var out []Partition
	for _, p := range partitions {
		if p.Group == group {
			out = append(out, p)
		}
	}
	return out
}
