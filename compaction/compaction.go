// Package compaction coalesces many small per-bucket Intermediate
// artifacts into row-limited compacted ones, one key directory at a
// time.
package compaction

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/record"
)

// Run compacts every key directory under cfg.IntermediateDir, in
// parallel across cfg.Workers goroutines. Directories are independent,
// so each goroutine owns one directory at a time.
func Run(cfg config.CompactionConfig) error {
	keyDirs, err := listKeyDirs(cfg.IntermediateDir)
	if err != nil {
		return err
	}

	tasks := make(chan string)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dir := range tasks {
				if err := compactDir(dir, cfg.RowLimit); err != nil {
					// Keep the first error; workers keep draining so the
					// feeder never blocks on a dead pool.
					select {
					case errCh <- fmt.Errorf("compact %s: %w", dir, err):
					default:
					}
				}
			}
		}()
	}
	for _, dir := range keyDirs {
		tasks <- dir
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

// listKeyDirs returns every subdirectory of intermediateDir except
// "checkpoints", which holds sampleindex state rather than artifacts.
func listKeyDirs(intermediateDir string) ([]string, error) {
	entries, err := os.ReadDir(intermediateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", errkind.ErrIO, intermediateDir, err)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "checkpoints" {
			continue
		}
		dirs = append(dirs, filepath.Join(intermediateDir, e.Name()))
	}
	sort.Strings(dirs)
	return dirs, nil
}

// compactDir reads every artifact in one key directory and rewrites
// the rows as row-limited compacted files, deleting the originals.
func compactDir(dir string, rowLimit int) error {
	files, err := columnar.ListFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	var all []record.Record
	for _, f := range files {
		rows, err := columnar.ReadFile(f)
		if err != nil {
			if errkind.LooksCorrupted(err) {
				continue // a corrupted uncompacted artifact is skipped, not fatal
			}
			return err
		}
		all = append(all, rows...)
	}

	switch {
	case len(all) == 0:
		// height = 0: nothing survived, just delete originals.
	case len(all) <= rowLimit:
		path := filepath.Join(dir, columnar.NewArtifactName("compacted"))
		if err := columnar.WriteFile(path, all); err != nil {
			return err
		}
	default:
		part := 0
		for start := 0; start < len(all); start += rowLimit {
			end := start + rowLimit
			if end > len(all) {
				end = len(all)
			}
			path := filepath.Join(dir, fmt.Sprintf("compacted-%s_part_%d.parquet", uuid.NewString(), part))
			if err := columnar.WriteFile(path, all[start:end]); err != nil {
				return err
			}
			part++
		}
	}

	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("%w: remove compacted original %s: %v", errkind.ErrIO, f, err)
		}
	}
	return nil
}
