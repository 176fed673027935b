// Package partition re-partitions bucketed Intermediate artifacts into
// per-key/per-group Processed directories, one source file at a time
// across a pool of workers.
package partition

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/record"
)

// Run partitions every file under cfg.IntermediateDir (one level below
// its key directory) into cfg.ProcessedDir/<key>/<safe_group>/, using
// cfg.Workers goroutines pulling from a bounded channel.
func Run(cfg config.PartitionConfig) error {
	files, err := discoverIntermediateFiles(cfg.IntermediateDir)
	if err != nil {
		return err
	}

	tasks := make(chan intermediateFile, cfg.Workers)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range tasks {
				if err := partitionFile(f, cfg.ProcessedDir); err != nil {
					// Keep the first error; workers keep draining so the
					// feeder never blocks on a dead pool.
					select {
					case errCh <- fmt.Errorf("partition %s: %w", f.path, err):
					default:
					}
				}
			}
		}()
	}
	for _, f := range files {
		tasks <- f
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

type intermediateFile struct {
	path string
	key  string
}

func discoverIntermediateFiles(intermediateDir string) ([]intermediateFile, error) {
	entries, err := os.ReadDir(intermediateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", errkind.ErrIO, intermediateDir, err)
	}
	var out []intermediateFile
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "checkpoints" {
			continue
		}
		keyDir := filepath.Join(intermediateDir, e.Name())
		files, err := columnar.ListFiles(keyDir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			out = append(out, intermediateFile{path: f, key: e.Name()})
		}
	}
	return out, nil
}

// partitionFile writes, for each distinct group in the file, a
// filtered slice to Processed/<key>/<safe_group>/part-*.parquet.
func partitionFile(f intermediateFile, processedDir string) error {
	rows, err := columnar.ReadFile(f.path)
	if err != nil {
		if errkind.LooksCorrupted(err) {
			return nil // corrupted intermediate artifacts are skipped, not fatal
		}
		return err
	}

	byGroup := make(map[string][]record.Record)
	for _, r := range rows {
		byGroup[r.Group] = append(byGroup[r.Group], r)
	}

	for group, groupRows := range byGroup {
		safe := record.SafeGroup(group)
		dir := filepath.Join(processedDir, f.key, safe)
		path := filepath.Join(dir, columnar.NewArtifactName("part"))
		if err := columnar.WriteFile(path, groupRows); err != nil {
			return err
		}
	}
	return nil
}
