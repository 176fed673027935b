package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/durablestate"
	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/linestream"
	"github.com/oniz93/business-finder/record"
	"github.com/oniz93/business-finder/sampleindex"
)

// Reporter receives progress notices; nil-safe (a Driver with no
// Reporter runs silently). Plain printf-style lines suffice here since
// this package's concern is bulk file I/O, not service telemetry.
type Reporter interface {
	Logf(format string, args ...any)
}

// Driver runs the full ingestion pipeline for one invocation.
type Driver struct {
	Cfg      config.IngestConfig
	Store    durablestate.Store // backs processing_state.json
	Prober   columnar.Prober    // used only when Cfg.Restore is set
	Reporter Reporter
	S3       *linestream.S3Backend // set only when a base dir is an s3:// URI
}

// openRaw opens a discovered file for line iteration, transparently
// routing through d.S3 when path is an "s3://bucket/key" URI instead of
// a local path.
func (d *Driver) openRaw(ctx context.Context, path string) (linestream.LineStream, error) {
	if bucket, key, ok := linestream.ParseS3URI(path); ok {
		if d.S3 == nil {
			return nil, fmt.Errorf("%w: %s: no S3 backend configured", errkind.ErrIO, path)
		}
		return d.S3.OpenS3(ctx, bucket, key)
	}
	return linestream.Open(path)
}

func (d *Driver) logf(format string, args ...any) {
	if d.Reporter != nil {
		d.Reporter.Logf(format, args...)
	}
}

// Run discovers files, optionally verifies resume points, then
// processes files with Cfg.Workers goroutines unless Cfg.SkipPhase1 is
// set.
func (d *Driver) Run(ctx context.Context) error {
	state, err := LoadState(ctx, d.Store)
	if err != nil {
		return err
	}

	files, err := Discover(d.Cfg.BaseDirs)
	if err != nil {
		return fmt.Errorf("%w: discover raw files: %v", errkind.ErrIO, err)
	}

	if d.Cfg.Restore {
		checkFiles := FilterOnlyExclude(files, d.Cfg.OnlyCheckFiles, d.Cfg.ExcludeCheckFiles)
		if err := d.verifyResumePoints(ctx, checkFiles, state); err != nil {
			return err
		}
		if err := state.Flush(ctx, d.Store); err != nil {
			return err
		}
	}

	if d.Cfg.SkipPhase1 {
		return nil
	}
	return d.processFiles(ctx, files, state)
}

// verifyResumePoints generates checkpoints for files that lack one,
// then sequentially determines each file's true resume point and folds
// it into lines_processed. Verification stays sequential to conserve
// memory; each probe can page large partitions through the process.
func (d *Driver) verifyResumePoints(ctx context.Context, files []DiscoveredFile, state *State) error {
	for _, f := range files {
		st := state.Get(f.Path)
		if st.Status == StatusCompleted {
			continue
		}
		cp, ok, err := sampleindex.Load(ctx, d.Cfg.IntermediateDir, f.Name)
		if err != nil {
			return err
		}
		if !ok {
			cp, err = sampleindex.Generate(ctx, f.Path, f.Name, d.Cfg.IntermediateDir, d.Cfg.CheckpointInterval, d.Cfg.CheckpointWindow)
			if err != nil {
				return err
			}
		}
		resume, err := sampleindex.FindResumePoint(cp, f.Path, d.Prober)
		if err != nil {
			return err
		}
		d.logf("ingest: restore verified %s resume=%d/%d", f.Name, resume, cp.TotalLines)
		state.Set(f.Path, FileProcessState{Status: st.Status, LinesProcessed: resume})
	}
	return nil
}

// processFiles fans discovered files out over Cfg.Workers goroutines
// pulling from a shared channel.
func (d *Driver) processFiles(ctx context.Context, files []DiscoveredFile, state *State) error {
	tasks := make(chan DiscoveredFile)
	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	for i := 0; i < d.Cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for f := range tasks {
				err := d.processFile(ctx, f, state)
				if err == nil {
					err = state.Flush(ctx, d.Store)
				}
				if err != nil {
					// Keep the first error but stay on the channel: a
					// worker that returns early would leave the feeder
					// blocked, and one bad file must not stop the rest.
					d.logf("ingest: worker %d: %s: %v", id, f.Name, err)
					select {
					case errCh <- fmt.Errorf("worker %d: %s: %w", id, f.Name, err):
					default:
					}
				}
			}
		}(i)
	}

feed:
	for _, f := range files {
		st := state.Get(f.Path)
		if st.Status == StatusCompleted {
			continue
		}
		select {
		case tasks <- f:
		case <-ctx.Done():
			break feed
		}
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

// processFile streams one raw file from its resume offset, filtering
// and normalizing each chunk and writing per-key Intermediate
// artifacts.
func (d *Driver) processFile(ctx context.Context, f DiscoveredFile, state *State) error {
	st := state.Get(f.Path)

	s, err := d.openRaw(ctx, f.Path)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	var lineNo uint64
	var chunkIdx int
	chunk := make([]record.Record, 0, d.Cfg.RawChunkSize)

	flushChunk := func() error {
		if len(chunk) == 0 {
			return nil
		}
		byKey := make(map[string][]record.Record)
		for _, r := range chunk {
			byKey[r.Key] = append(byKey[r.Key], r)
		}
		for key, rows := range byKey {
			dir := filepath.Join(d.Cfg.IntermediateDir, key)
			path := filepath.Join(dir, columnar.NewArtifactName("inter"))
			if err := columnar.WriteFile(path, rows); err != nil {
				return err
			}
		}
		chunk = chunk[:0]
		chunkIdx++
		st.LinesProcessed = lineNo
		state.Set(f.Path, st)
		if chunkIdx%d.Cfg.FlushEveryChunks == 0 {
			if err := state.Flush(ctx, d.Store); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		lineNo++
		if lineNo <= st.LinesProcessed {
			continue // already processed in an earlier run
		}

		var raw record.RawLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue // malformed line: skipped silently
		}
		rec := raw.Normalize(f.Kind)
		if !record.Retain(rec, raw.Distinguished) {
			continue
		}
		chunk = append(chunk, rec)

		if len(chunk) >= d.Cfg.RawChunkSize {
			if err := flushChunk(); err != nil {
				return err
			}
		}
	}
	if err := flushChunk(); err != nil {
		return err
	}

	st.Status = StatusCompleted
	st.LinesProcessed = lineNo
	state.Set(f.Path, st)
	return state.Flush(ctx, d.Store)
}
