// Package producer walks the Processed store in deterministic sorted
// order, maintains a durable per-subreddit/per-file checkpoint, and
// pushes classification jobs to a bounded remote queue with
// backpressure.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/durablestate"
	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/queue"
)

// Job is one inference job, serialized as JSON and pushed to the jobs
// queue.
type Job struct {
	FilePath string `json:"file_path"`
	RowID    string `json:"row_id"`
	Text     string `json:"text"`
}

// FileState tracks per-file progress within a subreddit.
type FileState struct {
	Path          string `json:"path"`
	RowsProcessed int    `json:"rows_processed"`
}

// SubredditState tracks progress through one group's files.
type SubredditState struct {
	Path        string     `json:"path"` // group directory, relative to ProcessedDir
	FilesQueue  []string   `json:"files_queue"`
	CurrentFile *FileState `json:"current_file,omitempty"`
	FilesDone   []string   `json:"files_done"`
}

// CheckpointState is the durable producer checkpoint.
type CheckpointState struct {
	SubredditQueue   []string        `json:"subreddit_queue"`
	CurrentSubreddit *SubredditState `json:"current_subreddit,omitempty"`
	SubredditsDone   []string        `json:"subreddits_done"`
}

// Producer runs the scan-and-dispatch loop.
type Producer struct {
	Cfg   config.InferenceProducerConfig
	Store durablestate.Store
	Queue queue.Queue
}

// Run walks cfg.ProcessedDir, dispatching jobs until every group is
// exhausted or ctx is cancelled.
func (p *Producer) Run(ctx context.Context) error {
	state, resumed, err := p.loadOrInit(ctx)
	if err != nil {
		return err
	}
	if !resumed {
		// No prior checkpoint: this is a fresh start, so the remote queue
		// may still hold stale jobs from an unrelated earlier run and
		// must be cleared unconditionally.
		err := queue.Retry(ctx, "clear jobs queue", func() error {
			return p.Queue.Delete(ctx, p.Cfg.JobsQueue)
		})
		if err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if state.CurrentSubreddit == nil {
			if len(state.SubredditQueue) == 0 {
				return nil // every group processed
			}
			next := state.SubredditQueue[0]
			state.SubredditQueue = state.SubredditQueue[1:]
			files, err := discoverGroupFiles(p.Cfg.ProcessedDir, next)
			if err != nil {
				return err
			}
			state.CurrentSubreddit = &SubredditState{Path: next, FilesQueue: files}
		}

		if err := p.drainSubreddit(ctx, state); err != nil {
			return err
		}
	}
}

func (p *Producer) drainSubreddit(ctx context.Context, state *CheckpointState) error {
	sub := state.CurrentSubreddit
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if sub.CurrentFile == nil {
			if len(sub.FilesQueue) == 0 {
				state.SubredditsDone = append(state.SubredditsDone, sub.Path)
				state.CurrentSubreddit = nil
				return p.flush(ctx, state)
			}
			next := sub.FilesQueue[0]
			sub.FilesQueue = sub.FilesQueue[1:]
			sub.CurrentFile = &FileState{Path: next}
		}

		done, err := p.processFile(ctx, sub.CurrentFile)
		if err != nil {
			return err
		}
		if err := p.flush(ctx, state); err != nil {
			return err
		}
		if done {
			sub.FilesDone = append(sub.FilesDone, sub.CurrentFile.Path)
			sub.CurrentFile = nil
		}
	}
}

// processFile reads one Processed file, applies the lazy predicate and
// dispatches chunked jobs with backpressure. Returns done=true once every
// eligible row in the file has been dispatched.
func (p *Producer) processFile(ctx context.Context, fs *FileState) (bool, error) {
	rows, err := columnar.ReadFile(fs.Path)
	if err != nil {
		if errkind.LooksCorrupted(err) {
			slog.Warn("producer: skipping corrupted file", "file", fs.Path, "error", err)
			return true, nil
		}
		return false, err
	}

	var eligible []Job
	for _, r := range rows {
		if r.CPUFilterHit && !r.ClassifiedPositive && r.ClassifierScore == nil {
			eligible = append(eligible, Job{FilePath: fs.Path, RowID: r.ID, Text: r.Body})
		}
	}

	start := fs.RowsProcessed
	if start >= len(eligible) {
		return true, nil
	}

	end := start + p.Cfg.ChunkSize
	if end > len(eligible) {
		end = len(eligible)
	}
	chunk := eligible[start:end]

	if err := p.waitForBackpressure(ctx); err != nil {
		return false, err
	}
	if err := p.pushChunk(ctx, chunk); err != nil {
		return false, err
	}

	fs.RowsProcessed = end
	return end >= len(eligible), nil
}

func (p *Producer) waitForBackpressure(ctx context.Context) error {
	for {
		var n int64
		err := queue.Retry(ctx, "jobs queue length", func() error {
			var lerr error
			n, lerr = p.Queue.Length(ctx, p.Cfg.JobsQueue)
			return lerr
		})
		if err != nil {
			return err
		}
		if n <= int64(p.Cfg.HighWater) {
			return nil
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Producer) pushChunk(ctx context.Context, chunk []Job) error {
	if len(chunk) == 0 {
		return nil
	}
	items := make([]string, len(chunk))
	for i, job := range chunk {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("%w: serialize job: %v", errkind.ErrSerialization, err)
		}
		items[i] = string(data)
	}
	return queue.Retry(ctx, "push jobs", func() error {
		return p.Queue.Push(ctx, p.Cfg.JobsQueue, items...)
	})
}

func (p *Producer) loadOrInit(ctx context.Context) (*CheckpointState, bool, error) {
	var state CheckpointState
	ok, err := durablestate.LoadJSON(ctx, p.Store, &state)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return &state, true, nil
	}

	groups, err := discoverGroups(p.Cfg.ProcessedDir)
	if err != nil {
		return nil, false, err
	}
	return &CheckpointState{SubredditQueue: groups}, false, nil
}

func (p *Producer) flush(ctx context.Context, state *CheckpointState) error {
	return durablestate.SaveJSON(ctx, p.Store, state)
}

// discoverGroups lists every <key>/<group> pair under processedDir,
// sorted, giving the producer its deterministic walk order.
func discoverGroups(processedDir string) ([]string, error) {
	keys, err := listDirNames(processedDir)
	if err != nil {
		return nil, err
	}
	var groups []string
	for _, key := range keys {
		subs, err := listDirNames(filepath.Join(processedDir, key))
		if err != nil {
			return nil, err
		}
		for _, g := range subs {
			groups = append(groups, filepath.Join(key, g))
		}
	}
	sort.Strings(groups)
	return groups, nil
}

func discoverGroupFiles(processedDir, relGroup string) ([]string, error) {
	return columnar.ListFiles(filepath.Join(processedDir, relGroup))
}

func listDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read dir %s: %v", errkind.ErrIO, dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
