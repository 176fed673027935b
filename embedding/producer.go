package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/durablestate"
	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/queue"
)

// Job is one embedding job: one Chains-tree file to embed into the
// mirrored Embeddings-tree location. Unlike the classification Job
// (one job per row), embedding jobs are whole-file; the worker batches
// rows internally.
type Job struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
}

// CheckpointState is the durable producer progress: the index of the
// next subreddit to scan in the cached subreddit list.
type CheckpointState struct {
	SubredditIndex int `json:"subreddit_index"`
}

// Producer walks the Chains tree subreddit by subreddit, enqueuing one
// Job per file whose mirrored Embeddings-tree output does not already
// exist. The subreddit list and the scan position both persist across
// restarts: List caches the sorted <key>/<group> walk so re-runs skip
// the directory sweep, and Progress records how far the scan got.
type Producer struct {
	Cfg      config.EmbeddingConfig
	Queue    queue.Queue
	Progress durablestate.Store // subreddit_index progress
	List     durablestate.Store // cached subreddit list
}

// Run scans each subreddit's files in list order starting from the
// checkpointed index, persisting progress before every subreddit so a
// restart resumes where the scan left off. The output-exists check here
// is the enqueue-time half of the idempotency rule; the worker
// re-checks at execution time.
func (p *Producer) Run(ctx context.Context) error {
	subreddits, err := p.loadOrScanSubreddits(ctx)
	if err != nil {
		return err
	}

	var progress CheckpointState
	if _, err := durablestate.LoadJSON(ctx, p.Progress, &progress); err != nil {
		return err
	}
	if progress.SubredditIndex >= len(subreddits) {
		return nil // every subreddit already scanned
	}

	for i := progress.SubredditIndex; i < len(subreddits); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		progress.SubredditIndex = i
		if err := durablestate.SaveJSON(ctx, p.Progress, progress); err != nil {
			return err
		}

		if err := p.enqueueSubreddit(ctx, subreddits[i]); err != nil {
			return err
		}
	}

	progress.SubredditIndex = len(subreddits)
	return durablestate.SaveJSON(ctx, p.Progress, progress)
}

// enqueueSubreddit pushes one Job per not-yet-embedded file in a single
// <key>/<group> directory.
func (p *Producer) enqueueSubreddit(ctx context.Context, relGroup string) error {
	files, err := columnar.ListFiles(filepath.Join(p.Cfg.ChainsDir, relGroup))
	if err != nil {
		return err
	}

	var items []string
	for _, inputPath := range files {
		outputPath := filepath.Join(p.Cfg.EmbeddingsDir, relGroup, filepath.Base(inputPath))
		if _, err := os.Stat(outputPath); err == nil {
			continue // already embedded
		}

		job := Job{InputPath: inputPath, OutputPath: outputPath}
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("%w: serialize job: %v", errkind.ErrSerialization, err)
		}
		items = append(items, string(data))
	}

	if len(items) == 0 {
		return nil
	}
	return queue.Retry(ctx, "push jobs", func() error {
		return p.Queue.Push(ctx, p.Cfg.JobsQueue, items...)
	})
}

// loadOrScanSubreddits returns the cached subreddit list, scanning the
// Chains tree and caching the result when no prior list exists.
func (p *Producer) loadOrScanSubreddits(ctx context.Context) ([]string, error) {
	var subreddits []string
	ok, err := durablestate.LoadJSON(ctx, p.List, &subreddits)
	if err != nil {
		return nil, err
	}
	if ok {
		return subreddits, nil
	}

	subreddits, err = discoverSubreddits(p.Cfg.ChainsDir)
	if err != nil {
		return nil, err
	}
	if err := durablestate.SaveJSON(ctx, p.List, subreddits); err != nil {
		return nil, err
	}
	return subreddits, nil
}

// discoverSubreddits lists every <key>/<group> directory under dataDir
// in sorted order, the same two-level layout the chain builder writes.
func discoverSubreddits(dataDir string) ([]string, error) {
	keys, err := listDirNames(dataDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, key := range keys {
		groups, err := listDirNames(filepath.Join(dataDir, key))
		if err != nil {
			return nil, err
		}
		for _, group := range groups {
			out = append(out, filepath.Join(key, group))
		}
	}
	sort.Strings(out)
	return out, nil
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
