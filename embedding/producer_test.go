package embedding

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/durablestate"
	"github.com/oniz93/business-finder/queue"
	"github.com/oniz93/business-finder/record"
)

func newTestProducer(t *testing.T, cfg config.EmbeddingConfig, q queue.Queue) *Producer {
	t.Helper()
	dir := t.TempDir()
	progress, err := durablestate.NewFileStore(filepath.Join(dir, "phase4_manager_progress.json"))
	if err != nil {
		t.Fatal(err)
	}
	list, err := durablestate.NewFileStore(filepath.Join(dir, "subreddits_list_phase4.json"))
	if err != nil {
		t.Fatal(err)
	}
	return &Producer{Cfg: cfg, Queue: q, Progress: progress, List: list}
}

func TestProducerSkipsAlreadyEmbeddedFiles(t *testing.T) {
	chains := t.TempDir()
	embeddings := t.TempDir()

	done := filepath.Join(chains, "aa", "sub1", "chains_chunk_0.parquet")
	pending := filepath.Join(chains, "aa", "sub1", "chains_chunk_1.parquet")
	if err := columnar.WriteFile(done, []record.Record{{ID: "a"}}); err != nil {
		t.Fatal(err)
	}
	if err := columnar.WriteFile(pending, []record.Record{{ID: "b"}}); err != nil {
		t.Fatal(err)
	}
	// Mirror the already-done file into the Embeddings tree.
	mirrored := filepath.Join(embeddings, "aa", "sub1", "chains_chunk_0.parquet")
	if err := columnar.WriteGeneric(mirrored, []EmbeddedRow{{Record: record.Record{ID: "a"}, Embedding: []float32{1, 2}}}); err != nil {
		t.Fatal(err)
	}

	q := queue.NewMemoryQueue()
	cfg := config.DefaultEmbeddingConfig()
	cfg.ChainsDir = chains
	cfg.EmbeddingsDir = embeddings

	p := newTestProducer(t, cfg, q)
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	n, err := q.Length(context.Background(), cfg.JobsQueue)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("queue length = %d, want 1 (only the pending file)", n)
	}

	item, ok, err := q.BlockingPop(context.Background(), cfg.JobsQueue, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected one job")
	}
	var job Job
	if err := json.Unmarshal([]byte(item), &job); err != nil {
		t.Fatal(err)
	}
	if job.InputPath != pending {
		t.Errorf("input path = %q, want %q", job.InputPath, pending)
	}
}

func TestProducerEmptyChainsDirEnqueuesNothing(t *testing.T) {
	q := queue.NewMemoryQueue()
	cfg := config.DefaultEmbeddingConfig()
	cfg.ChainsDir = t.TempDir()
	cfg.EmbeddingsDir = t.TempDir()

	p := newTestProducer(t, cfg, q)
	if err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	n, _ := q.Length(context.Background(), cfg.JobsQueue)
	if n != 0 {
		t.Errorf("queue length = %d, want 0", n)
	}
}

func TestProducerResumeSkipsScannedSubreddits(t *testing.T) {
	chains := t.TempDir()
	if err := columnar.WriteFile(filepath.Join(chains, "aa", "sub1", "chains_chunk_0.parquet"), []record.Record{{ID: "a"}}); err != nil {
		t.Fatal(err)
	}
	if err := columnar.WriteFile(filepath.Join(chains, "bb", "sub2", "chains_chunk_0.parquet"), []record.Record{{ID: "b"}}); err != nil {
		t.Fatal(err)
	}

	q := queue.NewMemoryQueue()
	cfg := config.DefaultEmbeddingConfig()
	cfg.ChainsDir = chains
	cfg.EmbeddingsDir = t.TempDir()

	p := newTestProducer(t, cfg, q)
	ctx := context.Background()

	// Simulate a prior run that got through aa/sub1 before stopping.
	if err := durablestate.SaveJSON(ctx, p.Progress, CheckpointState{SubredditIndex: 1}); err != nil {
		t.Fatal(err)
	}

	if err := p.Run(ctx); err != nil {
		t.Fatal(err)
	}

	n, err := q.Length(ctx, cfg.JobsQueue)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("queue length = %d, want 1 (aa/sub1 already scanned)", n)
	}

	item, _, err := q.BlockingPop(ctx, cfg.JobsQueue, 0)
	if err != nil {
		t.Fatal(err)
	}
	var job Job
	if err := json.Unmarshal([]byte(item), &job); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(chains, "bb", "sub2", "chains_chunk_0.parquet")
	if job.InputPath != want {
		t.Errorf("input path = %q, want %q", job.InputPath, want)
	}

	// A completed run records an index one past the end.
	var progress CheckpointState
	if _, err := durablestate.LoadJSON(ctx, p.Progress, &progress); err != nil {
		t.Fatal(err)
	}
	if progress.SubredditIndex != 2 {
		t.Errorf("final subreddit index = %d, want 2", progress.SubredditIndex)
	}
}

func TestProducerCachesSubredditList(t *testing.T) {
	chains := t.TempDir()
	if err := columnar.WriteFile(filepath.Join(chains, "aa", "sub1", "chains_chunk_0.parquet"), []record.Record{{ID: "a"}}); err != nil {
		t.Fatal(err)
	}

	q := queue.NewMemoryQueue()
	cfg := config.DefaultEmbeddingConfig()
	cfg.ChainsDir = chains
	cfg.EmbeddingsDir = t.TempDir()

	p := newTestProducer(t, cfg, q)
	ctx := context.Background()
	if err := p.Run(ctx); err != nil {
		t.Fatal(err)
	}

	var cached []string
	ok, err := durablestate.LoadJSON(ctx, p.List, &cached)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || len(cached) != 1 || cached[0] != filepath.Join("aa", "sub1") {
		t.Fatalf("cached list = %v (ok=%v), want [aa/sub1]", cached, ok)
	}
}
