package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/durablestate"
)

func writeRawFile(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestDiscoverMatchesKindPrefixAndSuffix(t *testing.T) {
	dir := t.TempDir()
	writeRawFile(t, dir, "RS_2021-01.txt", []string{"{}"})
	writeRawFile(t, dir, "RC_2021-01.txt", []string{"{}"})
	writeRawFile(t, dir, "notes.txt", []string{"{}"})

	files, err := Discover([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2: %+v", len(files), files)
	}
}

func TestFilterOnlyExclude(t *testing.T) {
	files := []DiscoveredFile{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	got := FilterOnlyExclude(files, []string{"a", "b"}, []string{"b"})
	if len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("got %+v", got)
	}
}

func TestDriverRunProcessesAndWritesIntermediate(t *testing.T) {
	base := t.TempDir()
	intermediate := t.TempDir()

	writeRawFile(t, base, "RC_test.txt", []string{
		`{"id":"a1","subreddit":"AskReddit","author":"alice","body":"I have an idea: build X","ups":10,"downs":0}`,
		`{"id":"a2","subreddit":"AskReddit","author":"helperBot","body":"I have an idea: build Y","ups":10,"downs":0}`,
	})

	store, err := durablestate.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultIngestConfig()
	cfg.BaseDirs = []string{base}
	cfg.IntermediateDir = intermediate
	cfg.RawChunkSize = 10
	cfg.FlushEveryChunks = 1

	d := &Driver{Cfg: cfg, Store: store}
	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	rows, err := columnar.ReadDir(filepath.Join(intermediate, "as"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (bot author excluded): %+v", len(rows), rows)
	}
	if rows[0].ID != "a1" {
		t.Errorf("id = %q, want a1", rows[0].ID)
	}

	st, err := LoadState(context.Background(), store)
	if err != nil {
		t.Fatal(err)
	}
	entry := st.Get(filepath.Join(base, "RC_test.txt"))
	if entry.Status != StatusCompleted {
		t.Errorf("status = %v, want Completed", entry.Status)
	}
	if entry.LinesProcessed != 2 {
		t.Errorf("lines processed = %d, want 2", entry.LinesProcessed)
	}
}
