package compaction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/record"
)

func writeIntermediate(t *testing.T, dir, key string, n int) {
	t.Helper()
	keyDir := filepath.Join(dir, key)
	var rows []record.Record
	for i := 0; i < n; i++ {
		rows = append(rows, record.Record{ID: "id", Key: key})
	}
	if err := columnar.WriteFile(filepath.Join(keyDir, columnar.NewArtifactName("inter")), rows); err != nil {
		t.Fatal(err)
	}
}

func TestCompactDirBelowRowLimitProducesOneFile(t *testing.T) {
	dir := t.TempDir()
	writeIntermediate(t, dir, "as", 3)
	writeIntermediate(t, dir, "as", 2)

	cfg := config.DefaultCompactionConfig()
	cfg.IntermediateDir = dir
	cfg.Workers = 1
	if err := Run(cfg); err != nil {
		t.Fatal(err)
	}

	files, err := columnar.ListFiles(filepath.Join(dir, "as"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1: %v", len(files), files)
	}
	rows, err := columnar.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Errorf("rows = %d, want 5", len(rows))
	}
}

func TestCompactDirAboveRowLimitSplitsIntoParts(t *testing.T) {
	dir := t.TempDir()
	writeIntermediate(t, dir, "zz", 7)

	cfg := config.DefaultCompactionConfig()
	cfg.IntermediateDir = dir
	cfg.Workers = 1
	cfg.RowLimit = 3
	if err := Run(cfg); err != nil {
		t.Fatal(err)
	}

	files, err := columnar.ListFiles(filepath.Join(dir, "zz"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files, want 3 parts: %v", len(files), files)
	}
}

func TestListKeyDirsSkipsCheckpoints(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "checkpoints"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "as"), 0o755); err != nil {
		t.Fatal(err)
	}
	dirs, err := listKeyDirs(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 1 || filepath.Base(dirs[0]) != "as" {
		t.Fatalf("got %v", dirs)
	}
}
