package chainbuilder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/record"
)

func TestExecuteTaskDirectWhenSingleFile(t *testing.T) {
	dataDir := t.TempDir()
	outputDir := t.TempDir()
	partDir := filepath.Join(dataDir, "aa", "sub1")
	rows := []record.Record{{ID: "a", ParentID: "", ClassifiedPositive: true}}
	if err := columnar.WriteFile(filepath.Join(partDir, "part-1.parquet"), rows); err != nil {
		t.Fatal(err)
	}

	if err := ExecuteTask(context.Background(), dataDir, outputDir, "aa/sub1", "", 10_000, 1<<20); err != nil {
		t.Fatal(err)
	}

	out, err := columnar.ReadDir(filepath.Join(outputDir, "aa", "sub1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "a" {
		t.Fatalf("output = %+v, want row a", out)
	}
}

func TestExecuteTaskViaLocalCacheWhenMultipleFiles(t *testing.T) {
	dataDir := t.TempDir()
	outputDir := t.TempDir()
	cacheDir := t.TempDir()
	partDir := filepath.Join(dataDir, "aa", "sub1")
	if err := columnar.WriteFile(filepath.Join(partDir, "part-1.parquet"), []record.Record{{ID: "a", ClassifiedPositive: true}}); err != nil {
		t.Fatal(err)
	}
	if err := columnar.WriteFile(filepath.Join(partDir, "part-2.parquet"), []record.Record{{ID: "b", ClassifiedPositive: true}}); err != nil {
		t.Fatal(err)
	}

	if err := ExecuteTask(context.Background(), dataDir, outputDir, "aa/sub1", cacheDir, 10_000, 1<<20); err != nil {
		t.Fatal(err)
	}

	out, err := columnar.ReadDir(filepath.Join(outputDir, "aa", "sub1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("output = %+v, want 2 rows", out)
	}
}
