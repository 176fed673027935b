package durablestate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type sampleState struct {
	LastLine int    `json:"last_line"`
	Note     string `json:"note"`
}

func TestFileStoreLoadMissingIsNotOK(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	_, ok, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing state")
	}
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	want := sampleState{LastLine: 42, Note: "resume here"}
	if err := SaveJSON(ctx, fs, want); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("expected .tmp file to be renamed away, not left behind")
	}

	var got sampleState
	ok, err := LoadJSON(ctx, fs, &got)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected ok=true after save")
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestFileStoreSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := SaveJSON(ctx, fs, sampleState{LastLine: 1}); err != nil {
		t.Fatal(err)
	}
	if err := SaveJSON(ctx, fs, sampleState{LastLine: 2}); err != nil {
		t.Fatal(err)
	}
	var got sampleState
	if _, err := LoadJSON(ctx, fs, &got); err != nil {
		t.Fatal(err)
	}
	if got.LastLine != 2 {
		t.Fatalf("got %+v, want LastLine=2", got)
	}
}

func TestNewFileStoreRejectsRelativePath(t *testing.T) {
	if _, err := NewFileStore("relative/path.json"); err == nil {
		t.Fatal("expected error for relative path")
	}
}
