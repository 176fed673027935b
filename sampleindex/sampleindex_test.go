package sampleindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/oniz93/business-finder/columnar"
)

// fakeProber reports ids present per key from an in-memory set, mirroring
// columnar.Prober without touching the filesystem.
type fakeProber struct {
	present map[string]map[string]bool // key -> id -> present
}

func (f *fakeProber) Matched(key string, ids []string) (int, error) {
	m := 0
	for _, id := range ids {
		if f.present[key] != nil && f.present[key][id] {
			m++
		}
	}
	return m, nil
}

func writeLines(t *testing.T, path string, n int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	for i := 1; i <= n; i++ {
		fmt.Fprintf(f, "{\"id\":\"id%d\",\"subreddit\":\"AskReddit\"}\n", i)
	}
}

func TestGenerateDiscardsShortTailWindow(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "RC_test.txt")
	writeLines(t, raw, 23) // interval 10, window 5: windows at 1,11,21; window at 21 only has 3 lines (21-23) -> discarded

	cp, err := Generate(context.Background(), raw, "RC_test.txt", dir, 10, 5)
	if err != nil {
		t.Fatal(err)
	}
	if cp.TotalLines != 23 {
		t.Errorf("total lines = %d, want 23", cp.TotalLines)
	}
	if len(cp.Samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(cp.Samples))
	}
	for _, s := range cp.Samples {
		if len(s.Entries) != 5 {
			t.Errorf("sample at %d has %d entries, want 5", s.LineNumber, len(s.Entries))
		}
	}
}

func TestFindResumePointNoSamplesResumesFromScan(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "RC_empty.txt")
	writeLines(t, raw, 3)

	prober := &fakeProber{present: map[string]map[string]bool{}}
	r, err := FindResumePoint(Checkpoint{}, raw, prober)
	if err != nil {
		t.Fatal(err)
	}
	if r != 0 {
		t.Errorf("resume = %d, want 0 for nothing present", r)
	}
}

func TestFindResumePointFirstSampleNoneMeansZero(t *testing.T) {
	cp := Checkpoint{
		TotalLines: 100,
		Samples: []Sample{
			{LineNumber: 1, Entries: []Entry{{ID: "id1", Key: "as"}}},
			{LineNumber: 51, Entries: []Entry{{ID: "id51", Key: "as"}}},
		},
	}
	prober := &fakeProber{present: map[string]map[string]bool{}}
	r, err := FindResumePoint(cp, "/nonexistent", prober)
	if err != nil {
		t.Fatal(err)
	}
	if r != 0 {
		t.Errorf("resume = %d, want 0", r)
	}
}

func TestFindResumePointLastSampleAllMeansTotalLines(t *testing.T) {
	cp := Checkpoint{
		TotalLines: 100,
		Samples: []Sample{
			{LineNumber: 1, Entries: []Entry{{ID: "id1", Key: "as"}}},
			{LineNumber: 100, Entries: []Entry{{ID: "id100", Key: "as"}}},
		},
	}
	prober := &fakeProber{present: map[string]map[string]bool{
		"as": {"id1": true, "id100": true},
	}}
	r, err := FindResumePoint(cp, "/nonexistent", prober)
	if err != nil {
		t.Fatal(err)
	}
	if r != 100 {
		t.Errorf("resume = %d, want 100", r)
	}
}

func TestClassifyViaProbeSample(t *testing.T) {
	s := Sample{Entries: []Entry{{ID: "a", Key: "zz"}, {ID: "b", Key: "zz"}}}
	prober := &fakeProber{present: map[string]map[string]bool{"zz": {"a": true}}}
	status, err := probeSample(s, prober)
	if err != nil {
		t.Fatal(err)
	}
	if status != columnar.StatusPartial {
		t.Errorf("status = %v, want Partial", status)
	}
}

func TestFindResumePointBinarySearchWithFineScan(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "RC_resume.txt")
	writeLines(t, raw, 350)

	cp := Checkpoint{
		TotalLines: 350,
		Samples: []Sample{
			{LineNumber: 1, Entries: []Entry{{ID: "id1", Key: "as"}, {ID: "id2", Key: "as"}}},
			{LineNumber: 101, Entries: []Entry{{ID: "id101", Key: "as"}, {ID: "id102", Key: "as"}}},
			{LineNumber: 201, Entries: []Entry{{ID: "id201", Key: "as"}, {ID: "id202", Key: "as"}}},
			{LineNumber: 301, Entries: []Entry{{ID: "id301", Key: "as"}, {ID: "id302", Key: "as"}}},
		},
	}

	// Lines 1-150 are already in the Processed store: samples 0 and 1
	// probe All, samples 2 and 3 probe None, and the fine scan over
	// lines 101-200 finds the last present entry at line 150.
	present := map[string]bool{}
	for i := 1; i <= 150; i++ {
		present[fmt.Sprintf("id%d", i)] = true
	}
	prober := &fakeProber{present: map[string]map[string]bool{"as": present}}

	r, err := FindResumePoint(cp, raw, prober)
	if err != nil {
		t.Fatal(err)
	}
	if r != 150 {
		t.Errorf("resume = %d, want 150 (one past the last present line)", r)
	}
}
