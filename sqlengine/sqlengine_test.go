package sqlengine

import (
	"testing"

	"github.com/oniz93/business-finder/record"
)

func TestLoadAndParentOf(t *testing.T) {
	e, err := Open(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = e.Close() }()

	rows := []record.Record{
		{ID: "a", ParentID: "t3_b", ClassifiedPositive: true},
		{ID: "b", ParentID: ""},
	}
	if err := e.Load(rows); err != nil {
		t.Fatal(err)
	}

	parent, found, err := e.ParentOf("a")
	if err != nil {
		t.Fatal(err)
	}
	if !found || parent != "b" {
		t.Fatalf("ParentOf(a) = (%q, %v), want (b, true)", parent, found)
	}

	_, found, err = e.ParentOf("missing")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("ParentOf(missing) should report not found")
	}
}

func TestCountAndChunkCandidates(t *testing.T) {
	e, err := Open(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = e.Close() }()

	rows := []record.Record{
		{ID: "a", ClassifiedPositive: true},
		{ID: "b", ClassifiedPositive: false},
		{ID: "c", ClassifiedPositive: true},
	}
	if err := e.Load(rows); err != nil {
		t.Fatal(err)
	}

	n, err := e.CountCandidates()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("CountCandidates = %d, want 2", n)
	}

	ids, err := e.CandidateIDsChunk(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("chunk ids = %v, want 2 entries", ids)
	}
}

func TestExportValid(t *testing.T) {
	e, err := Open(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = e.Close() }()

	rows := []record.Record{
		{ID: "a", Body: "idea text", ClassifiedPositive: true},
		{ID: "b", Body: "other", ClassifiedPositive: true},
	}
	if err := e.Load(rows); err != nil {
		t.Fatal(err)
	}

	out, err := e.ExportValid([]string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != "a" || out[0].Body != "idea text" {
		t.Fatalf("ExportValid = %+v, want just row a", out)
	}
}
