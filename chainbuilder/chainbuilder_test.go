package chainbuilder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/record"
	"github.com/oniz93/business-finder/sqlengine"
)

func sqlengineForTest(t *testing.T, rows []record.Record) (*sqlengine.Engine, error) {
	t.Helper()
	engine, err := sqlengine.Open(1 << 20)
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { _ = engine.Close() })
	if err := engine.Load(rows); err != nil {
		return nil, err
	}
	return engine, nil
}

func TestIsRootReachableRootCase(t *testing.T) {
	engine, err := sqlengineForTest(t, []record.Record{
		{ID: "a", ParentID: "", ClassifiedPositive: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := isRootReachable(engine, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("empty parent should be root-reachable")
	}
}

func TestIsRootReachableCycle(t *testing.T) {
	engine, err := sqlengineForTest(t, []record.Record{
		{ID: "a", ParentID: "t3_b", ClassifiedPositive: true},
		{ID: "b", ParentID: "t3_a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := isRootReachable(engine, "a")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("a cycle should not be root-reachable")
	}
}

func TestIsRootReachableBrokenChain(t *testing.T) {
	engine, err := sqlengineForTest(t, []record.Record{
		{ID: "a", ParentID: "t3_b", ClassifiedPositive: true},
		{ID: "c", ParentID: ""},
	})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := isRootReachable(engine, "a")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("a missing parent row should not be root-reachable")
	}
}

func TestProcessPartitionExportsOnlyReachableIdeas(t *testing.T) {
	dir := t.TempDir()
	rows := []record.Record{
		{ID: "root", ParentID: "", ClassifiedPositive: false},
		{ID: "idea-ok", ParentID: "t3_root", ClassifiedPositive: true},
		{ID: "idea-broken", ParentID: "t3_missing", ClassifiedPositive: true},
	}
	if err := columnar.WriteFile(filepath.Join(dir, "part-1.parquet"), rows); err != nil {
		t.Fatal(err)
	}

	outDir := t.TempDir()
	if err := ProcessPartition(context.Background(), dir, outDir, 10_000, 1<<20); err != nil {
		t.Fatal(err)
	}

	exported, err := columnar.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(exported) != 1 || exported[0].ID != "idea-ok" {
		t.Fatalf("exported = %+v, want only idea-ok", exported)
	}
}
