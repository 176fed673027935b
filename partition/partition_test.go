package partition

import (
	"path/filepath"
	"testing"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/config"
	"github.com/oniz93/business-finder/record"
)

func TestRunPartitionsByGroup(t *testing.T) {
	intermediate := t.TempDir()
	processed := t.TempDir()

	rows := []record.Record{
		{ID: "1", Key: "as", Group: "AskReddit"},
		{ID: "2", Key: "as", Group: "AskReddit"},
		{ID: "3", Key: "as", Group: "Answers!"},
	}
	path := filepath.Join(intermediate, "as", columnar.NewArtifactName("compacted"))
	if err := columnar.WriteFile(path, rows); err != nil {
		t.Fatal(err)
	}

	cfg := config.PartitionConfig{IntermediateDir: intermediate, ProcessedDir: processed, Workers: 2}
	if err := Run(cfg); err != nil {
		t.Fatal(err)
	}

	askRows, err := columnar.ReadDir(filepath.Join(processed, "as", "AskReddit"))
	if err != nil {
		t.Fatal(err)
	}
	if len(askRows) != 2 {
		t.Errorf("AskReddit rows = %d, want 2", len(askRows))
	}

	answersRows, err := columnar.ReadDir(filepath.Join(processed, "as", "Answers"))
	if err != nil {
		t.Fatal(err)
	}
	if len(answersRows) != 1 {
		t.Errorf("Answers rows = %d, want 1 (safe_group strips punctuation)", len(answersRows))
	}
}
