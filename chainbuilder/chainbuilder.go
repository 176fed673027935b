// Package chainbuilder reconstructs parent-chain conversations: for
// each <key>/<group> partition it loads the rows into an in-process SQL
// engine, determines which classified-positive rows are root-reachable,
// and exports the passing rows in ordered chunks.
package chainbuilder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/sqlengine"
)

// ProcessPartition runs chain reconstruction for one <key>/<group>
// partition directory. It is the unit of work dispatched both by the
// standalone walker and by a Task executed under the coordinator/worker
// protocol.
func ProcessPartition(ctx context.Context, partitionDir, outDir string, chunkSize int, cacheBytes int64) error {
	rows, err := columnar.ReadDir(partitionDir)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	engine, err := sqlengine.Open(cacheBytes)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	if err := engine.Load(rows); err != nil {
		return err
	}

	total, err := engine.CountCandidates()
	if err != nil {
		return err
	}

	chunkIndex := 0
	for offset := 0; offset < total; offset += chunkSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ids, err := engine.CandidateIDsChunk(chunkSize, offset)
		if err != nil {
			return err
		}

		// A fresh visited set per idea, discarded between ideas and
		// between chunks, to bound peak memory.
		var valid []string
		for _, id := range ids {
			reachable, err := isRootReachable(engine, id)
			if err != nil {
				return err
			}
			if reachable {
				valid = append(valid, id)
			}
		}

		exported, err := engine.ExportValid(valid)
		if err != nil {
			return err
		}
		if len(exported) == 0 {
			chunkIndex++
			continue
		}

		path := filepath.Join(outDir, fmt.Sprintf("chains_chunk_%d.parquet", chunkIndex))
		if err := columnar.WriteFile(path, exported); err != nil {
			return fmt.Errorf("%w: write %s: %v", errkind.ErrIO, path, err)
		}
		chunkIndex++
	}
	return nil
}

// isRootReachable walks the parent chain from id with a visited set: a
// repeated id is a cycle (false), an empty parent id reaches the root
// (true), and a parent id absent from this partition's table is a
// broken chain (false).
func isRootReachable(engine *sqlengine.Engine, id string) (bool, error) {
	visited := make(map[string]bool)
	current := id
	for {
		if visited[current] {
			return false, nil
		}
		visited[current] = true

		parentID, found, err := engine.ParentOf(current)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		if parentID == "" {
			return true, nil
		}
		current = parentID
	}
}
