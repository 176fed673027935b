package chainbuilder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/oniz93/business-finder/errkind"
)

// Partition identifies one <key>/<group> directory under a Processed or
// Chains tree, and its path relative to the tree root (which doubles as
// a Task's relative_path).
type Partition struct {
	Key          string
	Group        string
	RelativePath string
	Dir          string
}

// DiscoverPartitions walks dataDir (the Processed store) and returns
// every <key>/<group> leaf directory in deterministic sorted order, the
// same walk order the inference producer uses.
func DiscoverPartitions(dataDir string) ([]Partition, error) {
	keyEntries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", errkind.ErrIO, dataDir, err)
	}

	var keys []string
	for _, e := range keyEntries {
		if e.IsDir() {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)

	var partitions []Partition
	for _, key := range keys {
		keyDir := filepath.Join(dataDir, key)
		groupEntries, err := os.ReadDir(keyDir)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", errkind.ErrIO, keyDir, err)
		}
		var groups []string
		for _, e := range groupEntries {
			if e.IsDir() {
				groups = append(groups, e.Name())
			}
		}
		sort.Strings(groups)
		for _, group := range groups {
			partitions = append(partitions, Partition{
				Key:          key,
				Group:        group,
				RelativePath: filepath.Join(key, group),
				Dir:          filepath.Join(keyDir, group),
			})
		}
	}
	return partitions, nil
}

// CountParquetFiles reports how many *.parquet files live directly under
// dir, used by the worker's local-cache decision in ExecuteTask.
func CountParquetFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: read %s: %v", errkind.ErrIO, dir, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".parquet" {
			n++
		}
	}
	return n, nil
}
