package coordinator

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// legacyProgress is the pre-durability progress file shape: a single
// index into the scanned subreddit list, with no per-task state.
type legacyProgress struct {
	Index int `json:"subreddit_index"`
}

// MigrateLegacyProgress folds a legacy index-only progress file into a
// freshly discovered task list: the first Index discovered subreddits
// are marked Completed, the rest stay Pending, and the legacy file is
// renamed aside so the migration runs once. When legacyPath does not
// exist the task list is returned unchanged.
func MigrateLegacyProgress(legacyPath string, discovered []Task) ([]Task, error) {
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return discovered, nil
		}
		return nil, fmt.Errorf("read legacy progress %s: %w", legacyPath, err)
	}

	var legacy legacyProgress
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy progress %s: %w", legacyPath, err)
	}

	out := make([]Task, len(discovered))
	copy(out, discovered)
	for i := range out {
		if i < legacy.Index {
			out[i].Status = TaskCompleted
		} else {
			out[i].Status = TaskPending
		}
	}

	if err := os.Rename(legacyPath, legacyPath+".bak"); err != nil {
		return nil, fmt.Errorf("back up legacy progress %s: %w", legacyPath, err)
	}
	return out, nil
}
