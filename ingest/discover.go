package ingest

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oniz93/business-finder/linestream"
	"github.com/oniz93/business-finder/record"
)

// kindPrefixes maps a recognized file-name prefix to the row kind it
// carries.
var kindPrefixes = map[string]record.Kind{
	"RS": record.KindSubmission,
	"RC": record.KindComment,
}

// DiscoveredFile is one candidate raw file found under a base directory.
type DiscoveredFile struct {
	Path string // absolute path
	Name string // base name, used as the state/checkpoint key
	Kind record.Kind
}

// Discover walks baseDirs collecting files whose name begins with a
// recognized kind prefix and ends with a recognized suffix. An
// "s3://bucket/key" base dir names a single object instead of a local
// tree. Results are sorted by path for deterministic scheduling.
func Discover(baseDirs []string) ([]DiscoveredFile, error) {
	var out []DiscoveredFile
	for _, base := range baseDirs {
		if _, key, ok := linestream.ParseS3URI(base); ok {
			name := path.Base(key)
			if !linestream.IsRecognizedSuffix(name) {
				continue
			}
			for prefix, kind := range kindPrefixes {
				if strings.HasPrefix(name, prefix) {
					out = append(out, DiscoveredFile{Path: base, Name: name, Kind: kind})
					break
				}
			}
			continue
		}
		err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			name := d.Name()
			if !linestream.IsRecognizedSuffix(name) {
				return nil
			}
			for prefix, kind := range kindPrefixes {
				if strings.HasPrefix(name, prefix) {
					out = append(out, DiscoveredFile{Path: path, Name: name, Kind: kind})
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// FilterOnlyExclude applies the -only/-exclude restriction to a file
// list, matched by base name.
func FilterOnlyExclude(files []DiscoveredFile, only, exclude []string) []DiscoveredFile {
	onlySet := toSet(only)
	excludeSet := toSet(exclude)
	var out []DiscoveredFile
	for _, f := range files {
		if len(onlySet) > 0 && !onlySet[f.Name] {
			continue
		}
		if excludeSet[f.Name] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}
