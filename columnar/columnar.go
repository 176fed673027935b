// Package columnar is the sole boundary between the pipeline and the
// on-disk columnar format. Every other package reads/writes Records
// through this package so the format (Parquet) and compressor (Zstd)
// stay swappable behind a narrow contract, the same way aws.S3Client
// hides the S3 SDK from its callers.
package columnar

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/record"
)

func compression() parquet.WriterOption {
	return parquet.Compression(&zstd.Codec{})
}

// WriteFile writes rows to path as a single Zstd-compressed Parquet file,
// atomically (write "<path>.tmp.<pid>", rename over path). An empty rows
// slice still produces a valid (schema-only) file.
func WriteFile(path string, rows []record.Record) error {
	return WriteGeneric(path, rows)
}

// WriteGeneric is WriteFile generalized to any row type, used by the
// embedding writer whose output schema is the input columns plus an
// appended embedding vector, a different shape per model that cannot
// be expressed as a fixed Record.
func WriteGeneric[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create dir for %s: %v", errkind.ErrIO, path, err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", errkind.ErrIO, tmp, err)
	}
	w := parquet.NewGenericWriter[T](f, compression())
	if _, err := w.Write(rows); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: write %s: %v", errkind.ErrIO, tmp, err)
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: close writer for %s: %v", errkind.ErrIO, tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: close %s: %v", errkind.ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename %s to %s: %v", errkind.ErrIO, tmp, path, err)
	}
	return nil
}

// NewArtifactName builds a file name of the form "<prefix>-<uuid>.parquet"
// used for both Intermediate "inter-" and Processed "part-" artifacts.
func NewArtifactName(prefix string) string {
	return fmt.Sprintf("%s-%s.parquet", prefix, uuid.NewString())
}

// ReadFile loads every row of a single Parquet file. Errors whose text
// matches the corrupted-columnar substrings are wrapped with
// errkind.ErrCorruptedColumnar so callers can detect corrupt files and
// skip them instead of failing a whole phase.
func ReadFile(path string) ([]record.Record, error) {
	return ReadGeneric[record.Record](path)
}

// ReadGeneric is ReadFile generalized to any row type; see WriteGeneric.
func ReadGeneric[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errkind.ErrIO, path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", errkind.ErrIO, path, err)
	}

	r := parquet.NewGenericReader[T](f)
	defer func() { _ = r.Close() }()

	rows := make([]T, 0, r.NumRows())
	buf := make([]T, 1024)
	for {
		n, err := r.Read(buf)
		rows = append(rows, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errkind.LooksCorrupted(err) {
				return nil, fmt.Errorf("%w: %s (size %d bytes): %v", errkind.ErrCorruptedColumnar, path, info.Size(), err)
			}
			return nil, fmt.Errorf("%w: read %s: %v", errkind.ErrIO, path, err)
		}
		if n == 0 {
			break
		}
	}
	return rows, nil
}

// ListFiles returns the *.parquet files directly inside dir, sorted,
// with no recursion. This is the unit used by compaction and the chain
// builder, both of which operate one directory at a time.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read dir %s: %v", errkind.ErrIO, dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".parquet" {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadDir reads and concatenates every *.parquet file directly inside
// dir, in sorted-path order.
func ReadDir(dir string) ([]record.Record, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}
	var all []record.Record
	for _, f := range files {
		rows, err := ReadFile(f)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
	}
	return all, nil
}
