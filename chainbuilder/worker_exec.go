package chainbuilder

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/oniz93/business-finder/errkind"
)

// ExecuteTask runs one assigned task: when a partition has more than
// one parquet file and a local cache directory is configured, the input
// is copied locally, processed against the fast local disk, and the
// results copied back; otherwise the partition is processed directly
// against its network path.
func ExecuteTask(ctx context.Context, dataDir, outputDir, relativePath, localCacheDir string, chunkSize int, cacheBytes int64) error {
	inputDir := filepath.Join(dataDir, relativePath)
	outDir := filepath.Join(outputDir, relativePath)

	n, err := CountParquetFiles(inputDir)
	if err != nil {
		return err
	}

	if n <= 1 || localCacheDir == "" {
		return ProcessPartition(ctx, inputDir, outDir, chunkSize, cacheBytes)
	}

	return executeViaLocalCache(ctx, inputDir, outDir, localCacheDir, chunkSize, cacheBytes)
}

func executeViaLocalCache(ctx context.Context, inputDir, outDir, localCacheDir string, chunkSize int, cacheBytes int64) error {
	id := uuid.NewString()
	cacheInput := filepath.Join(localCacheDir, "input_"+id)
	cacheOutput := filepath.Join(localCacheDir, "output_"+id)
	defer func() {
		_ = os.RemoveAll(cacheInput)
		_ = os.RemoveAll(cacheOutput)
	}()

	if err := copyTree(inputDir, cacheInput); err != nil {
		return err
	}

	if err := ProcessPartition(ctx, cacheInput, cacheOutput, chunkSize, cacheBytes); err != nil {
		return err
	}

	return copyTree(cacheOutput, outDir)
}

// copyTree copies every regular file directly inside src into dst,
// creating dst if needed. Partitions are flat (one level of files), so
// no recursion is required.
func copyTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", errkind.ErrIO, src, err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", errkind.ErrIO, dst, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", errkind.ErrIO, src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", errkind.ErrIO, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: copy %s to %s: %v", errkind.ErrIO, src, dst, err)
	}
	return out.Close()
}
