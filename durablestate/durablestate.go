// Package durablestate generalizes the checkpoint-store pattern used
// throughout the pipeline: every phase persists its own JSON-shaped
// progress state, but all of them share the same atomic-write contract
// (write "<path>.tmp", rename into place) and the same Load/Save shape
// over an opaque byte payload, so each phase layers its own type on
// top via json.Marshal/Unmarshal.
package durablestate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	json "github.com/goccy/go-json"

	"github.com/oniz93/business-finder/aws"
)

// Store loads and atomically saves an opaque JSON-shaped payload. Load
// returns ok=false when no prior state exists (fresh start), which every
// caller treats as "start from zero" rather than an error.
type Store interface {
	Load(ctx context.Context) (data []byte, ok bool, err error)
	Save(ctx context.Context, data []byte) error
}

// LoadJSON loads and unmarshals state into v; if no prior state exists v
// is left at its zero value and ok is false.
func LoadJSON(ctx context.Context, s Store, v any) (ok bool, err error) {
	data, ok, err := s.Load(ctx)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decode durable state: %w", err)
	}
	return true, nil
}

// SaveJSON marshals v pretty-printed, as every durable JSON file in
// the pipeline is, and saves it atomically.
func SaveJSON(ctx context.Context, s Store, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode durable state: %w", err)
	}
	return s.Save(ctx, data)
}

// FileStore implements Store on the local filesystem using the
// write-tmp-then-rename pattern every durable write in the system
// uses.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore rooted at an absolute path. The parent
// directory is created if missing.
func NewFileStore(path string) (*FileStore, error) {
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("durable state path must be absolute: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create durable state dir: %w", err)
	}
	return &FileStore{path: filepath.Clean(path)}, nil
}

func (f *FileStore) Load(ctx context.Context) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read durable state %s: %w", f.path, err)
	}
	return data, true, nil
}

func (f *FileStore) Save(ctx context.Context, data []byte) error {
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write durable state tmp %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename durable state %s: %w", f.path, err)
	}
	return nil
}

// S3Store implements Store on S3. S3's PUT-replaces-atomically
// semantics stand in for tmp-then-rename: a GET during an in-flight PUT
// always observes either the old or the new object body in full, never
// a partial one.
type S3Store struct {
	client aws.S3Client
	bucket string
	key    string
}

// NewS3Store creates an S3Store from an "s3://bucket/key" URI.
func NewS3Store(client aws.S3Client, uri string) (*S3Store, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid S3 URI: %w", err)
	}
	if u.Scheme != "s3" {
		return nil, fmt.Errorf("invalid S3 URI scheme: %s", u.Scheme)
	}
	return &S3Store{client: client, bucket: u.Host, key: strings.TrimPrefix(u.Path, "/")}, nil
}

func (s *S3Store) Load(ctx context.Context) ([]byte, bool, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &s.key})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get durable state object: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read durable state body: %w", err)
	}
	return data, true, nil
}

func (s *S3Store) Save(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &s.key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put durable state object: %w", err)
	}
	return nil
}
