package linestream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gurre/s3streamer"

	"github.com/oniz93/business-finder/errkind"
)

// S3Backend opens raw-corpus objects directly out of S3, for
// deployments that keep the corpus in a bucket instead of on local
// disk. Plain line-delimited objects go through s3streamer's
// line-callback contract; Zstd objects need the full byte stream for
// the decoder, so they are fetched with a plain GetObject and fed
// through the same scanner path local files use.
type S3Backend struct {
	client   *s3.Client
	streamer s3streamer.Streamer
}

// NewS3Backend wraps client, the raw (unwrapped) SDK S3 client, which
// s3streamer requires to issue its own ranged GETs.
func NewS3Backend(client *s3.Client) *S3Backend {
	return &S3Backend{client: client, streamer: s3streamer.NewS3Streamer(client)}
}

// OpenS3 opens bucket/key for line iteration, decompressing
// transparently when key ends in ZstdExt, mirroring Open for local
// paths.
func (b *S3Backend) OpenS3(ctx context.Context, bucket, key string) (LineStream, error) {
	if strings.HasSuffix(key, ZstdExt) {
		out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
		if err != nil {
			return nil, fmt.Errorf("%w: open s3://%s/%s: %v", errkind.ErrIO, bucket, key, err)
		}
		return newStream(out.Body, true, fmt.Sprintf("s3://%s/%s", bucket, key))
	}
	return newS3LineStream(ctx, b.streamer, bucket, key), nil
}

// s3LineStream adapts s3streamer's push-style line callback to the
// pull-style LineStream contract via a channel-feeding goroutine.
var _ LineStream = (*s3LineStream)(nil)

type s3LineStream struct {
	cancel context.CancelFunc
	lines  chan string
	errCh  chan error
	done   bool
	err    error
}

func newS3LineStream(ctx context.Context, streamer s3streamer.Streamer, bucket, key string) *s3LineStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &s3LineStream{
		cancel: cancel,
		lines:  make(chan string, 256),
		errCh:  make(chan error, 1),
	}
	go func() {
		err := streamer.Stream(ctx, bucket, key, 0, func(line []byte, _ int64) error {
			select {
			case s.lines <- string(line):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		s.errCh <- err
		close(s.lines)
	}()
	return s
}

func (s *s3LineStream) Next() (string, bool, error) {
	if s.done {
		return "", false, s.err
	}
	line, ok := <-s.lines
	if ok {
		return line, true, nil
	}
	s.done = true
	if err := <-s.errCh; err != nil && !errors.Is(err, context.Canceled) {
		s.err = fmt.Errorf("%w: stream s3 lines: %v", errkind.ErrIO, err)
	}
	return "", false, s.err
}

// Close stops the feeding goroutine. The underlying ranged GETs are
// abandoned via context cancellation.
func (s *s3LineStream) Close() error {
	s.cancel()
	return nil
}

// ParseS3URI splits a "s3://bucket/key" URI into its parts. ok is false
// when uri does not use the s3 scheme.
func ParseS3URI(uri string) (bucket, key string, ok bool) {
	const prefix = "s3://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(uri, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
