// Package linestream implements lazy line iteration over a plain or
// Zstd-compressed text file. It is the only package that touches raw
// corpus bytes directly; every other phase goes through here or
// through the columnar package.
package linestream

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/oniz93/business-finder/errkind"
)

// ZstdExt is the recognized compressed-file extension.
const ZstdExt = ".zst"

// LineStream is a finite lazy sequence of text lines, restartable only
// by opening the source again. Local files and S3 objects both satisfy
// it.
type LineStream interface {
	// Next advances to and returns the next line (without its
	// terminator). ok is false at end of input; err is non-nil only on
	// a genuine read failure.
	Next() (line string, ok bool, err error)
	// Close releases the underlying reader. Safe to call once.
	Close() error
}

// Stream is the file-backed LineStream. It holds open reader/decoder
// handles and must be closed exactly once.
type Stream struct {
	rc      io.Closer
	zr      *zstd.Decoder
	scanner *bufio.Scanner
}

var _ LineStream = (*Stream)(nil)

// Open opens path for line iteration, transparently decompressing if the
// extension is the Zstd extension. Fails with errkind.ErrIO on open.
func Open(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", errkind.ErrIO, path, err)
	}
	return newStream(f, strings.HasSuffix(path, ZstdExt), path)
}

// newStream wraps an already-open reader (a local file or an S3 object
// body) into a Stream, applying Zstd decompression when compressed is
// set. name is used only for error messages.
func newStream(rc io.ReadCloser, compressed bool, name string) (*Stream, error) {
	var reader io.Reader = rc
	var zr *zstd.Decoder
	if compressed {
		var err error
		zr, err = zstd.NewReader(rc)
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("%w: open zstd decoder for %s: %v", errkind.ErrIO, name, err)
		}
		reader = zr
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Stream{rc: rc, zr: zr, scanner: scanner}, nil
}

// Next advances to and returns the next line (without its terminator).
// ok is false at end of file; err is non-nil only on a genuine read
// failure (errkind.ErrIO).
func (s *Stream) Next() (line string, ok bool, err error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), true, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", false, fmt.Errorf("%w: read line: %v", errkind.ErrIO, err)
	}
	return "", false, nil
}

// Close releases the underlying reader and decoder. Safe to call once.
func (s *Stream) Close() error {
	if s.zr != nil {
		s.zr.Close()
	}
	return s.rc.Close()
}

// CountLines streams the whole file once, counting lines. Used by the
// sampleindex checkpoint-generation pass.
func CountLines(path string) (uint64, error) {
	s, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = s.Close() }()

	var n uint64
	for {
		_, ok, err := s.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// IsRecognizedSuffix reports whether path ends in a plain-text or
// Zstd-compressed extension, the suffix half of the raw-file discovery
// rule.
func IsRecognizedSuffix(path string) bool {
	return strings.HasSuffix(path, ".txt") || strings.HasSuffix(path, ".jsonl") || strings.HasSuffix(path, ZstdExt)
}
