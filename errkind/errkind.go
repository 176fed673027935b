// Package errkind defines the error taxonomy shared across every phase of
// the pipeline. Components wrap underlying errors with one of these
// sentinels via fmt.Errorf("...: %w", ErrIO) so callers can classify
// failures with errors.Is without parsing messages.
package errkind

import "errors"

var (
	// ErrIO covers file/network open, read, and write failures.
	ErrIO = errors.New("io error")
	// ErrParse covers malformed JSON lines and other record-parse failures.
	ErrParse = errors.New("parse error")
	// ErrSerialization covers checkpoint/state/protocol marshal failures.
	ErrSerialization = errors.New("serialization error")
	// ErrRemoteQueue covers transient or permanent remote-queue failures.
	ErrRemoteQueue = errors.New("remote queue error")
	// ErrProtocol covers coordinator/worker wire-protocol violations.
	ErrProtocol = errors.New("protocol error")
	// ErrInference covers tokenization/ONNX-session failures.
	ErrInference = errors.New("inference error")
	// ErrCorruptedColumnar covers unreadable Intermediate/Processed files.
	ErrCorruptedColumnar = errors.New("corrupted columnar file")
	// ErrMissingResource covers absent files, directories, or configuration.
	ErrMissingResource = errors.New("missing resource")
	// ErrInternal covers invariant violations that indicate a bug.
	ErrInternal = errors.New("internal error")
)

// corruptSubstrings are substrings observed in columnar-library error text
// that indicate a file is truncated or corrupted rather than simply absent,
// per spec: detection is by substring match since the columnar library does
// not expose a typed "corrupt file" error.
var corruptSubstrings = []string{
	"out of specification",
	"PAR1",
	"corrupted",
}

// LooksCorrupted reports whether err's message matches one of the known
// corrupted-columnar-file substrings produced by the parquet library.
func LooksCorrupted(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range corruptSubstrings {
		if containsFold(msg, s) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	if len(needle) == 0 {
		return true
	}
	n, h := []rune(needle), []rune(haystack)
	for i := 0; i+len(n) <= len(h); i++ {
		match := true
		for j := range n {
			a, b := h[i+j], n[j]
			if a >= 'A' && a <= 'Z' {
				a += 'a' - 'A'
			}
			if b >= 'A' && b <= 'Z' {
				b += 'a' - 'A'
			}
			if a != b {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
