// Package sampleindex maintains sparse line-number samples over raw
// corpus files and answers the question "from which line must ingestion
// resume": a binary search over the samples narrows the candidate
// range, then a fine-grained scan pins down the exact line, probing the
// Processed store for id membership via columnar.Prober throughout.
package sampleindex

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/oniz93/business-finder/columnar"
	"github.com/oniz93/business-finder/durablestate"
	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/linestream"
	"github.com/oniz93/business-finder/record"
)

// Entry is one parsed (id, key) pair from a sample window.
type Entry struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Sample is a consecutive run of exactly Window lines, recorded at
// LineNumber (1-indexed).
type Sample struct {
	LineNumber uint64  `json:"line_number"`
	Entries    []Entry `json:"entries"`
}

// Checkpoint is the durable sample index of one raw file.
type Checkpoint struct {
	TotalLines uint64   `json:"total_lines"`
	Samples    []Sample `json:"samples"`
}

// rawLineForCheckpoint is the minimal shape needed to build a Sample
// entry; malformed lines are simply skipped.
type rawLineForCheckpoint struct {
	ID    string `json:"id"`
	Group string `json:"subreddit"`
}

// CheckpointPath derives the durable checkpoint path for a raw file:
// <base>/intermediate/checkpoints/<rawname>.checkpoints.json
func CheckpointPath(intermediateDir, rawFileName string) string {
	return filepath.Join(intermediateDir, "checkpoints", rawFileName+".checkpoints.json")
}

// Generate streams rawPath once, counting lines and collecting a Sample
// every `interval` lines of `window` consecutive lines, then writes the
// result atomically to `intermediateDir`'s checkpoints directory.
func Generate(ctx context.Context, rawPath, rawFileName, intermediateDir string, interval, window int) (Checkpoint, error) {
	s, err := linestream.Open(rawPath)
	if err != nil {
		return Checkpoint{}, err
	}
	defer func() { _ = s.Close() }()

	cp := Checkpoint{}
	var lineNo uint64
	var windowStart uint64
	var windowEntries []Entry
	collecting := false

	flushWindow := func() {
		if collecting && len(windowEntries) == window {
			cp.Samples = append(cp.Samples, Sample{LineNumber: windowStart, Entries: windowEntries})
		}
		collecting = false
		windowEntries = nil
	}

	for {
		select {
		case <-ctx.Done():
			return Checkpoint{}, ctx.Err()
		default:
		}

		line, ok, err := s.Next()
		if err != nil {
			return Checkpoint{}, err
		}
		if !ok {
			break
		}
		lineNo++

		// A new sample window starts at every line 1 + k*interval.
		if int((lineNo-1))%interval == 0 {
			flushWindow()
			windowStart = lineNo
			windowEntries = make([]Entry, 0, window)
			collecting = true
		}

		if collecting && len(windowEntries) < window {
			var raw rawLineForCheckpoint
			if err := json.Unmarshal([]byte(line), &raw); err == nil {
				windowEntries = append(windowEntries, Entry{ID: raw.ID, Key: record.DeriveKey(raw.Group)})
			}
			// Parse failures are ignored: the window simply won't reach
			// exactly `window` entries and gets discarded.
		}
	}
	flushWindow()
	cp.TotalLines = lineNo

	store, err := durablestate.NewFileStore(CheckpointPath(intermediateDir, rawFileName))
	if err != nil {
		return Checkpoint{}, err
	}
	if err := durablestate.SaveJSON(ctx, store, cp); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: save checkpoint for %s: %v", errkind.ErrSerialization, rawFileName, err)
	}
	return cp, nil
}

// Load reads a previously generated Checkpoint, if any.
func Load(ctx context.Context, intermediateDir, rawFileName string) (Checkpoint, bool, error) {
	store, err := durablestate.NewFileStore(CheckpointPath(intermediateDir, rawFileName))
	if err != nil {
		return Checkpoint{}, false, err
	}
	var cp Checkpoint
	ok, err := durablestate.LoadJSON(ctx, store, &cp)
	return cp, ok, err
}

// RestoreScanChunk is the default fine-grained scan window size.
const RestoreScanChunk = 5000

// FindResumePoint returns the 0-indexed line offset ingestion must
// resume from, using prober to classify how much of each sample is
// already present in the Processed store and rawPath for the
// fine-grained scan between the last fully-present sample and the
// first absent one.
func FindResumePoint(cp Checkpoint, rawPath string, prober columnar.Prober) (uint64, error) {
	if len(cp.Samples) == 0 {
		return scanWholeFile(rawPath, prober)
	}

	first, err := probeSample(cp.Samples[0], prober)
	if err != nil {
		return 0, err
	}
	if first == columnar.StatusNone {
		return 0, nil
	}

	last, err := probeSample(cp.Samples[len(cp.Samples)-1], prober)
	if err != nil {
		return 0, err
	}
	if last != columnar.StatusNone {
		return cp.TotalLines, nil
	}

	// Binary search [0, n-2] for the largest fully-processed index.
	lo, hi := 0, len(cp.Samples)-2
	best := -1
	if hi < 0 {
		hi = 0
	}
	for lo <= hi {
		mid := lo + (hi-lo)/2
		status, err := probeSample(cp.Samples[mid], prober)
		if err != nil {
			return 0, err
		}
		if status == columnar.StatusAll {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}

	var scanStart uint64
	if best >= 0 {
		scanStart = cp.Samples[best].LineNumber - 1
	}
	var scanEnd uint64
	if best+1 < len(cp.Samples) {
		scanEnd = cp.Samples[best+1].LineNumber - 1
	} else {
		scanEnd = cp.TotalLines
	}

	return fineScan(rawPath, scanStart, scanEnd, prober)
}

func probeSample(s Sample, prober columnar.Prober) (columnar.Status, error) {
	byKey := map[string][]string{}
	for _, e := range s.Entries {
		byKey[e.Key] = append(byKey[e.Key], e.ID)
	}
	total := len(s.Entries)
	var matched int
	for key, ids := range byKey {
		m, err := prober.Matched(key, ids)
		if err != nil {
			return columnar.StatusNone, err
		}
		matched += m
	}
	return columnar.Classify(matched, total), nil
}

// scanWholeFile handles the no-samples case: linearly scan in
// RestoreScanChunk windows starting from 0.
func scanWholeFile(rawPath string, prober columnar.Prober) (uint64, error) {
	total, err := linestream.CountLines(rawPath)
	if err != nil {
		return 0, err
	}
	return fineScan(rawPath, 0, total, prober)
}

// fineScan implements step 5: scan [start, end) in RestoreScanChunk-line
// windows, finding the last present entry; resume is one past it, or the
// chunk start if nothing in a chunk is present.
func fineScan(rawPath string, start, end uint64, prober columnar.Prober) (uint64, error) {
	if start >= end {
		return start, nil
	}
	s, err := linestream.Open(rawPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = s.Close() }()

	var lineNo uint64
	var chunkStart uint64 = start
	var chunkLines []rawLineForCheckpoint
	var chunkLineNos []uint64
	lastPresent := uint64(0)
	foundAny := false

	flushChunk := func() (done bool, resume uint64, err error) {
		if len(chunkLines) == 0 {
			return false, 0, nil
		}
		byKey := map[string][]int{} // key -> indices into chunkLines
		for i, rl := range chunkLines {
			k := record.DeriveKey(rl.Group)
			byKey[k] = append(byKey[k], i)
		}
		present := make([]bool, len(chunkLines))
		for key, idxs := range byKey {
			ids := make([]string, len(idxs))
			for j, idx := range idxs {
				ids[j] = chunkLines[idx].ID
			}
			// Membership per-id: reuse Matched count only to decide
			// presence at chunk granularity is insufficient here, so probe
			// one at a time within this (small) chunk.
			for j, idx := range idxs {
				m, err := prober.Matched(key, []string{ids[j]})
				if err != nil {
					return false, 0, err
				}
				if m > 0 {
					present[idx] = true
				}
			}
		}
		anyInChunk := false
		for i, p := range present {
			if p {
				anyInChunk = true
				foundAny = true
				if chunkLineNos[i] > lastPresent {
					lastPresent = chunkLineNos[i]
				}
			}
		}
		if !anyInChunk {
			return true, chunkStart, nil
		}
		return false, 0, nil
	}

	for lineNo < end {
		line, ok, err := s.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		lineNo++
		if lineNo <= start {
			continue
		}
		if len(chunkLines) == 0 {
			chunkStart = lineNo - 1
		}
		var raw rawLineForCheckpoint
		if json.Unmarshal([]byte(line), &raw) == nil {
			chunkLines = append(chunkLines, raw)
			chunkLineNos = append(chunkLineNos, lineNo-1)
		}
		if uint64(len(chunkLines)) >= RestoreScanChunk || lineNo >= end {
			done, resume, err := flushChunk()
			if err != nil {
				return 0, err
			}
			if done {
				return resume, nil
			}
			chunkLines = nil
			chunkLineNos = nil
		}
	}
	if foundAny {
		return lastPresent + 1, nil
	}
	return start, nil
}
