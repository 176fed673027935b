// Package ingest implements the ingestion driver: parallel workers
// discovering raw corpus files, filtering and normalizing lines into
// the common row shape, and writing bucketed Intermediate columnar
// artifacts. It also drives the two-step -restore flow: checkpoint
// generation for files that lack one, then resume-point
// verification.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/oniz93/business-finder/durablestate"
	"github.com/oniz93/business-finder/errkind"
)

// FileStatus tracks a single raw file's processing progress.
type FileStatus string

const (
	StatusInProgress FileStatus = "InProgress"
	StatusCompleted  FileStatus = "Completed"
)

// FileProcessState is the per-raw-file progress record. LinesProcessed
// only ever increases; Status only ever transitions
// InProgress->Completed.
type FileProcessState struct {
	Status         FileStatus `json:"status"`
	LinesProcessed uint64     `json:"lines_processed"`
}

// State is the durable ingestion state, keyed by each raw file's path as
// discovered (its base directory joined with the file name). Safe for concurrent use: each worker owns a
// disjoint set of keys (a raw file is exclusively owned by one worker),
// so a mutex only guards the map structure itself, not per-entry races.
type State struct {
	mu      sync.Mutex
	entries map[string]FileProcessState
}

func NewState() *State {
	return &State{entries: make(map[string]FileProcessState)}
}

func (s *State) Get(path string) FileProcessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[path]
}

func (s *State) Set(path string, st FileProcessState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[path] = st
}

func (s *State) snapshot() map[string]FileProcessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]FileProcessState, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// stateDoc is the on-disk shape of
// <base>/processed/processing_state.json.
type stateDoc struct {
	Files map[string]FileProcessState `json:"files"`
}

// LoadState loads prior ingestion state from store, if any.
func LoadState(ctx context.Context, store durablestate.Store) (*State, error) {
	var doc stateDoc
	ok, err := durablestate.LoadJSON(ctx, store, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: load ingestion state: %v", errkind.ErrSerialization, err)
	}
	s := NewState()
	if ok {
		s.entries = doc.Files
		if s.entries == nil {
			s.entries = make(map[string]FileProcessState)
		}
	}
	return s, nil
}

// Flush persists the current state atomically.
func (s *State) Flush(ctx context.Context, store durablestate.Store) error {
	doc := stateDoc{Files: s.snapshot()}
	if err := durablestate.SaveJSON(ctx, store, doc); err != nil {
		return fmt.Errorf("%w: flush ingestion state: %v", errkind.ErrSerialization, err)
	}
	return nil
}
