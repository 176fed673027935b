package coordinator

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oniz93/business-finder/durablestate"
)

func newTestStore(t *testing.T) durablestate.Store {
	t.Helper()
	store, err := durablestate.NewFileStore(filepath.Join(t.TempDir(), "coordinator_state.json"))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestAssignNextIsFIFOAndExhausts(t *testing.T) {
	store := newTestStore(t)
	c, err := NewCoordinator(context.Background(), store, []Task{
		{ID: "1", RelativePath: "aa/sub1"},
		{ID: "2", RelativePath: "aa/sub2"},
	})
	if err != nil {
		t.Fatal(err)
	}

	first := c.assignNext("w1")
	assigned, ok := first.(AssignTask)
	if !ok || assigned.TaskID != "1" {
		t.Fatalf("first assignment = %+v, want task 1", first)
	}

	second := c.assignNext("w1")
	assigned2, ok := second.(AssignTask)
	if !ok || assigned2.TaskID != "2" {
		t.Fatalf("second assignment = %+v, want task 2", second)
	}

	third := c.assignNext("w1")
	if _, ok := third.(NoTasksAvailable); !ok {
		t.Fatalf("third assignment = %+v, want NoTasksAvailable", third)
	}
}

func TestCompleteTaskTransitions(t *testing.T) {
	store := newTestStore(t)
	c, err := NewCoordinator(context.Background(), store, []Task{{ID: "1", RelativePath: "aa/sub1"}})
	if err != nil {
		t.Fatal(err)
	}
	c.assignNext("w1")
	c.completeTask(TaskComplete{TaskID: "1", Success: true})

	snap := c.Snapshot()
	if snap[0].Status != TaskCompleted {
		t.Fatalf("status = %q, want completed", snap[0].Status)
	}
}

func TestCompleteTaskFailureRequeuesAsPending(t *testing.T) {
	store := newTestStore(t)
	c, err := NewCoordinator(context.Background(), store, []Task{{ID: "1", RelativePath: "aa/sub1"}})
	if err != nil {
		t.Fatal(err)
	}
	c.assignNext("w1")
	c.completeTask(TaskComplete{TaskID: "1", Success: false, Error: "boom"})

	snap := c.Snapshot()
	if snap[0].Status != TaskPending || snap[0].Error != "boom" || snap[0].WorkerID != "" {
		t.Fatalf("snapshot = %+v, want pending/boom/no worker", snap[0])
	}

	// A re-queued task must be assignable again, not stuck forever.
	reassigned := c.assignNext("w2")
	assigned, ok := reassigned.(AssignTask)
	if !ok || assigned.TaskID != "1" {
		t.Fatalf("reassignment = %+v, want task 1 to be retried", reassigned)
	}
}

func TestCompleteTaskFailureRequeuesAtTail(t *testing.T) {
	store := newTestStore(t)
	c, err := NewCoordinator(context.Background(), store, []Task{
		{ID: "1", RelativePath: "aa/sub1"},
		{ID: "2", RelativePath: "aa/sub2"},
	})
	if err != nil {
		t.Fatal(err)
	}
	c.assignNext("w1") // takes task 1
	c.completeTask(TaskComplete{TaskID: "1", Success: false, Error: "boom"})

	// Task 2 is still pending and was never touched, so it must be
	// assigned before the re-queued task 1.
	next := c.assignNext("w2")
	assigned, ok := next.(AssignTask)
	if !ok || assigned.TaskID != "2" {
		t.Fatalf("next assignment = %+v, want task 2 ahead of the retried task 1", next)
	}

	after := c.assignNext("w3")
	assignedAfter, ok := after.(AssignTask)
	if !ok || assignedAfter.TaskID != "1" {
		t.Fatalf("final assignment = %+v, want retried task 1 at the tail", after)
	}
}

func TestCrashRecoveryInvariant(t *testing.T) {
	store := newTestStore(t)
	cp := CoordinatorCheckpoint{Version: 1, Tasks: []Task{
		{ID: "1", RelativePath: "aa/sub1", Status: TaskCompleted},
		{ID: "2", RelativePath: "aa/sub2", Status: TaskAssigned, WorkerID: "w1"},
		{ID: "3", RelativePath: "aa/sub3", Status: TaskPending},
		{ID: "4", RelativePath: "aa/sub4", Status: TaskFailed, Error: "boom"},
	}}
	if err := durablestate.SaveJSON(context.Background(), store, cp); err != nil {
		t.Fatal(err)
	}

	c, err := NewCoordinator(context.Background(), store, []Task{
		{ID: "1", RelativePath: "aa/sub1"},
		{ID: "2", RelativePath: "aa/sub2"},
		{ID: "3", RelativePath: "aa/sub3"},
		{ID: "4", RelativePath: "aa/sub4"},
	})
	if err != nil {
		t.Fatal(err)
	}

	snap := c.Snapshot()
	byID := map[string]Task{}
	for _, t := range snap {
		byID[t.ID] = t
	}
	if byID["1"].Status != TaskCompleted {
		t.Errorf("task 1 should stay completed, got %q", byID["1"].Status)
	}
	if byID["2"].Status != TaskPending {
		t.Errorf("task 2 should revert to pending, got %q", byID["2"].Status)
	}
	if byID["3"].Status != TaskPending {
		t.Errorf("task 3 should stay pending, got %q", byID["3"].Status)
	}
	if byID["4"].Status != TaskPending || byID["4"].Error != "" {
		t.Errorf("task 4 (failed) should be re-queued as pending with its error cleared, got %+v", byID["4"])
	}
}

func TestServeAssignsTaskOverTCP(t *testing.T) {
	store := newTestStore(t)
	c, err := NewCoordinator(context.Background(), store, []Task{{ID: "1", RelativePath: "aa/sub1"}})
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Serve(ctx, ln) }()

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	if err := WriteMessage(conn, RequestTask{WorkerID: "w1"}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := ReadMessage(conn)
	if err != nil {
		t.Fatal(err)
	}
	assigned, ok := reply.(AssignTask)
	if !ok || assigned.RelativePath != "aa/sub1" {
		t.Fatalf("reply = %+v, want AssignTask for aa/sub1", reply)
	}
}

func TestProtocolFramingRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x7F, 0xFF, 0xFF, 0xFF}) // length far beyond MaxMessageSize
	if _, err := ReadMessage(&buf); err == nil {
		t.Fatal("expected oversized length to be rejected")
	}
}

func TestProtocolRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := TaskComplete{TaskID: "7", Success: true}
	if err := WriteMessage(&buf, msg); err != nil {
		t.Fatal(err)
	}
	got, err := ReadMessage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := got.(TaskComplete)
	if !ok || tc.TaskID != "7" || !tc.Success {
		t.Fatalf("round trip = %+v, want %+v", got, msg)
	}
}

func TestSweepStaleKeepsHeartbeatingWorkerAssigned(t *testing.T) {
	store := newTestStore(t)
	c, err := NewCoordinator(context.Background(), store, []Task{{ID: "1", RelativePath: "aa/sub1"}})
	if err != nil {
		t.Fatal(err)
	}
	c.assignNext("w1")

	// A long-running task on a live worker must survive the sweep even
	// when the assignment itself is older than the stale timeout.
	c.mu.Lock()
	c.tasks["1"].AssignedAt = time.Now().Add(-3 * StaleTimeout)
	c.lastSeen["w1"] = time.Now()
	c.mu.Unlock()
	c.sweepStale()

	if got := c.Snapshot()[0].Status; got != TaskAssigned {
		t.Fatalf("status = %q, want assigned while the worker heartbeats", got)
	}

	// Once the heartbeat goes silent past the timeout, the task reverts.
	c.mu.Lock()
	c.lastSeen["w1"] = time.Now().Add(-2 * StaleTimeout)
	c.mu.Unlock()
	c.sweepStale()

	snap := c.Snapshot()[0]
	if snap.Status != TaskPending || snap.WorkerID != "" {
		t.Fatalf("snapshot = %+v, want pending with no worker after stale sweep", snap)
	}
}

func TestMigrateLegacyProgressMarksScannedPrefixCompleted(t *testing.T) {
	legacy := filepath.Join(t.TempDir(), "phase3_progress.json")
	if err := os.WriteFile(legacy, []byte(`{"subreddit_index": 2}`), 0o644); err != nil {
		t.Fatal(err)
	}
	discovered := []Task{
		{ID: "1", RelativePath: "aa/sub1"},
		{ID: "2", RelativePath: "aa/sub2"},
		{ID: "3", RelativePath: "aa/sub3"},
	}

	out, err := MigrateLegacyProgress(legacy, discovered)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Status != TaskCompleted || out[1].Status != TaskCompleted {
		t.Errorf("first two tasks should be completed, got %q/%q", out[0].Status, out[1].Status)
	}
	if out[2].Status != TaskPending {
		t.Errorf("third task should stay pending, got %q", out[2].Status)
	}

	if _, err := os.Stat(legacy); !os.IsNotExist(err) {
		t.Error("legacy file should have been renamed aside")
	}
	if _, err := os.Stat(legacy + ".bak"); err != nil {
		t.Errorf("legacy backup missing: %v", err)
	}
}

func TestMigrateLegacyProgressMissingFileIsNoop(t *testing.T) {
	discovered := []Task{{ID: "1", RelativePath: "aa/sub1"}}
	out, err := MigrateLegacyProgress(filepath.Join(t.TempDir(), "phase3_progress.json"), discovered)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Status != "" {
		t.Fatalf("tasks should be returned unchanged, got %+v", out)
	}
}
