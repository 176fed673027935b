package coordinator

import (
	"context"
	"log"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/oniz93/business-finder/durablestate"
)

// StaleTimeout is how long an assigned worker may go silent before its
// tasks revert to Pending.
const StaleTimeout = 60 * time.Second

// SweepInterval is how often the coordinator checks for stale
// assignments and persists its checkpoint.
const SweepInterval = 30 * time.Second

// Coordinator holds the Task registry and dispatches work to workers
// connecting over TCP: a mutex-guarded task registry instead of an
// in-process task channel, with workers as remote peers rather than
// goroutines.
type Coordinator struct {
	store durablestate.Store

	mu       sync.Mutex
	tasks    map[string]*Task
	order    []string // FIFO task id order, for deterministic assignment
	lastSeen map[string]time.Time
}

// NewCoordinator builds a Coordinator from a freshly discovered task
// list, restoring prior state from store if a checkpoint exists.
func NewCoordinator(ctx context.Context, store durablestate.Store, discovered []Task) (*Coordinator, error) {
	c := &Coordinator{
		store:    store,
		tasks:    make(map[string]*Task),
		lastSeen: make(map[string]time.Time),
	}

	var cp CoordinatorCheckpoint
	ok, err := durablestate.LoadJSON(ctx, store, &cp)
	if err != nil {
		return nil, err
	}

	if ok {
		restored := restoreTasks(cp.Tasks)
		known := make(map[string]Task, len(restored))
		for _, t := range restored {
			known[t.RelativePath] = t
		}
		for _, d := range discovered {
			if prior, found := known[d.RelativePath]; found {
				d = prior
			}
			c.addTask(d)
		}
	} else {
		for _, d := range discovered {
			c.addTask(d)
		}
	}

	return c, nil
}

func (c *Coordinator) addTask(t Task) {
	if t.Status == "" {
		t.Status = TaskPending
	}
	c.tasks[t.ID] = &t
	c.order = append(c.order, t.ID)
}

// Serve accepts worker connections on ln and runs the sweep-and-persist
// tick until ctx is cancelled.
func (c *Coordinator) Serve(ctx context.Context, ln net.Listener) error {
	go c.sweepLoop(ctx)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go c.handleConn(conn)
	}
}

func (c *Coordinator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepStale()
			c.logStatus()
			if err := c.persist(ctx); err != nil {
				log.Printf("coordinator: checkpoint write failed: %v", err)
			}
		}
	}
}

// logStatus prints a periodic task/worker summary on every sweep tick.
func (c *Coordinator) logStatus() {
	c.mu.Lock()
	var pending, assigned, completed int
	for _, t := range c.tasks {
		switch t.Status {
		case TaskPending:
			pending++
		case TaskAssigned:
			assigned++
		case TaskCompleted:
			completed++
		}
	}
	workers := len(c.lastSeen)
	c.mu.Unlock()
	log.Printf("coordinator: %d pending, %d assigned, %d completed, %d workers seen", pending, assigned, completed, workers)
}

// sweepStale reverts Assigned tasks whose worker has gone silent for
// longer than StaleTimeout back to Pending. A worker still heartbeating
// keeps its assignment no matter how long the task itself takes; the
// assignment time only matters for a worker that was never heard from
// again after taking the task.
func (c *Coordinator) sweepStale() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, t := range c.tasks {
		if t.Status != TaskAssigned {
			continue
		}
		seen, ok := c.lastSeen[t.WorkerID]
		if !ok {
			seen = t.AssignedAt
		}
		if now.Sub(seen) > StaleTimeout {
			t.Status = TaskPending
			t.WorkerID = ""
			t.AssignedAt = time.Time{}
		}
	}
}

func (c *Coordinator) persist(ctx context.Context) error {
	c.mu.Lock()
	cp := c.snapshotLocked()
	c.mu.Unlock()
	return durablestate.SaveJSON(ctx, c.store, cp)
}

func (c *Coordinator) snapshotLocked() CoordinatorCheckpoint {
	tasks := make([]Task, 0, len(c.tasks))
	for _, id := range c.order {
		tasks = append(tasks, *c.tasks[id])
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return CoordinatorCheckpoint{Version: checkpointVersion, Tasks: tasks}
}

func (c *Coordinator) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			return // EOF (clean disconnect) or a framing error: either way, stop serving this peer
		}

		switch m := msg.(type) {
		case RequestTask:
			reply := c.assignNext(m.WorkerID)
			if err := WriteMessage(conn, reply); err != nil {
				return
			}
		case TaskComplete:
			c.completeTask(m)
			// Completion is a state change of interest: persist now
			// rather than waiting up to a full sweep tick.
			if err := c.persist(context.Background()); err != nil {
				log.Printf("coordinator: checkpoint write failed: %v", err)
			}
		case Heartbeat:
			c.touch(m.WorkerID)
		default:
			return // unexpected message type: protocol violation, disconnect
		}
	}
}

// assignNext picks the first Pending task in FIFO order and marks it
// Assigned to workerID, or returns NoTasksAvailable.
func (c *Coordinator) assignNext(workerID string) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastSeen[workerID] = time.Now()
	for _, id := range c.order {
		t := c.tasks[id]
		if t.Status == TaskPending {
			t.Status = TaskAssigned
			t.WorkerID = workerID
			t.AssignedAt = time.Now()
			return AssignTask{TaskID: t.ID, RelativePath: t.RelativePath}
		}
	}
	return NoTasksAvailable{}
}

func (c *Coordinator) completeTask(m TaskComplete) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tasks[m.TaskID]
	if !ok {
		return
	}
	if m.Success {
		t.Status = TaskCompleted
		t.Error = ""
	} else {
		t.Error = m.Error
		t.Status = TaskPending
		t.WorkerID = ""
		t.AssignedAt = time.Time{}
		c.requeueAtTailLocked(m.TaskID)
	}
}

// requeueAtTailLocked moves id to the back of the FIFO order, so a
// failed task is retried only after every other currently-pending task
// has had a turn. Caller must hold c.mu.
func (c *Coordinator) requeueAtTailLocked(id string) {
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, id)
}

func (c *Coordinator) touch(workerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen[workerID] = time.Now()
}

// Done reports whether every task has reached a terminal Completed
// state.
func (c *Coordinator) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tasks {
		if t.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of every task's current state, for reporting.
func (c *Coordinator) Snapshot() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := c.snapshotLocked()
	return cp.Tasks
}
