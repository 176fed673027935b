package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue implementation, used by tests for
// the producer/worker/writer packages so they don't require a live Redis
// server to exercise the contract.
type MemoryQueue struct {
	mu    sync.Mutex
	lists map[string][]string
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{lists: make(map[string][]string)}
}

func (q *MemoryQueue) Push(ctx context.Context, queueName string, items ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	// LPUSH prepends each item in argument order, so the last argument
	// ends up at the head and the first pushed item stays nearest the
	// tail, where RPOP drains from.
	for _, it := range items {
		q.lists[queueName] = append([]string{it}, q.lists[queueName]...)
	}
	return nil
}

func (q *MemoryQueue) PopUpToN(ctx context.Context, queueName string, n int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.lists[queueName]
	if len(list) == 0 {
		return nil, nil
	}
	if n > len(list) {
		n = len(list)
	}
	// RPOP pops one item at a time from the tail, so the result order is
	// the reverse of the stored tail slice.
	popped := make([]string, n)
	for i := 0; i < n; i++ {
		popped[i] = list[len(list)-1-i]
	}
	q.lists[queueName] = list[:len(list)-n]
	return popped, nil
}

func (q *MemoryQueue) BlockingPop(ctx context.Context, queueName string, timeout time.Duration) (string, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		list := q.lists[queueName]
		if len(list) > 0 {
			v := list[len(list)-1]
			q.lists[queueName] = list[:len(list)-1]
			q.mu.Unlock()
			return v, true, nil
		}
		q.mu.Unlock()

		if time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (q *MemoryQueue) Length(ctx context.Context, queueName string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.lists[queueName])), nil
}

func (q *MemoryQueue) Delete(ctx context.Context, queueName string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.lists, queueName)
	return nil
}
