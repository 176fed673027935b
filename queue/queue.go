// Package queue implements the remote job queue shared by the
// inference and embedding pipelines: a Redis LIST supporting push,
// pop-up-to-n, blocking pop, length and delete, kept behind a narrow
// interface so tests can substitute an in-process double.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oniz93/business-finder/errkind"
)

// Queue is the minimal contract every producer/worker/writer in the
// inference and embedding pipelines depends on.
type Queue interface {
	Push(ctx context.Context, queue string, items ...string) error
	PopUpToN(ctx context.Context, queue string, n int) ([]string, error)
	BlockingPop(ctx context.Context, queue string, timeout time.Duration) (string, bool, error)
	Length(ctx context.Context, queue string) (int64, error)
	Delete(ctx context.Context, queue string) error
}

// RedisQueue implements Queue over a single Redis connection.
type RedisQueue struct {
	client *redis.Client
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue dials addr ("host:port") with the given database index.
func NewRedisQueue(addr string, db int) *RedisQueue {
	return &RedisQueue{client: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

// Push atomically appends items to queue via a single multi-value
// LPUSH.
func (q *RedisQueue) Push(ctx context.Context, queueName string, items ...string) error {
	if len(items) == 0 {
		return nil
	}
	args := make([]any, len(items))
	for i, it := range items {
		args[i] = it
	}
	if err := q.client.LPush(ctx, queueName, args...).Err(); err != nil {
		return fmt.Errorf("%w: push to %s: %v", errkind.ErrRemoteQueue, queueName, err)
	}
	return nil
}

// PopUpToN is a non-blocking pop of at most n items.
func (q *RedisQueue) PopUpToN(ctx context.Context, queueName string, n int) ([]string, error) {
	items, err := q.client.RPopCount(ctx, queueName, n).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: pop up to %d from %s: %v", errkind.ErrRemoteQueue, n, queueName, err)
	}
	return items, nil
}

// BlockingPop pops one item, blocking up to timeout. ok is false if the
// pop timed out with nothing available.
func (q *RedisQueue) BlockingPop(ctx context.Context, queueName string, timeout time.Duration) (string, bool, error) {
	result, err := q.client.BRPop(ctx, timeout, queueName).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: blocking pop from %s: %v", errkind.ErrRemoteQueue, queueName, err)
	}
	if len(result) < 2 {
		return "", false, nil
	}
	return result[1], true, nil
}

// Length reports the current queue length.
func (q *RedisQueue) Length(ctx context.Context, queueName string) (int64, error) {
	n, err := q.client.LLen(ctx, queueName).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: length of %s: %v", errkind.ErrRemoteQueue, queueName, err)
	}
	return n, nil
}

// Delete removes the queue entirely, used by producers to clear stale
// jobs on a fresh (checkpoint-less) start.
func (q *RedisQueue) Delete(ctx context.Context, queueName string) error {
	if err := q.client.Del(ctx, queueName).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %v", errkind.ErrRemoteQueue, queueName, err)
	}
	return nil
}

// BackoffWait sleeps with exponential backoff and full jitter (100ms
// base, 30s cap), used by producers/workers recovering from transient
// remote-queue errors.
func BackoffWait(ctx context.Context, attempt int) {
	const base = 100 * time.Millisecond
	const cap = 30 * time.Second

	backoff := base * time.Duration(1<<uint(min(attempt, 20)))
	if backoff > cap {
		backoff = cap
	}
	jittered := time.Duration(rand.Int64N(int64(backoff) + 1))

	select {
	case <-time.After(jittered):
	case <-ctx.Done():
	}
}

// Retry runs op until it succeeds, fails with a non-queue error, or ctx
// is cancelled, sleeping with BackoffWait between attempts. Transient
// remote-queue errors are logged and retried rather than propagated, so
// a Redis hiccup stalls a phase instead of terminating it.
func Retry(ctx context.Context, label string, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, errkind.ErrRemoteQueue) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		slog.Warn("queue: transient error, retrying", "op", label, "attempt", attempt+1, "error", err)
		BackoffWait(ctx, attempt)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
