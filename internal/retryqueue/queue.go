// Package retryqueue makes rating updates eventually consistent. When a
// reservation workflow cannot reach the rating service, it enqueues the
// pending delta here; a single background worker drains the queue once the
// service recovers.
package retryqueue

import (
	"context"
	"sync"
	"time"

	"github.com/dskow/library-gateway/internal/metrics"
)

// Task is a pending relative change to one user's rating. The delta is
// applied on top of whatever score the rating service reports at drain time,
// not an absolute target, so a task stays safe to retry against a stale or
// concurrently-updated score.
type Task struct {
	UserName string
	Delta    int
}

// Queue is a multi-producer single-consumer FIFO of rating adjustment tasks.
// Enqueue never blocks; Pop blocks with a bounded wait so the consumer can
// observe cancellation.
type Queue struct {
	mu     sync.Mutex
	tasks  []Task
	notify chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Enqueue appends a task at the tail. It never blocks and never fails.
func (q *Queue) Enqueue(t Task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	depth := len(q.tasks)
	q.mu.Unlock()

	metrics.RetryQueueDepth.Set(float64(depth))

	// Non-blocking wake-up; one pending signal is enough for one consumer.
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the head task. When the queue is empty it waits up
// to wait for a producer, returning false on timeout or context cancellation.
func (q *Queue) Pop(ctx context.Context, wait time.Duration) (Task, bool) {
	if t, ok := q.take(); ok {
		return t, true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-q.notify:
			if t, ok := q.take(); ok {
				return t, true
			}
			// Signal raced with an earlier take; keep waiting.
		case <-timer.C:
			return Task{}, false
		case <-ctx.Done():
			return Task{}, false
		}
	}
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *Queue) take() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return Task{}, false
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	metrics.RetryQueueDepth.Set(float64(len(q.tasks)))
	return t, true
}
