// Package memory provides the bounded in-process notification queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/flightdeck/internal/metrics"
	"github.com/JakeFAU/flightdeck/internal/notify"
)

// ErrClosed is returned by Enqueue after Close, and by Dequeue once the queue is closed and drained.
var ErrClosed = notify.ErrQueueClosed

// Queue is a bounded FIFO of notification jobs. Enqueue blocks while the
// queue is full so a burst of leads applies backpressure to the handler,
// which bounds the wait with its own context.
type Queue struct {
	jobs chan notify.Job

	mu     sync.RWMutex
	closed bool
}

// NewQueue returns a queue holding at most capacity jobs (minimum 1).
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{jobs: make(chan notify.Job, capacity)}
}

// Enqueue adds job, waiting for space until ctx ends.
func (q *Queue) Enqueue(ctx context.Context, job notify.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.jobs <- job:
		metrics.SetQueueDepth(len(q.jobs))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification %s not queued: %w", job.RequestID, ctx.Err())
	}
}

// Dequeue returns the oldest job. After Close it keeps returning buffered
// jobs, then ErrClosed.
func (q *Queue) Dequeue(ctx context.Context) (notify.Job, error) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return notify.Job{}, ErrClosed
		}
		metrics.SetQueueDepth(len(q.jobs))
		return job, nil
	case <-ctx.Done():
		return notify.Job{}, fmt.Errorf("dequeue: %w", ctx.Err())
	}
}

// Len reports the number of buffered jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Cap reports the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.jobs)
}

// Close stops new jobs. It waits for blocked Enqueue calls to give up, so
// callers should bound those with a context.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.jobs)
}
