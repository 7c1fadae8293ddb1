package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/notify"
	"github.com/JakeFAU/flightdeck/internal/publisher/memory"
	queuemem "github.com/JakeFAU/flightdeck/internal/queue/memory"
	"github.com/JakeFAU/flightdeck/internal/site"
	"github.com/JakeFAU/flightdeck/internal/worker"
)

// TestDispatcherRunStartsWorkers ensures workers begin processing and stop on cancel.
func TestDispatcherRunStartsWorkers(t *testing.T) {
	t.Parallel()

	queue := &blockingQueue{started: make(chan struct{}, 1)}
	w := worker.New(queue, nil, nil, nil, worker.Config{}, zap.NewNop())
	dispatch := New(queue, []*worker.Worker{w}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	select {
	case <-queue.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not begin dequeuing")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

// TestDispatcherDrainsClosedQueue ensures buffered jobs are delivered before workers exit.
func TestDispatcherDrainsClosedQueue(t *testing.T) {
	t.Parallel()

	queue := queuemem.NewQueue(4)
	pub := memory.New()
	workers := []*worker.Worker{
		worker.New(queue, nil, pub, nil, worker.Config{Topic: "leads"}, zap.NewNop()),
		worker.New(queue, nil, pub, nil, worker.Config{Topic: "leads"}, zap.NewNop()),
	}
	dispatch := New(queue, workers, zap.NewNop())
	for i := 0; i < 3; i++ {
		job := notify.Job{RequestID: fmt.Sprintf("r%d", i), Request: site.Request{ID: fmt.Sprintf("r%d", i)}}
		if err := dispatch.Enqueue(context.Background(), job); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	queue.Close()

	done := make(chan struct{})
	go func() {
		dispatch.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not exit after queue close")
	}
	if got := len(pub.Messages()); got != 3 {
		t.Fatalf("expected 3 published events, got %d", got)
	}
}

// TestDispatcherEnqueueForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherEnqueueForwardsErrors(t *testing.T) {
	t.Parallel()

	queue := &errorQueue{err: errors.New("boom")}
	dispatch := New(queue, nil, nil)

	err := dispatch.Enqueue(context.Background(), notify.Job{RequestID: "job"})
	if err == nil || err.Error() != "queue enqueue: boom" {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

type blockingQueue struct {
	started chan struct{}
}

func (q *blockingQueue) Enqueue(_ context.Context, _ notify.Job) error {
	return nil
}

func (q *blockingQueue) Dequeue(ctx context.Context) (notify.Job, error) {
	select {
	case q.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return notify.Job{}, fmt.Errorf("blocking dequeue canceled: %w", ctx.Err())
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, notify.Job) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (notify.Job, error) {
	return notify.Job{}, q.err
}

func TestDispatcherEnqueueStampsJob(t *testing.T) {
	t.Parallel()

	queue := queuemem.NewQueue(1)
	dispatch := New(queue, nil, nil)
	if err := dispatch.Enqueue(context.Background(), notify.Job{Request: site.Request{ID: "lead-7"}}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	job, err := queue.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if job.RequestID != "lead-7" || job.Attempt != 1 {
		t.Fatalf("expected request id and first attempt, got %+v", job)
	}
}

func TestDispatcherEnqueueRejectsAnonymousJobs(t *testing.T) {
	t.Parallel()

	dispatch := New(queuemem.NewQueue(1), nil, nil)
	if err := dispatch.Enqueue(context.Background(), notify.Job{}); !errors.Is(err, ErrMissingRequestID) {
		t.Fatalf("expected ErrMissingRequestID, got %v", err)
	}
}
