package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/flightdeck/internal/notify"
)

func TestQueueIsFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)
	ctx := context.Background()
	for _, id := range []string{"lead-1", "lead-2", "lead-3"} {
		require.NoError(t, q.Enqueue(ctx, notify.Job{RequestID: id, Attempt: 1}))
	}
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 3, q.Cap())

	for _, want := range []string{"lead-1", "lead-2", "lead-3"} {
		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, job.RequestID)
	}
	assert.Zero(t, q.Len())
}

func TestQueueDequeueWaitsForWork(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	got := make(chan notify.Job, 1)
	go func() {
		job, err := q.Dequeue(context.Background())
		if err == nil {
			got <- job
		}
	}()

	require.NoError(t, q.Enqueue(context.Background(), notify.Job{RequestID: "late"}))
	select {
	case job := <-got:
		assert.Equal(t, "late", job.RequestID)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return the job")
	}
}

func TestQueueFullEnqueueHonoursDeadline(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), notify.Job{RequestID: "first"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, notify.Job{RequestID: "second"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "second")
	assert.Equal(t, 1, q.Len())
}

func TestQueueDequeueCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewQueue(1).Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueueCloseDrainsThenErrors(t *testing.T) {
	t.Parallel()

	q := NewQueue(0)
	assert.Equal(t, 1, q.Cap())
	require.NoError(t, q.Enqueue(context.Background(), notify.Job{RequestID: "buffered"}))
	q.Close()

	assert.ErrorIs(t, q.Enqueue(context.Background(), notify.Job{RequestID: "late"}), ErrClosed)
	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "buffered", job.RequestID)
	_, err = q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	q.Close()
}
