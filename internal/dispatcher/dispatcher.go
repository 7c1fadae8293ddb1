// Package dispatcher owns the notification worker pool and is the enqueue
// side the leads service talks to.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/metrics"
	"github.com/JakeFAU/flightdeck/internal/notify"
	"github.com/JakeFAU/flightdeck/internal/worker"
)

// ErrMissingRequestID is returned for jobs that do not reference a stored lead.
var ErrMissingRequestID = errors.New("dispatcher: job has no request id")

// Dispatcher fans queued notification jobs out to a pool of workers.
type Dispatcher struct {
	queue   notify.Queue
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher. A nil logger discards output.
func New(queue notify.Queue, workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger,
	}
}

// Run starts all workers and blocks until every worker has returned. Workers
// return when ctx is canceled or the queue is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("notification workers starting", zap.Int("workers", len(d.workers)))
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
	d.logger.Info("notification workers stopped")
}

// Enqueue stamps the first attempt on job and hands it to the queue.
func (d *Dispatcher) Enqueue(ctx context.Context, job notify.Job) error {
	if job.RequestID == "" {
		job.RequestID = job.Request.ID
	}
	if job.RequestID == "" {
		return ErrMissingRequestID
	}
	if job.Attempt == 0 {
		job.Attempt = 1
	}
	if err := d.queue.Enqueue(ctx, job); err != nil {
		metrics.ObserveNotification("queue", "rejected")
		d.logger.Warn("notification not queued", zap.String("request_id", job.RequestID), zap.Error(err))
		return fmt.Errorf("queue enqueue: %w", err)
	}
	metrics.ObserveNotification("queue", "queued")
	return nil
}
