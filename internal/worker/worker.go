// Package worker delivers lead notifications pulled from the notification queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/metrics"
	"github.com/JakeFAU/flightdeck/internal/notify"
	"github.com/JakeFAU/flightdeck/internal/notify/email"
	"github.com/JakeFAU/flightdeck/internal/policy/retry"
)

// Config controls Worker behavior.
type Config struct {
	// To lists the office recipients of lead emails. Empty disables email.
	To []string
	// Topic is the Pub/Sub topic for lead events. Empty disables publishing.
	Topic string
	// SendTimeout bounds each delivery attempt (default 15s).
	SendTimeout time.Duration
}

// Worker consumes notification jobs and delivers them by email and Pub/Sub.
type Worker struct {
	queue     notify.Queue
	sender    email.Sender
	publisher notify.Publisher
	retry     retry.Policy
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. A nil retry policy uses the default exponential policy.
func New(
	queue notify.Queue,
	sender email.Sender,
	publisher notify.Publisher,
	policy retry.Policy,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if policy == nil {
		policy = retry.NewExponentialRetryPolicy()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		sender:    sender,
		publisher: publisher,
		retry:     policy,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, notify.ErrQueueClosed) {
				w.logger.Debug("notification queue closed; worker exiting")
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued notification", zap.String("request_id", job.RequestID))
		w.Process(ctx, job)
	}
}

// Process delivers one job through every configured channel. Failures are logged and dropped.
func (w *Worker) Process(ctx context.Context, job notify.Job) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	if w.sender != nil && len(w.cfg.To) > 0 {
		w.deliver(ctx, job, "email", func(ctx context.Context) error {
			msg, err := email.LeadMessage(job.Request, w.cfg.To)
			if err != nil {
				return retry.Permanent(err)
			}
			_, err = w.sender.Send(ctx, msg)
			return err
		})
	}
	if w.publisher != nil && w.cfg.Topic != "" {
		w.deliver(ctx, job, "pubsub", func(ctx context.Context) error {
			_, err := w.publisher.Publish(ctx, w.cfg.Topic, notify.NewLeadEvent(job.Request))
			return err
		})
	}
}

func (w *Worker) deliver(ctx context.Context, job notify.Job, channel string, send func(context.Context) error) {
	attempts, err := retry.Do(ctx, w.retry, func(ctx context.Context, attempt int) error {
		job.Attempt = attempt
		attemptCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
		defer cancel()
		if err := send(attemptCtx); err != nil {
			w.logger.Warn("notification attempt failed",
				zap.String("request_id", job.RequestID),
				zap.String("channel", channel),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return fmt.Errorf("%s delivery: %w", channel, err)
		}
		return nil
	})
	if err != nil {
		metrics.ObserveNotification(channel, "failed")
		w.logger.Error("notification dropped",
			zap.String("request_id", job.RequestID),
			zap.String("channel", channel),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveNotification(channel, "sent")
	w.logger.Info("notification delivered",
		zap.String("request_id", job.RequestID),
		zap.String("channel", channel),
		zap.Int("attempts", attempts),
	)
}
