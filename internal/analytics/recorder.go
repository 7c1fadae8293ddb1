package analytics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/metrics"
	"github.com/JakeFAU/flightdeck/internal/site"
)

// RecorderConfig controls buffering and batching for the Recorder.
//   - BufferSize: size of the internal channel (default 4096).
//   - MaxBatch: flush once this many views queue (default 200).
//   - MaxBatchWait: flush after this duration even if the batch is small (default 2s).
//   - StoreTimeout: timeout for each store write (default 10s).
//   - BaseContext: parent context for store writes (defaults to context.Background()).
//   - Logger: optional structured logger used for warnings.
type RecorderConfig struct {
	BufferSize   int
	MaxBatch     int
	MaxBatchWait time.Duration
	StoreTimeout time.Duration
	BaseContext  context.Context
	Logger       *zap.Logger
}

const (
	defaultBufferSize   = 4096
	defaultMaxBatch     = 200
	defaultMaxBatchWait = 2 * time.Second
	defaultStoreTimeout = 10 * time.Second
	dropLogInterval     = 5 * time.Second
)

// Recorder batches pageviews and writes them to a PageViewStore. It is safe for
// concurrent use and never blocks callers.
type Recorder struct {
	cfg         RecorderConfig
	store       PageViewStore
	views       chan site.PageView
	stopCh      chan struct{}
	doneCh      chan struct{}
	logger      *zap.Logger
	dropLimiter rateLimiter
	dropped     atomic.Int64
	lost        atomic.Int64

	// mu makes the closed check and the channel send atomic with respect to Close.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewRecorder starts the background batching goroutine and returns a ready Recorder.
func NewRecorder(store PageViewStore, cfg RecorderConfig) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = defaultMaxBatchWait
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		cfg:         cfg,
		store:       store,
		views:       make(chan site.PageView, cfg.BufferSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      logger,
		dropLimiter: rateLimiter{interval: dropLogInterval},
	}
	go r.run()
	return r
}

// Record enqueues a view. Invalid views are discarded. When the buffer is full
// or the recorder is closed the view is dropped and a rate-limited warning is logged.
func (r *Recorder) Record(v site.PageView) {
	if r == nil {
		return
	}
	if err := v.Validate(); err != nil {
		r.logger.Debug("discarding invalid pageview", zap.Error(err), zap.String("path", v.Path))
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop("recorder closed")
		return
	}
	select {
	case r.views <- v:
	default:
		r.drop("backpressure")
	}
}

// Dropped reports how many valid views were discarded since the recorder started.
func (r *Recorder) Dropped() int64 {
	return r.lost.Load()
}

func (r *Recorder) drop(reason string) {
	metrics.ObservePageviewsDropped(1)
	r.lost.Add(1)
	r.dropped.Add(1)
	if r.dropLimiter.Allow(time.Now()) {
		count := r.dropped.Swap(0)
		r.logger.Warn("pageviews dropped", zap.String("reason", reason), zap.Int64("dropped", count))
	}
}

// Close drains buffered views, flushes them and waits for the background
// goroutine to exit or ctx to end. Subsequent calls only wait.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.stopCh)
	})
	select {
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pageview recorder close wait: %w", ctx.Err())
	}
}

func (r *Recorder) run() {
	defer close(r.doneCh)
	batch := make([]site.PageView, 0, r.cfg.MaxBatch)
	timer := time.NewTimer(r.cfg.MaxBatchWait)
	timer.Stop()
	timerActive := false
	for {
		select {
		case v := <-r.views:
			batch = append(batch, v)
			if len(batch) >= r.cfg.MaxBatch {
				r.flush(batch)
				batch = batch[:0]
				stopTimer(timer, &timerActive)
			} else if !timerActive {
				timer.Reset(r.cfg.MaxBatchWait)
				timerActive = true
			}
		case <-timer.C:
			timerActive = false
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-r.stopCh:
			stopTimer(timer, &timerActive)
			r.drain(batch)
			return
		}
	}
}

func (r *Recorder) drain(batch []site.PageView) {
	for {
		select {
		case v := <-r.views:
			batch = append(batch, v)
			if len(batch) >= r.cfg.MaxBatch {
				r.flush(batch)
				batch = batch[:0]
			}
		default:
			r.flush(batch)
			return
		}
	}
}

func (r *Recorder) flush(batch []site.PageView) {
	if len(batch) == 0 || r.store == nil {
		return
	}
	copyBatch := append([]site.PageView(nil), batch...)
	ctx, cancel := context.WithTimeout(r.cfg.BaseContext, r.cfg.StoreTimeout)
	defer cancel()
	if err := r.store.Record(ctx, copyBatch); err != nil {
		metrics.ObservePageviewsDropped(len(copyBatch))
		r.logger.Warn("pageview store write failed", zap.Error(err), zap.Int("views", len(copyBatch)))
		return
	}
	metrics.ObservePageviewsRecorded(len(copyBatch))
}

func stopTimer(timer *time.Timer, timerActive *bool) {
	if !*timerActive {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	*timerActive = false
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
