package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/site"
)

type stubStore struct {
	mu      sync.Mutex
	batches [][]site.PageView
	err     error
}

func (s *stubStore) Record(_ context.Context, views []site.PageView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]site.PageView(nil), views...))
	return nil
}

func (s *stubStore) Range(context.Context, time.Time, time.Time) ([]site.PageView, error) {
	return nil, nil
}

func (s *stubStore) Batches() [][]site.PageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]site.PageView(nil), s.batches...)
}

func sampleView(path string) site.PageView {
	return site.PageView{ID: path, Path: path, ViewedAt: time.Unix(1700000000, 0).UTC()}
}

// TestRecorderBatchBySize verifies the recorder flushes once the batch size limit is reached.
func TestRecorderBatchBySize(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	rec := NewRecorder(store, RecorderConfig{BufferSize: 8, MaxBatch: 2, MaxBatchWait: time.Minute})
	defer func() { require.NoError(t, rec.Close(context.Background())) }()

	rec.Record(sampleView("/a"))
	rec.Record(sampleView("/b"))
	require.Eventually(t, func() bool {
		b := store.Batches()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestRecorderBatchByTimer verifies small batches are flushed after the max wait.
func TestRecorderBatchByTimer(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	rec := NewRecorder(store, RecorderConfig{BufferSize: 4, MaxBatch: 10, MaxBatchWait: 25 * time.Millisecond})
	defer func() { require.NoError(t, rec.Close(context.Background())) }()

	rec.Record(sampleView("/a"))
	require.Eventually(t, func() bool { return len(store.Batches()) == 1 }, time.Second, 5*time.Millisecond)
}

// TestRecorderFlushOnClose ensures Close drains buffered views.
func TestRecorderFlushOnClose(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	rec := NewRecorder(store, RecorderConfig{BufferSize: 4, MaxBatch: 100, MaxBatchWait: time.Minute})
	rec.Record(sampleView("/a"))
	rec.Record(sampleView("/b"))

	require.NoError(t, rec.Close(context.Background()))
	require.Len(t, store.Batches(), 1)
	require.Len(t, store.Batches()[0], 2)

	rec.Record(sampleView("/late"))
	require.NoError(t, rec.Close(context.Background()))
	require.Len(t, store.Batches(), 1)
	require.Equal(t, int64(1), rec.Dropped())
}

// TestRecorderRecordRacingClose checks every view sent around Close is either stored or counted as dropped.
func TestRecorderRecordRacingClose(t *testing.T) {
	t.Parallel()

	for round := 0; round < 20; round++ {
		store := &stubStore{}
		rec := NewRecorder(store, RecorderConfig{BufferSize: 1024, MaxBatch: 16, MaxBatchWait: time.Millisecond})

		const writers, perWriter = 8, 50
		var wg sync.WaitGroup
		start := make(chan struct{})
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < perWriter; i++ {
					rec.Record(sampleView("/race"))
				}
			}()
		}
		close(start)
		require.NoError(t, rec.Close(context.Background()))
		wg.Wait()

		stored := 0
		for _, b := range store.Batches() {
			stored += len(b)
		}
		require.Equal(t, writers*perWriter, stored+int(rec.Dropped()), "round %d", round)
	}
}

// TestRecorderDropsInvalidViews ensures views failing validation never reach the store.
func TestRecorderDropsInvalidViews(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	rec := NewRecorder(store, RecorderConfig{MaxBatch: 100, MaxBatchWait: time.Minute})
	rec.Record(site.PageView{Path: "no-slash", ViewedAt: time.Now()})
	rec.Record(site.PageView{Path: "/no-time"})
	require.NoError(t, rec.Close(context.Background()))
	require.Empty(t, store.Batches())
}

// TestRecorderRecordNonBlocking asserts Record never blocks when nobody consumes.
func TestRecorderRecordNonBlocking(t *testing.T) {
	t.Parallel()

	rec := &Recorder{
		cfg:    RecorderConfig{},
		views:  make(chan site.PageView),
		logger: zap.NewNop(),
	}
	start := time.Now()
	rec.Record(sampleView("/a"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

// TestRecorderStoreErrorIsSwallowed ensures a failing store does not wedge the recorder.
func TestRecorderStoreErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	store := &stubStore{err: errors.New("db down")}
	rec := NewRecorder(store, RecorderConfig{MaxBatch: 1, MaxBatchWait: time.Minute})
	rec.Record(sampleView("/a"))
	require.NoError(t, rec.Close(context.Background()))
}
