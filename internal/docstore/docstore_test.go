package docstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type plane struct {
	Name string `json:"name"`
	Year int    `json:"year"`
}

func TestCollectionRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	planes := NewCollection[plane](NewMemoryBackend(), "aircraft")

	require.NoError(t, planes.Put(ctx, "a1", plane{Name: "Skyhawk", Year: 2019}))
	require.NoError(t, planes.Put(ctx, "a2", plane{Name: "Archer", Year: 2008}))

	got, err := planes.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, plane{Name: "Skyhawk", Year: 2019}, got)

	all, err := planes.List(ctx)
	require.NoError(t, err)
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	require.Equal(t, []plane{{"Archer", 2008}, {"Skyhawk", 2019}}, all)

	require.NoError(t, planes.Delete(ctx, "a1"))
	_, err = planes.Get(ctx, "a1")
	require.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)
	require.ErrorIs(t, planes.Delete(ctx, "a1"), ErrNotFound)
}

func TestCollectionPutRequiresID(t *testing.T) {
	t.Parallel()

	planes := NewCollection[plane](NewMemoryBackend(), "aircraft")
	require.Error(t, planes.Put(context.Background(), "", plane{}))
}

func TestMemoryBackendPreservesCreatedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	backend.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}

	require.NoError(t, backend.Put(ctx, "c", "id", []byte(`{}`)))
	require.NoError(t, backend.Put(ctx, "c", "id", []byte(`{"v":1}`)))

	doc, err := backend.Get(ctx, "c", "id")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC), doc.CreatedAt)
	require.Equal(t, time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC), doc.UpdatedAt)
	require.JSONEq(t, `{"v":1}`, string(doc.Body))
}

func TestMemoryBackendCopiesBodies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend()
	body := []byte(`{"a":1}`)
	require.NoError(t, backend.Put(ctx, "c", "id", body))
	body[2] = 'b'

	doc, err := backend.Get(ctx, "c", "id")
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(doc.Body))
	doc.Body[2] = 'z'

	again, err := backend.Get(ctx, "c", "id")
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(again.Body))
}

func TestMemoryBackendCountersAreAtomic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = backend.Increment(ctx, "requests.total", 1)
		}()
	}
	wg.Wait()

	got, err := backend.Counter(ctx, "requests.total")
	require.NoError(t, err)
	require.Equal(t, int64(50), got)

	missing, err := backend.Counter(ctx, "nope")
	require.NoError(t, err)
	require.Zero(t, missing)
}
