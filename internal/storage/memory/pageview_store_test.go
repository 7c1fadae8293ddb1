package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/flightdeck/internal/site"
)

func TestPageViewStoreRangeIsHalfOpenAndSorted(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewPageViewStore()
	require.NoError(t, store.Record(context.Background(), []site.PageView{
		{ID: "c", Path: "/c", ViewedAt: base.Add(2 * time.Hour)},
		{ID: "a", Path: "/a", ViewedAt: base},
		{ID: "b", Path: "/b", ViewedAt: base.Add(time.Hour)},
		{ID: "a", Path: "/dup", ViewedAt: base},
	}))

	got, err := store.Range(context.Background(), base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "/a", got[0].Path)
	require.Equal(t, "/b", got[1].Path)
}
