package analytics

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/flightdeck/internal/site"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func viewsAt(times ...time.Time) []site.PageView {
	out := make([]site.PageView, 0, len(times))
	for _, ts := range times {
		out = append(out, site.PageView{Path: "/", ViewedAt: ts})
	}
	return out
}

func requireContiguous(t *testing.T, buckets []Bucket, g Granularity) {
	t.Helper()
	for i := 1; i < len(buckets); i++ {
		require.True(t, buckets[i-1].Start.Before(buckets[i].Start), "bucket %d not increasing", i)
		require.True(t, nextBucket(buckets[i-1].Start, g).Equal(buckets[i].Start), "gap before bucket %d", i)
	}
}

func TestSeriesDailyFillsEmptyBuckets(t *testing.T) {
	t.Parallel()

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	views := viewsAt(
		from.Add(2*time.Hour),
		from.Add(3*time.Hour),
		from.AddDate(0, 0, 3).Add(time.Hour),
		from.Add(-time.Minute),
		to,
	)

	buckets, err := Series(views, Day, time.UTC, from, to)
	require.NoError(t, err)
	require.Len(t, buckets, 7)
	requireContiguous(t, buckets, Day)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 0, buckets[1].Count)
	assert.Equal(t, 1, buckets[3].Count)
	assert.Equal(t, "2025-01-01", buckets[0].Label)

	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	assert.Equal(t, 3, total)
}

func TestSeriesHourlyAcrossFallBack(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	from := time.Date(2025, 11, 2, 0, 0, 0, 0, ny)
	to := time.Date(2025, 11, 3, 0, 0, 0, 0, ny)

	firstOne := time.Date(2025, 11, 2, 5, 30, 0, 0, time.UTC)  // 01:30 EDT
	secondOne := time.Date(2025, 11, 2, 6, 30, 0, 0, time.UTC) // 01:30 EST

	buckets, err := Series(viewsAt(firstOne, secondOne), Hour, ny, from, to)
	require.NoError(t, err)
	require.Len(t, buckets, 25)
	requireContiguous(t, buckets, Hour)
	assert.Equal(t, 1, buckets[1].Count)
	assert.Equal(t, 1, buckets[2].Count)
	assert.NotEqual(t, buckets[1].Label, buckets[2].Label)
}

func TestSeriesHourlyAcrossSpringForward(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	from := time.Date(2025, 3, 9, 0, 0, 0, 0, ny)
	to := time.Date(2025, 3, 10, 0, 0, 0, 0, ny)

	buckets, err := Series(nil, Hour, ny, from, to)
	require.NoError(t, err)
	require.Len(t, buckets, 23)
	requireContiguous(t, buckets, Hour)
}

func TestSeriesDailyBucketsSpanDSTDays(t *testing.T) {
	t.Parallel()

	ny := mustLoad(t, "America/New_York")
	from := time.Date(2025, 11, 1, 0, 0, 0, 0, ny)
	to := time.Date(2025, 11, 4, 0, 0, 0, 0, ny)

	buckets, err := Series(nil, Day, ny, from, to)
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	assert.Equal(t, 25*time.Hour, buckets[2].Start.Sub(buckets[1].Start))
	for _, b := range buckets {
		assert.Equal(t, 0, b.Start.Hour())
	}
}

func TestTruncateWeekStartsMonday(t *testing.T) {
	t.Parallel()

	wed := time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)
	got := Truncate(wed, Week, time.UTC)
	assert.Equal(t, time.Monday, got.Weekday())
	assert.Equal(t, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), got)

	mon := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, Truncate(mon, Week, time.UTC))

	sun := time.Date(2025, 1, 5, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, mon, Truncate(sun, Week, time.UTC))
}

func TestTruncateUsesLocation(t *testing.T) {
	t.Parallel()

	tokyo := mustLoad(t, "Asia/Tokyo")
	ts := time.Date(2025, 6, 30, 20, 0, 0, 0, time.UTC) // 2025-07-01 05:00 JST
	got := Truncate(ts, Month, tokyo)
	assert.Equal(t, time.July, got.Month())
	assert.Equal(t, 1, got.Day())
}

func TestTruncateHourHalfHourZone(t *testing.T) {
	t.Parallel()

	kolkata := mustLoad(t, "Asia/Kolkata")
	ts := time.Date(2025, 6, 1, 10, 10, 0, 0, time.UTC) // 15:40 IST
	got := Truncate(ts, Hour, kolkata)
	assert.Equal(t, 15, got.Hour())
	assert.Equal(t, 0, got.Minute())
}

func TestSeriesMonthly(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	buckets, err := Series(viewsAt(time.Date(2025, 2, 28, 23, 0, 0, 0, time.UTC)), Month, time.UTC, from, to)
	require.NoError(t, err)
	require.Len(t, buckets, 4)
	assert.Equal(t, "2025-02", buckets[3].Label)
	assert.Equal(t, 1, buckets[3].Count)
}

func TestSeriesTooManyBuckets(t *testing.T) {
	t.Parallel()

	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := Series(nil, Hour, time.UTC, from, from.AddDate(1, 0, 0))
	require.ErrorIs(t, err, ErrTooManyBuckets)
}

func TestSeriesEmptyAndInvalid(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	buckets, err := Series(nil, Day, time.UTC, now, now)
	require.NoError(t, err)
	assert.Empty(t, buckets)

	_, err = Series(nil, Granularity("minute"), time.UTC, now, now.Add(time.Hour))
	require.ErrorIs(t, err, ErrUnknownGranularity)
}
