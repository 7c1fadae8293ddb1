package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/flightdeck/internal/site"
)

// Granularity is the width of a time series bucket.
type Granularity string

// Supported granularities.
const (
	Hour  Granularity = "hour"
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// MaxBuckets caps the length of a generated series.
const MaxBuckets = 5000

var (
	// ErrTooManyBuckets is returned when a range would produce more than MaxBuckets buckets.
	ErrTooManyBuckets = errors.New("analytics: too many buckets")
	// ErrUnknownGranularity is returned for granularities other than hour, day, week and month.
	ErrUnknownGranularity = errors.New("analytics: unknown granularity")
)

// ParseGranularity validates a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case Hour, Day, Week, Month:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
	}
}

// Bucket is one point of a time series.
type Bucket struct {
	Start time.Time `json:"start"`
	Label string    `json:"label"`
	Count int       `json:"count"`
}

// Truncate returns the start of the bucket containing t, evaluated in loc.
// Weeks start on Monday.
func Truncate(t time.Time, g Granularity, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	switch g {
	case Hour:
		// Subtract rather than rebuild with time.Date so the repeated hour of a
		// DST fall-back keeps its own offset.
		within := time.Duration(local.Minute())*time.Minute +
			time.Duration(local.Second())*time.Second +
			time.Duration(local.Nanosecond())
		return local.Add(-within)
	case Week:
		y, m, d := local.Date()
		offset := (int(local.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case Month:
		y, m, _ := local.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	default:
		y, m, d := local.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// nextBucket returns the start of the bucket after start. Hours step by absolute
// duration while calendar units step by date, so DST days span 23 or 25 hours.
func nextBucket(start time.Time, g Granularity) time.Time {
	y, m, d := start.Date()
	loc := start.Location()
	switch g {
	case Hour:
		return start.Add(time.Hour)
	case Week:
		return time.Date(y, m, d+7, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
}

// Label formats a bucket start for display.
func Label(start time.Time, g Granularity) string {
	switch g {
	case Hour:
		return start.Format("2006-01-02 15:00 MST")
	case Month:
		return start.Format("2006-01")
	default:
		return start.Format("2006-01-02")
	}
}

// Series groups views into contiguous buckets covering [from, to) in loc.
// Empty buckets are included with a zero count and views outside the range are ignored.
func Series(views []site.PageView, g Granularity, loc *time.Location, from, to time.Time) ([]Bucket, error) {
	if _, err := ParseGranularity(string(g)); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	if !from.Before(to) {
		return []Bucket{}, nil
	}

	buckets := make([]Bucket, 0)
	index := make(map[int64]int)
	for start := Truncate(from, g, loc); start.Before(to); start = nextBucket(start, g) {
		if len(buckets) >= MaxBuckets {
			return nil, fmt.Errorf("%w: more than %d %s buckets", ErrTooManyBuckets, MaxBuckets, g)
		}
		index[start.Unix()] = len(buckets)
		buckets = append(buckets, Bucket{Start: start, Label: Label(start, g)})
	}

	for _, v := range views {
		if v.ViewedAt.Before(from) || !v.ViewedAt.Before(to) {
			continue
		}
		if i, ok := index[Truncate(v.ViewedAt, g, loc).Unix()]; ok {
			buckets[i].Count++
		}
	}
	return buckets, nil
}
