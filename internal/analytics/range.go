package analytics

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownRange is returned by ParseRange for unsupported range names.
var ErrUnknownRange = errors.New("analytics: unknown range")

// Range is a resolved dashboard window.
type Range struct {
	Name        string
	From        time.Time
	To          time.Time
	Granularity Granularity
}

// RangeNames lists the supported presets in display order.
var RangeNames = []string{"24h", "7d", "30d", "90d", "12m"}

// ParseRange resolves a preset relative to now in loc. Windows end at the close
// of the current bucket so the latest partial hour, day or month is included.
func ParseRange(name string, now time.Time, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	endOfDay := nextBucket(Truncate(now, Day, loc), Day)
	r := Range{Name: name}
	switch name {
	case "24h":
		r.To = nextBucket(Truncate(now, Hour, loc), Hour)
		r.From = r.To.Add(-24 * time.Hour)
		r.Granularity = Hour
	case "7d":
		r.To = endOfDay
		r.From = endOfDay.AddDate(0, 0, -7)
		r.Granularity = Day
	case "30d":
		r.To = endOfDay
		r.From = endOfDay.AddDate(0, 0, -30)
		r.Granularity = Day
	case "90d":
		r.To = endOfDay
		r.From = endOfDay.AddDate(0, 0, -90)
		r.Granularity = Week
	case "12m":
		r.To = nextBucket(Truncate(now, Month, loc), Month)
		r.From = r.To.AddDate(0, -12, 0)
		r.Granularity = Month
	default:
		return Range{}, fmt.Errorf("%w: %q", ErrUnknownRange, name)
	}
	return r, nil
}
