package analytics

import (
	"context"
	"time"

	"github.com/JakeFAU/flightdeck/internal/site"
)

// PageViewStore persists and queries pageviews.
type PageViewStore interface {
	// Record stores a batch of views. Duplicate IDs are ignored.
	Record(ctx context.Context, views []site.PageView) error
	// Range returns views with from <= ViewedAt < to, oldest first.
	Range(ctx context.Context, from, to time.Time) ([]site.PageView, error)
}
