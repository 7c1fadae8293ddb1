package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/flightdeck/internal/site"
)

// PageViewStore keeps analytics hits in a slice ordered by insertion.
type PageViewStore struct {
	mu    sync.RWMutex
	seen  map[string]struct{}
	views []site.PageView
}

// NewPageViewStore returns an empty in-memory pageview store.
func NewPageViewStore() *PageViewStore {
	return &PageViewStore{seen: make(map[string]struct{})}
}

// Record appends views. Views whose ID was already recorded are ignored.
func (s *PageViewStore) Record(_ context.Context, views []site.PageView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range views {
		if v.ID != "" {
			if _, dup := s.seen[v.ID]; dup {
				continue
			}
			s.seen[v.ID] = struct{}{}
		}
		v.ViewedAt = v.ViewedAt.UTC()
		s.views = append(s.views, v)
	}
	return nil
}

// Range returns views with from <= ViewedAt < to, oldest first.
func (s *PageViewStore) Range(_ context.Context, from, to time.Time) ([]site.PageView, error) {
	s.mu.RLock()
	out := make([]site.PageView, 0, len(s.views))
	for _, v := range s.views {
		if !v.ViewedAt.Before(from) && v.ViewedAt.Before(to) {
			out = append(out, v)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].ViewedAt.Before(out[j].ViewedAt) })
	return out, nil
}
