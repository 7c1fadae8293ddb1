package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/flightdeck/internal/site"
)

// ErrUnknownTimezone is returned when a requested IANA timezone cannot be loaded.
var ErrUnknownTimezone = errors.New("analytics: unknown timezone")

// Dashboard is the payload served to the admin analytics view.
type Dashboard struct {
	Range       string      `json:"range"`
	Granularity Granularity `json:"granularity"`
	Timezone    string      `json:"timezone"`
	From        time.Time   `json:"from"`
	To          time.Time   `json:"to"`
	Series      []Bucket    `json:"series"`
	Summary     Summary     `json:"summary"`
}

// ServiceConfig holds the defaults applied when a query omits range or timezone.
type ServiceConfig struct {
	DefaultRange    string
	DefaultTimezone string
	SiteHost        string
}

// Service answers dashboard queries from a PageViewStore.
type Service struct {
	store PageViewStore
	clock site.Clock
	cfg   ServiceConfig
}

// NewService builds an analytics query service.
func NewService(store PageViewStore, clock site.Clock, cfg ServiceConfig) *Service {
	if cfg.DefaultRange == "" {
		cfg.DefaultRange = "7d"
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	return &Service{store: store, clock: clock, cfg: cfg}
}

// LoadLocation resolves an IANA timezone name, wrapping failures in ErrUnknownTimezone.
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	return loc, nil
}

// Dashboard resolves rangeName in tz, loads the matching views and returns the series and summary.
func (s *Service) Dashboard(ctx context.Context, rangeName, tz string) (Dashboard, error) {
	if rangeName == "" {
		rangeName = s.cfg.DefaultRange
	}
	if tz == "" {
		tz = s.cfg.DefaultTimezone
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		return Dashboard{}, err
	}
	r, err := ParseRange(rangeName, s.clock.Now(), loc)
	if err != nil {
		return Dashboard{}, err
	}
	views, err := s.store.Range(ctx, r.From, r.To)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load pageviews: %w", err)
	}
	series, err := Series(views, r.Granularity, loc, r.From, r.To)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Range:       r.Name,
		Granularity: r.Granularity,
		Timezone:    loc.String(),
		From:        r.From,
		To:          r.To,
		Series:      series,
		Summary:     Summarize(views, WithSiteHost(s.cfg.SiteHost)),
	}, nil
}
