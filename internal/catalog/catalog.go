// Package catalog manages the aircraft fleet, training programs and testimonials.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/docstore"
	"github.com/JakeFAU/flightdeck/internal/site"
	"github.com/JakeFAU/flightdeck/internal/storage"
)

// Config wires the catalog service dependencies.
type Config struct {
	Backend docstore.Backend
	Blobs   storage.BlobStore
	URLs    storage.URLMapper
	Clock   site.Clock
	IDs     site.IDGenerator
	Hasher  site.Hasher
	Logger  *zap.Logger
	// MaxImageBytes bounds uploads. Zero means DefaultMaxImageBytes.
	MaxImageBytes int64
}

// Service implements the catalog operations used by the public pages and the admin dashboard.
type Service struct {
	aircraft      *docstore.Collection[site.Aircraft]
	programs      *docstore.Collection[site.Program]
	testimonials  *docstore.Collection[site.Testimonial]
	blobs         storage.BlobStore
	urls          storage.URLMapper
	clock         site.Clock
	ids           site.IDGenerator
	hasher        site.Hasher
	logger        *zap.Logger
	maxImageBytes int64

	// slugMu serializes slug selection with the write that claims it.
	slugMu sync.Mutex
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Backend == nil {
		return nil, errors.New("catalog: document backend is required")
	}
	if cfg.Clock == nil || cfg.IDs == nil {
		return nil, errors.New("catalog: clock and id generator are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxImage := cfg.MaxImageBytes
	if maxImage <= 0 {
		maxImage = DefaultMaxImageBytes
	}
	return &Service{
		aircraft:      docstore.NewCollection[site.Aircraft](cfg.Backend, site.CollectionAircraft),
		programs:      docstore.NewCollection[site.Program](cfg.Backend, site.CollectionPrograms),
		testimonials:  docstore.NewCollection[site.Testimonial](cfg.Backend, site.CollectionTestimonials),
		blobs:         cfg.Blobs,
		urls:          cfg.URLs,
		clock:         cfg.Clock,
		ids:           cfg.IDs,
		hasher:        cfg.Hasher,
		logger:        logger,
		maxImageBytes: maxImage,
	}, nil
}

// MaxImageBytes returns the upload limit for aircraft images.
func (s *Service) MaxImageBytes() int64 {
	return s.maxImageBytes
}

// ListAircraft returns the fleet ordered by sort order then name.
func (s *Service) ListAircraft(ctx context.Context, onlyAvailable bool) ([]site.Aircraft, error) {
	all, err := s.aircraft.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if onlyAvailable && !a.Available {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// GetAircraft loads one aircraft by ID.
func (s *Service) GetAircraft(ctx context.Context, id string) (site.Aircraft, error) {
	return s.aircraft.Get(ctx, id)
}

// GetAircraftBySlug finds an aircraft by its public slug.
func (s *Service) GetAircraftBySlug(ctx context.Context, slug string) (site.Aircraft, error) {
	all, err := s.aircraft.List(ctx)
	if err != nil {
		return site.Aircraft{}, err
	}
	for _, a := range all {
		if a.Slug == slug {
			return a, nil
		}
	}
	return site.Aircraft{}, docstore.ErrNotFound
}

// CreateAircraft assigns an ID and a unique slug, validates and stores a new aircraft.
func (s *Service) CreateAircraft(ctx context.Context, a site.Aircraft) (site.Aircraft, error) {
	now := s.clock.Now().UTC()
	if err := a.Validate(now); err != nil {
		return site.Aircraft{}, err
	}
	id, err := s.ids.NewID()
	if err != nil {
		return site.Aircraft{}, fmt.Errorf("aircraft id: %w", err)
	}
	a.ID = id
	s.slugMu.Lock()
	defer s.slugMu.Unlock()
	slug, err := s.uniqueAircraftSlug(ctx, a.Slug, a.Name, "")
	if err != nil {
		return site.Aircraft{}, err
	}
	a.Slug = slug
	a.CreatedAt = now
	a.UpdatedAt = now
	if err := s.aircraft.Put(ctx, a.ID, a); err != nil {
		return site.Aircraft{}, err
	}
	s.logger.Info("aircraft created", zap.String("id", a.ID), zap.String("slug", a.Slug))
	return a, nil
}

// UpdateAircraft replaces an aircraft's editable fields. The ID, creation time and images are kept.
func (s *Service) UpdateAircraft(ctx context.Context, id string, a site.Aircraft) (site.Aircraft, error) {
	existing, err := s.aircraft.Get(ctx, id)
	if err != nil {
		return site.Aircraft{}, err
	}
	now := s.clock.Now().UTC()
	if err := a.Validate(now); err != nil {
		return site.Aircraft{}, err
	}
	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = now
	if a.ImageURLs == nil {
		a.ImageURLs = existing.ImageURLs
	}
	s.slugMu.Lock()
	defer s.slugMu.Unlock()
	slug, err := s.uniqueAircraftSlug(ctx, a.Slug, a.Name, id)
	if err != nil {
		return site.Aircraft{}, err
	}
	a.Slug = slug
	if err := s.aircraft.Put(ctx, a.ID, a); err != nil {
		return site.Aircraft{}, err
	}
	return a, nil
}

// DeleteAircraft removes an aircraft and, best effort, its uploaded images.
func (s *Service) DeleteAircraft(ctx context.Context, id string) error {
	existing, err := s.aircraft.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.aircraft.Delete(ctx, id); err != nil {
		return err
	}
	for _, u := range existing.ImageURLs {
		s.deleteBlob(ctx, u)
	}
	s.logger.Info("aircraft deleted", zap.String("id", id))
	return nil
}

func (s *Service) uniqueAircraftSlug(ctx context.Context, requested, name, selfID string) (string, error) {
	base := site.Slugify(requested)
	if base == "" {
		base = site.Slugify(name)
	}
	if base == "" {
		base = "aircraft"
	}
	all, err := s.aircraft.List(ctx)
	if err != nil {
		return "", err
	}
	taken := make(map[string]struct{}, len(all))
	for _, a := range all {
		if a.ID != selfID {
			taken[a.Slug] = struct{}{}
		}
	}
	return uniqueSlug(base, taken), nil
}

func uniqueSlug(base string, taken map[string]struct{}) string {
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
