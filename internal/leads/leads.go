// Package leads accepts, stores and tracks prospective student requests.
package leads

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/docstore"
	"github.com/JakeFAU/flightdeck/internal/metrics"
	"github.com/JakeFAU/flightdeck/internal/notify"
	"github.com/JakeFAU/flightdeck/internal/site"
)

// ErrRateLimited is returned when a client submits faster than its token bucket allows.
var ErrRateLimited = errors.New("leads: too many submissions, try again later")

// ErrHoneypot is returned when the hidden website field was filled in.
// Callers answer as if the submission succeeded.
var ErrHoneypot = errors.New("leads: honeypot field filled")

// Enqueuer hands a stored lead to the notification pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, job notify.Job) error
}

// Limiter decides whether a client key may submit now.
type Limiter interface {
	Allow(key string) bool
}

// Config wires the leads service.
type Config struct {
	Backend  docstore.Backend
	Clock    site.Clock
	IDs      site.IDGenerator
	Notifier Enqueuer
	Limiter  Limiter
	// EnqueueTimeout bounds how long Submit waits on a full notification queue (default 250ms).
	EnqueueTimeout time.Duration
	Logger         *zap.Logger
}

// Service implements lead submission and the admin request views.
type Service struct {
	requests       *docstore.Collection[site.Request]
	backend        docstore.Backend
	clock          site.Clock
	ids            site.IDGenerator
	notifier       Enqueuer
	limiter        Limiter
	enqueueTimeout time.Duration
	logger         *zap.Logger
}

// Counts summarises stored leads.
type Counts struct {
	Total    int64
	ByKind   map[site.RequestKind]int64
	ByStatus map[site.RequestStatus]int
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Backend == nil {
		return nil, errors.New("leads: document backend is required")
	}
	if cfg.Clock == nil || cfg.IDs == nil {
		return nil, errors.New("leads: clock and id generator are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.EnqueueTimeout
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	return &Service{
		requests:       docstore.NewCollection[site.Request](cfg.Backend, site.CollectionRequests),
		backend:        cfg.Backend,
		clock:          cfg.Clock,
		ids:            cfg.IDs,
		notifier:       cfg.Notifier,
		limiter:        cfg.Limiter,
		enqueueTimeout: timeout,
		logger:         logger,
	}, nil
}

// Submit validates and stores a lead from clientKey, bumps the lead counters and
// queues the office notification. A failed enqueue is logged, not returned.
func (s *Service) Submit(ctx context.Context, clientKey string, form Form) (site.Request, error) {
	form = form.normalised()
	if form.Website != "" {
		metrics.ObserveLeadRejected("honeypot")
		s.logger.Info("lead dropped by honeypot", zap.String("client", clientKey))
		return site.Request{}, ErrHoneypot
	}
	if err := form.Validate(); err != nil {
		metrics.ObserveLeadRejected("invalid")
		return site.Request{}, err
	}
	if s.limiter != nil && !s.limiter.Allow(clientKey) {
		metrics.ObserveLeadRejected("rate_limited")
		s.logger.Warn("lead rate limited", zap.String("client", clientKey))
		return site.Request{}, ErrRateLimited
	}

	req := form.request()
	id, err := s.ids.NewID()
	if err != nil {
		return site.Request{}, fmt.Errorf("request id: %w", err)
	}
	now := s.clock.Now().UTC()
	req.ID = id
	req.CreatedAt = now
	req.UpdatedAt = now
	if err := s.requests.Put(ctx, req.ID, req); err != nil {
		return site.Request{}, err
	}

	for _, counter := range []string{site.CounterRequestsTotal, site.RequestKindCounter(req.Kind)} {
		if _, err := s.backend.Increment(ctx, counter, 1); err != nil {
			s.logger.Warn("lead counter increment failed", zap.String("counter", counter), zap.Error(err))
		}
	}
	metrics.ObserveLead(string(req.Kind))

	if s.notifier != nil {
		enqueueCtx, cancel := context.WithTimeout(ctx, s.enqueueTimeout)
		defer cancel()
		if err := s.notifier.Enqueue(enqueueCtx, notify.Job{RequestID: req.ID, Request: req}); err != nil {
			s.logger.Error("lead notification enqueue failed", zap.String("request_id", req.ID), zap.Error(err))
		}
	}
	s.logger.Info("lead submitted", zap.String("request_id", req.ID), zap.String("kind", string(req.Kind)))
	return req, nil
}

// Get loads one request.
func (s *Service) Get(ctx context.Context, id string) (site.Request, error) {
	return s.requests.Get(ctx, id)
}

// List returns requests newest first. An empty status returns every request.
func (s *Service) List(ctx context.Context, status site.RequestStatus) ([]site.Request, error) {
	all, err := s.requests.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// UpdateStatus moves a request to a new follow-up status.
func (s *Service) UpdateStatus(ctx context.Context, id string, status site.RequestStatus) (site.Request, error) {
	if !status.Valid() {
		return site.Request{}, site.ErrInvalidStatus
	}
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		return site.Request{}, err
	}
	req.Status = status
	req.UpdatedAt = s.clock.Now().UTC()
	if err := s.requests.Put(ctx, req.ID, req); err != nil {
		return site.Request{}, err
	}
	return req, nil
}

// Counts reads the lead counters and tallies stored requests by status.
func (s *Service) Counts(ctx context.Context) (Counts, error) {
	c := Counts{
		ByKind:   make(map[site.RequestKind]int64),
		ByStatus: make(map[site.RequestStatus]int),
	}
	total, err := s.backend.Counter(ctx, site.CounterRequestsTotal)
	if err != nil {
		return Counts{}, err
	}
	c.Total = total
	for _, kind := range site.RequestKinds {
		n, err := s.backend.Counter(ctx, site.RequestKindCounter(kind))
		if err != nil {
			return Counts{}, err
		}
		c.ByKind[kind] = n
	}
	all, err := s.requests.List(ctx)
	if err != nil {
		return Counts{}, err
	}
	for _, r := range all {
		c.ByStatus[r.Status]++
	}
	return c, nil
}
