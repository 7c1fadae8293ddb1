// Package ratelimit implements keyed token bucket rate limiting. The scraper keys
// buckets by domain and waits; the lead form keys them by client and rejects.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/flightdeck/internal/metrics"
)

const defaultIdleTTL = 30 * time.Minute

// Limiter manages one token bucket per key.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*entry
	defaultRate  rate.Limit
	defaultBurst int
	idleTTL      time.Duration
	maxKeys      int
	now          func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Config holds rate limiter configuration.
//   - DefaultRPS: tokens per second; <= 0 disables limiting.
//   - DefaultBurst: bucket size (default 1).
//   - MaxKeys: when exceeded, buckets idle longer than IdleTTL are evicted (0 disables eviction).
//   - IdleTTL: idle age at which a bucket may be evicted (default 30m).
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	MaxKeys      int
	IdleTTL      time.Duration
}

// PerMinute converts a per-minute allowance into requests per second.
func PerMinute(n float64) float64 {
	return n / 60
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	return &Limiter{
		limiters:     make(map[string]*entry),
		defaultRate:  r,
		defaultBurst: burst,
		idleTTL:      ttl,
		maxKeys:      cfg.MaxKeys,
		now:          time.Now,
	}
}

// Wait blocks until a token is available for the URL's host, respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		domain = u.Hostname()
	}
	limiter := l.get(domain)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(domain, d)
	}
	return nil
}

// Allow reports whether key may proceed now, consuming a token when it may.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).AllowN(l.now(), 1)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *Limiter) get(key string) *rate.Limiter {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	e, exists := l.limiters[key]
	if !exists {
		if l.maxKeys > 0 && len(l.limiters) >= l.maxKeys {
			l.evictIdle(now)
		}
		e = &entry{limiter: rate.NewLimiter(l.defaultRate, l.defaultBurst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (l *Limiter) evictIdle(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.limiters, k)
		}
	}
}
