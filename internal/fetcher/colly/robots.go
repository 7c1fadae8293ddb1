package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/flightdeck/internal/metrics"
	"github.com/JakeFAU/flightdeck/internal/policy/retry"
)

// Reasons recorded when robots.txt is replaced by allow-all.
const (
	robotsReasonUnreachable = "unreachable"
	robotsReasonServerError = "server error"
)

const allowAllRobots = "User-agent: *\nAllow: /"

const maxRobotsBytes = 512 << 10

// robotsSchedule is the wait before each retry of a robots.txt check.
var robotsSchedule = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsPolicy retries timeouts only, on a fixed schedule.
type robotsPolicy struct {
	schedule []time.Duration
}

func (p robotsPolicy) ShouldRetry(err error, attempt int) bool {
	return attempt <= len(p.schedule) && isTimeout(err)
}

func (p robotsPolicy) Backoff(attempt int) time.Duration {
	if len(p.schedule) == 0 {
		return 0
	}
	if attempt >= len(p.schedule) {
		return p.schedule[len(p.schedule)-1]
	}
	return p.schedule[attempt]
}

// robotsGuard sits in front of the collector transport. Directory hosts often
// stall or 5xx on robots.txt; colly would then refuse the page, so an
// unreadable robots.txt is treated as allow-all and remembered.
//
// The check runs under its own budget, detached from the request context that
// carries the client timeout. Only cancellation of parent aborts it.
type robotsGuard struct {
	base   http.RoundTripper
	policy retry.Policy
	parent context.Context
	budget time.Duration

	mu     sync.Mutex
	reason string
}

func newRobotsGuard(parent context.Context, base http.RoundTripper, budget time.Duration) *robotsGuard {
	if parent == nil {
		parent = context.Background()
	}
	return &robotsGuard{
		base:   base,
		policy: robotsPolicy{schedule: robotsSchedule},
		parent: parent,
		budget: budget,
	}
}

func (g *robotsGuard) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("robots guard: nil request")
	}
	if !strings.EqualFold(req.URL.Path, "/robots.txt") {
		return g.base.RoundTrip(req)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), g.budget)
	defer cancel()
	stop := context.AfterFunc(g.parent, cancel)
	defer stop()

	var resp *http.Response
	_, err := retry.Do(ctx, g.policy, func(ctx context.Context, _ int) error {
		attemptCtx, cancelAttempt := context.WithTimeout(ctx, g.attemptTimeout())
		defer cancelAttempt()
		r, err := g.base.RoundTrip(req.Clone(attemptCtx))
		if err != nil {
			return err
		}
		// The body is read before the attempt context is released.
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRobotsBytes))
		_ = r.Body.Close()
		if err != nil {
			return err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		resp = r
		return nil
	})
	switch {
	case err == nil && resp.StatusCode >= http.StatusInternalServerError:
		g.fallBack(robotsReasonServerError)
		return allowAll(req), nil
	case err == nil:
		return resp, nil
	case g.parent.Err() == nil && isTimeout(err):
		g.fallBack(robotsReasonUnreachable)
		return allowAll(req), nil
	default:
		return nil, fmt.Errorf("robots.txt %s: %w", req.URL.Host, err)
	}
}

// attemptTimeout splits the budget across the first try and every retry.
func (g *robotsGuard) attemptTimeout() time.Duration {
	return g.budget / time.Duration(len(robotsSchedule)+1)
}

func (g *robotsGuard) fallBack(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reason != "" {
		return
	}
	g.reason = reason
	metrics.ObserveRobotsFallback()
}

// fellBack reports whether allow-all was substituted, and why.
func (g *robotsGuard) fellBack() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reason != "", g.reason
}

func allowAll(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          io.NopCloser(strings.NewReader(allowAllRobots)),
		ContentLength: int64(len(allowAllRobots)),
		Header:        http.Header{"Content-Type": []string{"text/plain"}},
		Request:       req,
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "handshake timeout")
}
