package collyfetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/flightdeck/internal/metrics"
	"github.com/JakeFAU/flightdeck/internal/scraper"
)

func fastGuard(base http.RoundTripper) *robotsGuard {
	g := newRobotsGuard(context.Background(), base, time.Second)
	g.policy = robotsPolicy{schedule: []time.Duration{0, 0, 0}}
	return g
}

func robotsRequest(ctx context.Context) *http.Request {
	return httptest.NewRequest(http.MethodGet, "https://schools.example.org/robots.txt", nil).WithContext(ctx)
}

func TestRobotsGuardAllowsAllAfterTimeouts(t *testing.T) {
	t.Parallel()
	metrics.Init()

	base := &stubRoundTripper{err: context.DeadlineExceeded}
	guard := fastGuard(base)

	resp, err := guard.RoundTrip(robotsRequest(context.Background()))
	if err != nil {
		t.Fatalf("RoundTrip returned error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != allowAllRobots {
		t.Fatalf("unexpected fallback body: %q", body)
	}
	if base.calls != len(robotsSchedule)+1 {
		t.Fatalf("expected %d attempts, got %d", len(robotsSchedule)+1, base.calls)
	}
	if ok, reason := guard.fellBack(); !ok || reason != robotsReasonUnreachable {
		t.Fatalf("expected unreachable fallback, got %v %q", ok, reason)
	}
}

func TestRobotsGuardAllowsAllOnServerError(t *testing.T) {
	t.Parallel()
	metrics.Init()

	body := &closeTracker{Reader: strings.NewReader("oops")}
	base := &stubRoundTripper{resp: &http.Response{StatusCode: http.StatusServiceUnavailable, Body: body}}
	guard := fastGuard(base)

	resp, err := guard.RoundTrip(robotsRequest(context.Background()))
	if err != nil {
		t.Fatalf("RoundTrip returned error: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected synthetic 200, got %d", resp.StatusCode)
	}
	if !body.closed {
		t.Fatal("expected the upstream body to be closed")
	}
	if base.calls != 1 {
		t.Fatalf("server errors are not retried, got %d attempts", base.calls)
	}
	if _, reason := guard.fellBack(); reason != robotsReasonServerError {
		t.Fatalf("expected server error reason, got %q", reason)
	}
}

func TestRobotsGuardRecoversAfterOneTimeout(t *testing.T) {
	t.Parallel()

	base := &stubRoundTripper{
		err:      context.DeadlineExceeded,
		failures: 1,
		resp:     &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("User-agent: *\nDisallow:"))},
	}
	guard := fastGuard(base)

	resp, err := guard.RoundTrip(robotsRequest(context.Background()))
	if err != nil {
		t.Fatalf("RoundTrip returned error: %v", err)
	}
	_ = resp.Body.Close()
	if base.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", base.calls)
	}
	if ok, _ := guard.fellBack(); ok {
		t.Fatal("expected no fallback after a successful retry")
	}
}

func TestRobotsGuardReturnsHardErrors(t *testing.T) {
	t.Parallel()

	refused := errors.New("connection refused")
	base := &stubRoundTripper{err: refused}
	guard := fastGuard(base)

	if _, err := guard.RoundTrip(robotsRequest(context.Background())); !errors.Is(err, refused) {
		t.Fatalf("expected refused error, got %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", base.calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	canceled := newRobotsGuard(ctx, &stubRoundTripper{err: context.Canceled}, time.Second)
	if _, err := canceled.RoundTrip(robotsRequest(context.Background())); err == nil {
		t.Fatal("expected error for a canceled request")
	}
	if ok, _ := canceled.fellBack(); ok {
		t.Fatal("cancellation must not fall back to allow-all")
	}
}

func TestRobotsGuardPassesThroughPages(t *testing.T) {
	t.Parallel()

	base := &stubRoundTripper{err: context.DeadlineExceeded}
	guard := fastGuard(base)
	req := httptest.NewRequest(http.MethodGet, "https://schools.example.org/listing", nil)
	if _, err := guard.RoundTrip(req); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the page error untouched, got %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("pages are never retried by the guard, got %d attempts", base.calls)
	}
}

func TestFetchWithBrokenRobots(t *testing.T) {
	metrics.Init()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/schools/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html><body>Sky Academy</body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Config{RespectRobots: true, Timeout: 5 * time.Second})
	page, err := f.Fetch(context.Background(), srv.URL+"/schools/1")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !page.RobotsFallback {
		t.Fatal("expected the robots fallback to be reported")
	}
	if !strings.Contains(string(page.Body), "Sky Academy") {
		t.Fatalf("unexpected body %q", page.Body)
	}
}

func TestFetchFallsBackWhenRobotsStalls(t *testing.T) {
	metrics.Init()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	})
	mux.HandleFunc("/schools/7", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html><body>Lone Star Aviation</body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	start := time.Now()
	f := New(Config{RespectRobots: true, Timeout: 400 * time.Millisecond})
	page, err := f.Fetch(context.Background(), srv.URL+"/schools/7")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !page.RobotsFallback {
		t.Fatal("expected a stalled robots.txt to fall back to allow-all")
	}
	if !strings.Contains(string(page.Body), "Lone Star Aviation") {
		t.Fatalf("unexpected body %q", page.Body)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("robots check outlived its budget: %s", elapsed)
	}
}

func TestRobotsGuardStopsWhenFetchIsCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	guard := newRobotsGuard(ctx, newHTTPTransport(), 10*time.Second)
	time.AfterFunc(50*time.Millisecond, cancel)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/robots.txt", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	start := time.Now()
	if _, err := guard.RoundTrip(req); err == nil {
		t.Fatal("expected an error once the fetch is canceled")
	}
	if ok, _ := guard.fellBack(); ok {
		t.Fatal("cancellation must not fall back to allow-all")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("guard ignored cancellation for %s", elapsed)
	}
}

func TestFetchHonoursRobotsDisallow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "User-agent: *\nDisallow: /private")
	})
	mux.HandleFunc("/private/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "secret")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Config{RespectRobots: true, Timeout: 5 * time.Second})
	if _, err := f.Fetch(context.Background(), srv.URL+"/private/1"); err == nil {
		t.Fatal("expected robots.txt to block the page")
	}
	var status *scraper.StatusError
	if _, err := f.Fetch(context.Background(), srv.URL+"/private/1"); errors.As(err, &status) {
		t.Fatalf("a robots block is not an HTTP status error: %v", err)
	}
}

// stubRoundTripper fails with err for the first failures calls (all calls when
// failures is zero and resp is nil), then returns resp.
type stubRoundTripper struct {
	resp     *http.Response
	err      error
	failures int
	calls    int
}

func (s *stubRoundTripper) RoundTrip(_ *http.Request) (*http.Response, error) {
	s.calls++
	if s.err != nil && (s.resp == nil || s.calls <= s.failures) {
		return nil, s.err
	}
	return s.resp, nil
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}
