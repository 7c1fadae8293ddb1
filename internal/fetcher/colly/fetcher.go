// Package collyfetcher fetches static pages with gocolly. The website pass uses
// it for school detail pages, and the listing crawl can use it in place of
// headless Chrome when the directory renders server-side.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/flightdeck/internal/scraper"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Page is a fetched document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	// RobotsFallback is set when robots.txt could not be read and allow-all was assumed.
	RobotsFallback bool
}

// Fetcher wraps a base collector that is cloned per request.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Render returns the body of url as a string. Error statuses yield a *scraper.StatusError.
func (f *Fetcher) Render(ctx context.Context, url string) (string, error) {
	page, err := f.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return string(page.Body), nil
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Page, error) {
	var (
		result   Page
		fetchErr error
	)
	collector, robots := f.buildCollector(ctx, time.Now(), &result, &fetchErr)
	if err := f.runCollector(ctx, collector, url, &result, &fetchErr); err != nil {
		return Page{}, err
	}
	if robots != nil {
		result.RobotsFallback, _ = robots.fellBack()
	}
	return result, nil
}

func (f *Fetcher) buildCollector(ctx context.Context, start time.Time, result *Page, fetchErr *error) (*colly.Collector, *robotsGuard) {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.SetRequestTimeout(f.cfg.Timeout)

	var robots *robotsGuard
	if f.cfg.RespectRobots {
		robots = newRobotsGuard(ctx, f.transport, robotsBudget(f.cfg.Timeout))
		collector.WithTransport(robots)
	} else {
		collector.WithTransport(f.transport)
	}

	f.configureCollectorHooks(collector, start, result, fetchErr)
	return collector, robots
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, start time.Time, result *Page, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Request != nil && r.StatusCode >= 400 {
			*fetchErr = &scraper.StatusError{URL: r.Request.URL.String(), Code: r.StatusCode}
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, result *Page, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if result.StatusCode == 0 {
			return fmt.Errorf("colly visit %s: no response", url)
		}
		return nil
	}
}

// robotsBudget keeps the robots.txt check inside the client timeout, so a
// fallback response is returned before the client gives up on the request.
func robotsBudget(timeout time.Duration) time.Duration {
	return timeout * 3 / 4
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
