package scraper

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/metrics"
	"github.com/JakeFAU/flightdeck/internal/policy/retry"
)

const defaultMaxPages = 50

// Waiter blocks until a request to rawURL may proceed.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// RunnerConfig wires the listing crawl.
type RunnerConfig struct {
	ListingURL     string
	PageParam      string
	MaxPages       int
	AssumeMaxPages bool
	Output         string
	Selectors      Selectors
	Browser        Browser
	Limiter        Waiter
	Retry          retry.Policy
	Logger         *zap.Logger
}

// Stats summarises one crawl.
type Stats struct {
	PagesTotal   int `json:"pages_total"`
	PagesScraped int `json:"pages_scraped"`
	PagesSkipped int `json:"pages_skipped"`
	PagesFailed  int `json:"pages_failed"`
	Schools      int `json:"schools"`
}

// Runner crawls the listing page by page into a resumable CSV checkpoint.
type Runner struct {
	cfg    RunnerConfig
	logger *zap.Logger
}

// NewRunner validates cfg and fills defaults.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.ListingURL == "" {
		return nil, errors.New("scraper: listing url is required")
	}
	if cfg.Output == "" {
		return nil, errors.New("scraper: output path is required")
	}
	if cfg.Browser == nil {
		return nil, errors.New("scraper: browser is required")
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.Selectors.Card == nil {
		cfg.Selectors = DefaultSelectors()
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.NewExponentialRetryPolicy()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger}, nil
}

// Run renders page 1, discovers the page count and scrapes every page the
// checkpoint does not already hold. Pages that keep failing are logged and left
// incomplete so a later run retries them.
func (r *Runner) Run(ctx context.Context) (stats Stats, err error) {
	cp, err := OpenCheckpoint(r.cfg.Output)
	if err != nil {
		return Stats{}, err
	}
	defer func() {
		if cerr := cp.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close checkpoint: %w", cerr)
		}
	}()

	first, err := r.render(ctx, r.cfg.ListingURL)
	if err != nil {
		return Stats{}, fmt.Errorf("render first page: %w", err)
	}
	stats.PagesTotal, err = r.pageCount(first)
	if err != nil {
		return Stats{}, err
	}
	r.logger.Info("listing discovered",
		zap.String("url", r.cfg.ListingURL),
		zap.Int("pages", stats.PagesTotal),
		zap.Int("checkpoint_rows", cp.Rows()),
	)

	for page := 1; page <= stats.PagesTotal; page++ {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("scrape canceled: %w", err)
		}
		if cp.Completed(page) {
			stats.PagesSkipped++
			metrics.ObserveScrapePage("skipped")
			continue
		}
		pageURL, err := PageURL(r.cfg.ListingURL, r.cfg.PageParam, page)
		if err != nil {
			return stats, err
		}

		html := first
		if page > 1 {
			html, err = r.render(ctx, pageURL)
			if err != nil {
				if ctx.Err() != nil {
					return stats, fmt.Errorf("scrape canceled: %w", ctx.Err())
				}
				stats.PagesFailed++
				metrics.ObserveScrapePage("failed")
				r.logger.Warn("page failed", zap.Int("page", page), zap.String("url", pageURL), zap.Error(err))
				continue
			}
		}

		rows, err := ExtractSchools(html, pageURL, r.cfg.Selectors)
		if err != nil {
			stats.PagesFailed++
			metrics.ObserveScrapePage("failed")
			r.logger.Warn("page extraction failed", zap.Int("page", page), zap.Error(err))
			continue
		}
		if err := cp.Append(page, rows); err != nil {
			return stats, err
		}
		stats.PagesScraped++
		stats.Schools += len(rows)
		metrics.ObserveScrapePage("scraped")
		metrics.ObserveSchools(len(rows))
		r.logger.Debug("page scraped", zap.Int("page", page), zap.Int("schools", len(rows)))
	}
	return stats, nil
}

func (r *Runner) pageCount(html string) (int, error) {
	n, err := MaxPage(html, r.cfg.PageParam, r.cfg.Selectors)
	if err != nil {
		return 0, err
	}
	switch {
	case n > r.cfg.MaxPages:
		return r.cfg.MaxPages, nil
	case n >= 1:
		return n, nil
	case r.cfg.AssumeMaxPages:
		return r.cfg.MaxPages, nil
	default:
		return 1, nil
	}
}

func (r *Runner) render(ctx context.Context, pageURL string) (string, error) {
	var html string
	attempts, err := retry.Do(ctx, r.cfg.Retry, func(ctx context.Context, attempt int) error {
		if r.cfg.Limiter != nil {
			if err := r.cfg.Limiter.Wait(ctx, pageURL); err != nil {
				return err
			}
		}
		out, err := r.cfg.Browser.Render(ctx, pageURL)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !se.Temporary() {
				return retry.Permanent(err)
			}
			r.logger.Debug("render attempt failed", zap.String("url", pageURL), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		html = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("after %d attempts: %w", attempts, err)
	}
	return html, nil
}
