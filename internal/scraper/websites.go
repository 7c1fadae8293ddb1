package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/metrics"
)

var socialHosts = []string{
	"facebook.com", "fb.com", "twitter.com", "x.com", "instagram.com", "linkedin.com",
	"youtube.com", "youtu.be", "tiktok.com", "pinterest.com", "yelp.com",
	"google.com", "goo.gl", "apple.com", "wa.me",
}

// WebsiteConfig wires the website enrichment pass.
type WebsiteConfig struct {
	Path       string
	BatchSize  int
	BatchDelay time.Duration
	// Fetcher loads detail pages. It is usually the colly fetcher.
	Fetcher Browser
	// DirectoryHost is the listing's own host; links to it are never a school website.
	DirectoryHost string
	Selectors     []string
	Logger        *zap.Logger
}

// WebsiteStats counts the outcome of one enrichment pass.
type WebsiteStats struct {
	Candidates int `json:"candidates"`
	Found      int `json:"found"`
	NotFound   int `json:"not_found"`
	Failed     int `json:"failed"`
}

// WebsiteUpdater fills the website column from each school's detail page.
type WebsiteUpdater struct {
	cfg    WebsiteConfig
	logger *zap.Logger
}

// NewWebsiteUpdater validates cfg and fills defaults.
func NewWebsiteUpdater(cfg WebsiteConfig) (*WebsiteUpdater, error) {
	if cfg.Path == "" {
		return nil, errors.New("scraper: csv path is required")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("scraper: fetcher is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.Selectors == nil {
		cfg.Selectors = DefaultSelectors().Website
	}
	cfg.DirectoryHost = bareHost(cfg.DirectoryHost)
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebsiteUpdater{cfg: cfg, logger: logger}, nil
}

// Run fetches the detail page of every row that still lacks a website. Rows are
// processed in batches and the CSV is rewritten after each batch, so an
// interrupted run resumes with only the unfilled rows. Rows already marked
// "none" are not fetched again; failed rows are.
func (u *WebsiteUpdater) Run(ctx context.Context) (WebsiteStats, error) {
	rows, err := ReadCSV(u.cfg.Path)
	if err != nil {
		return WebsiteStats{}, err
	}
	var pending []int
	for i, r := range rows {
		if needsWebsite(r) {
			pending = append(pending, i)
		}
	}
	stats := WebsiteStats{Candidates: len(pending)}
	u.logger.Info("website pass starting", zap.Int("rows", len(rows)), zap.Int("candidates", len(pending)))

	var mu sync.Mutex
	for start := 0; start < len(pending); start += u.cfg.BatchSize {
		if start > 0 && u.cfg.BatchDelay > 0 {
			timer := time.NewTimer(u.cfg.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return stats, fmt.Errorf("website pass canceled: %w", ctx.Err())
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("website pass canceled: %w", err)
		}

		end := min(start+u.cfg.BatchSize, len(pending))
		var wg sync.WaitGroup
		for _, idx := range pending[start:end] {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				mu.Lock()
				detail := rows[idx].DetailURL
				mu.Unlock()

				site, err := u.lookup(ctx, detail)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil && ctx.Err() != nil:
					// Canceled mid-batch: leave the row for the next run.
				case err != nil:
					rows[idx].WebsiteChecked = WebsiteFailed
					stats.Failed++
					metrics.ObserveWebsiteLookup("failed")
					u.logger.Warn("detail fetch failed", zap.String("url", detail), zap.Error(err))
				case site == "":
					rows[idx].WebsiteChecked = WebsiteNone
					stats.NotFound++
					metrics.ObserveWebsiteLookup("none")
				default:
					rows[idx].Website = site
					rows[idx].WebsiteChecked = WebsiteFound
					stats.Found++
					metrics.ObserveWebsiteLookup("found")
				}
			}(idx)
		}
		wg.Wait()

		if err := WriteCSV(u.cfg.Path, rows); err != nil {
			return stats, err
		}
		u.logger.Info("website batch saved",
			zap.Int("done", end),
			zap.Int("of", len(pending)),
			zap.Int("found", stats.Found),
		)
	}
	return stats, nil
}

func (u *WebsiteUpdater) lookup(ctx context.Context, detailURL string) (string, error) {
	html, err := u.cfg.Fetcher.Render(ctx, detailURL)
	if err != nil {
		return "", err
	}
	return ExternalWebsite(html, detailURL, u.cfg.DirectoryHost, u.cfg.Selectors)
}

func needsWebsite(r School) bool {
	return r.Website == "" && r.DetailURL != "" && r.WebsiteChecked != WebsiteNone
}

// ExternalWebsite returns the first link on a detail page that leaves the
// directory and is not a social network, or "" when there is none.
func ExternalWebsite(html, pageURL, directoryHost string, selectors []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse detail page: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse detail url: %w", err)
	}
	own := bareHost(directoryHost)
	if own == "" {
		own = bareHost(base.Hostname())
	}
	for _, sel := range selectors {
		found := ""
		doc.Find(sel).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, ok := a.Attr("href")
			if !ok {
				return true
			}
			abs := resolve(base, href)
			if abs == "" {
				return true
			}
			u, err := url.Parse(abs)
			if err != nil {
				return true
			}
			host := bareHost(u.Hostname())
			if host == "" || sameSite(host, own) || isSocial(host) {
				return true
			}
			found = abs
			return false
		})
		if found != "" {
			return found, nil
		}
	}
	return "", nil
}

func bareHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil {
			host = u.Hostname()
		}
	}
	return strings.TrimPrefix(host, "www.")
}

func sameSite(host, own string) bool {
	return own != "" && (host == own || strings.HasSuffix(host, "."+own))
}

func isSocial(host string) bool {
	for _, s := range socialHosts {
		if sameSite(host, s) {
			return true
		}
	}
	return false
}
