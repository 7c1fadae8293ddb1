package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/config"
	collyfetcher "github.com/JakeFAU/flightdeck/internal/fetcher/colly"
	"github.com/JakeFAU/flightdeck/internal/fetcher/headless"
	"github.com/JakeFAU/flightdeck/internal/policy/ratelimit"
	"github.com/JakeFAU/flightdeck/internal/policy/retry"
	"github.com/JakeFAU/flightdeck/internal/scraper"
)

func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Builds the flight school directory dataset",
	}
	cmd.AddCommand(newScrapeSchoolsCmd(), newScrapeWebsitesCmd())
	return cmd
}

func newScrapeSchoolsCmd() *cobra.Command {
	var (
		output     string
		listingURL string
		maxPages   int
	)
	cmd := &cobra.Command{
		Use:   "schools",
		Short: "Crawls the directory listing into a resumable CSV",
		Long: `Renders every listing page, extracts the school cards and appends them to
the output CSV. Pages already present in the output are skipped, so an
interrupted crawl resumes where it stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			sc := rt.cfg.Scraper
			if listingURL != "" {
				sc.ListingURL = listingURL
			}
			if output != "" {
				sc.Output = output
			}
			if maxPages > 0 {
				sc.MaxPages = maxPages
			}
			if sc.ListingURL == "" {
				return fmt.Errorf("scraper.listing_url (or --listing-url) is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			browser, closeBrowser, err := newListingBrowser(sc)
			if err != nil {
				return err
			}
			defer closeBrowser()

			selectors := scraper.DefaultSelectors()
			runner, err := scraper.NewRunner(scraper.RunnerConfig{
				ListingURL:     sc.ListingURL,
				PageParam:      sc.PageParam,
				MaxPages:       sc.MaxPages,
				AssumeMaxPages: sc.AssumeMaxPages,
				Output:         sc.Output,
				Selectors:      selectors,
				Browser:        browser,
				Limiter:        ratelimit.New(ratelimit.Config{DefaultRPS: ratelimit.PerMinute(sc.RequestsPerMinute)}),
				Retry:          retryPolicy(sc),
				Logger:         rt.logger,
			})
			if err != nil {
				return err
			}
			stats, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			rt.logger.Info("scrape finished",
				zap.String("output", sc.Output),
				zap.Int("schools", stats.Schools),
				zap.Int("pages_failed", stats.PagesFailed),
			)
			return printJSON(cmd, stats)
		},
	}
	cmd.Flags().StringVar(&output, "out", "", "output CSV (default scraper.output)")
	cmd.Flags().StringVar(&listingURL, "listing-url", "", "directory listing URL (default scraper.listing_url)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page cap (default scraper.max_pages)")
	return cmd
}

func newScrapeWebsitesCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "websites",
		Short: "Fills the website column from each school's detail page",
		Long: `Fetches the detail page of every school without a website, in small
batches, and records the first external link. The CSV is rewritten after
each batch; rows that failed are retried on the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			sc := rt.cfg.Scraper
			if path == "" {
				path = sc.Output
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			updater, err := scraper.NewWebsiteUpdater(scraper.WebsiteConfig{
				Path:       path,
				BatchSize:  sc.BatchSize,
				BatchDelay: sc.BatchDelay,
				Fetcher: collyfetcher.New(collyfetcher.Config{
					UserAgent:     sc.UserAgent,
					RespectRobots: true,
					Timeout:       sc.FetchTimeout,
				}),
				DirectoryHost: directoryHost(sc.ListingURL),
				Selectors:     scraper.DefaultSelectors().Website,
				Logger:        rt.logger,
			})
			if err != nil {
				return err
			}
			stats, err := updater.Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
	cmd.Flags().StringVar(&path, "in", "", "CSV to enrich in place (default scraper.output)")
	return cmd
}

// newListingBrowser returns headless Chrome, or the static colly fetcher when headless is off.
func newListingBrowser(sc config.ScraperConfig) (scraper.Browser, func(), error) {
	if !sc.Headless {
		f := collyfetcher.New(collyfetcher.Config{
			UserAgent:     sc.UserAgent,
			RespectRobots: true,
			Timeout:       sc.FetchTimeout,
		})
		return f, func() {}, nil
	}
	b, err := headless.NewChromedp(headless.Config{
		MaxParallel:       sc.MaxParallel,
		UserAgent:         sc.UserAgent,
		NavigationTimeout: sc.NavTimeout,
		ReadySelector:     sc.ReadySelector,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}
	return b, b.Close, nil
}

func retryPolicy(sc config.ScraperConfig) retry.Policy {
	return retry.NewExponentialRetryPolicy(
		retry.WithMaxAttempts(sc.MaxRetries),
		retry.WithBaseDelay(sc.BackoffInitial),
		retry.WithMaxDelay(sc.BackoffMax),
	)
}

func directoryHost(listingURL string) string {
	u, err := url.Parse(listingURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
