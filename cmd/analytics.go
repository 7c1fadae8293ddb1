package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/flightdeck/internal/analytics"
	"github.com/JakeFAU/flightdeck/internal/app"
	"github.com/JakeFAU/flightdeck/internal/clock/system"
)

func newAnalyticsCmd() *cobra.Command {
	var (
		rangeName string
		tz        string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Prints the page view dashboard for a range",
		Long: `Loads page views from the configured document backend and prints the
traffic series, top pages and top referrers. Ranges: 24h, 7d, 30d, 90d, 12m.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			stores, err := app.OpenStores(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			if tz == "" {
				tz = rt.cfg.Server.Timezone
			}
			svc := analytics.NewService(stores.PageViews, system.New(), analytics.ServiceConfig{
				DefaultRange:    rt.cfg.Analytics.DefaultRange,
				DefaultTimezone: tz,
				SiteHost:        app.SiteHost(rt.cfg.Server.BaseURL),
			})
			dash, err := svc.Dashboard(ctx, rangeName, tz)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, dash)
			}
			renderDashboard(cmd, dash)
			return nil
		},
	}
	cmd.Flags().StringVar(&rangeName, "range", "", "range preset (default analytics.default_range)")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA timezone (default server.timezone)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the dashboard as JSON")
	return cmd
}

func renderDashboard(cmd *cobra.Command, dash analytics.Dashboard) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s buckets, %s): %d views, %d sessions\n",
		dash.Range, dash.Granularity, dash.Timezone, dash.Summary.TotalViews, dash.Summary.UniqueSessions)

	series := table.NewWriter()
	series.SetOutputMirror(out)
	series.SetTitle("Traffic")
	series.AppendHeader(table.Row{"Bucket", "Views"})
	for _, b := range dash.Series {
		series.AppendRow(table.Row{b.Label, b.Count})
	}
	series.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	series.SetStyle(table.StyleRounded)
	series.Render()

	paths := table.NewWriter()
	paths.SetOutputMirror(out)
	paths.SetTitle("Top pages")
	paths.AppendHeader(table.Row{"Path", "Views"})
	for _, p := range dash.Summary.TopPaths {
		paths.AppendRow(table.Row{p.Path, p.Count})
	}
	paths.SetStyle(table.StyleRounded)
	paths.Render()

	refs := table.NewWriter()
	refs.SetOutputMirror(out)
	refs.SetTitle("Top referrers")
	refs.AppendHeader(table.Row{"Host", "Views"})
	for _, r := range dash.Summary.TopReferrers {
		refs.AppendRow(table.Row{r.Host, r.Count})
	}
	refs.SetStyle(table.StyleRounded)
	refs.Render()
}
