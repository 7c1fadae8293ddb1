package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/scraper"
)

func newCleanCmd() *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Normalizes, merges and sorts a school CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if in == "" {
				in = rt.cfg.Scraper.Output
			}
			if out == "" {
				out = in
			}
			if _, err := os.Stat(in); err != nil {
				return err
			}
			rows, err := scraper.ReadCSV(in)
			if err != nil {
				return err
			}
			cleaned := scraper.Clean(rows)
			if err := scraper.WriteCSV(out, cleaned); err != nil {
				return err
			}
			rt.logger.Info("csv cleaned",
				zap.String("in", in),
				zap.String("out", out),
				zap.Int("rows_in", len(rows)),
				zap.Int("rows_out", len(cleaned)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows in, %d rows out -> %s\n", len(rows), len(cleaned), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input CSV (default scraper.output)")
	cmd.Flags().StringVar(&out, "out", "", "output CSV (default: rewrite the input)")
	return cmd
}
