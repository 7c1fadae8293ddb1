package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the public site and admin dashboard",
		Long: `Starts the HTTP server, the lead notification workers and the page view
recorder. SIGINT or SIGTERM drains in-flight work before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			rt.logger.Info("flightdeck starting", zap.Int("port", rt.cfg.Server.Port))
			return a.Run(ctx)
		},
	}
}
