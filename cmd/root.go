// Package cmd defines and implements the CLI commands for the flightdeck executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/flightdeck/internal/config"
	"github.com/JakeFAU/flightdeck/internal/logging"
)

// runtimeKeyType is the key for storing the runtime in the command context.
type runtimeKeyType struct{}

// runtime is what every subcommand receives from the root command.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
}

// loadConfig and newLogger are variables so tests can inject fixtures.
var (
	loadConfig = config.Load
	newLogger  = logging.New
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "flightdeck",
		Short: "Website, admin dashboard and lead tooling for a flight school.",
		Long: `flightdeck serves the flight school's marketing site and admin dashboard,
records page views and training requests, and ships the tooling used to build
the school directory dataset (scrape, enrich, clean).`,
		SilenceUsage: true,

		// Config and logger are built once here and handed to subcommands via the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = logging.NewContext(ctx, logger)
			ctx = context.WithValue(ctx, runtimeKeyType{}, &runtime{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, ok := cmd.Context().Value(runtimeKeyType{}).(*runtime); ok && rt != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env FLIGHTDECK_* overrides it)")

	cmd.AddCommand(
		newServeCmd(),
		newScrapeCmd(),
		newCleanCmd(),
		newAnalyticsCmd(),
		newSeedCmd(),
		newHashPasswordCmd(),
	)
	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKeyType{}).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// Execute is the main entry point.
func Execute() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}
