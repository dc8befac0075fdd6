package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ballpark/internal/app"
)

func newServeCmd(g *globals) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run pipelines on the config's cron schedules until interrupted",
		Long: `Run pipelines on the cron schedules listed in the config file.

The config file is watched; saving it reloads the schedules without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())
			return a.Serve(ctx, grace)
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", time.Minute, "how long to wait for running pipelines on shutdown")
	return cmd
}

func newMCPCmd(g *globals, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipelines as MCP tools on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return app.ServeMCP(ctx, g.options(cmd), version)
		},
	}
}
