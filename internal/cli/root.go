// Package cli implements the ballpark command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ballpark/internal/app"
	"ballpark/internal/config"
	"ballpark/internal/secret"
)

// globals are the persistent flags every command shares.
type globals struct {
	configPath string
	workers    int
	secrets    secret.SecretStore // tests inject a store; nil uses app.DefaultSecrets
}

func (g *globals) options(cmd *cobra.Command) app.Options {
	return app.Options{
		ConfigPath: g.configPath,
		Workers:    g.workers,
		Secrets:    g.secrets,
		LogOutput:  cmd.ErrOrStderr(),
	}
}

// open builds an App for one command.
func (g *globals) open(cmd *cobra.Command) (*app.App, error) {
	return app.New(cmd.Context(), g.options(cmd))
}

// NewRootCmd returns the ballpark command tree.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(version, &globals{})
}

func newRootCmd(version string, g *globals) *cobra.Command {
	root := &cobra.Command{
		Use:           "ballpark",
		Short:         "ballpark loads MLB scores, venues and venue elevations into a warehouse.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultPath,
		"config file; <name>.local.<ext> next to it overrides it")
	root.PersistentFlags().IntVarP(&g.workers, "workers", "w", 0,
		"concurrent fetches per pipeline (overrides the config; 1 runs serially)")

	root.AddCommand(
		newRunCmds(g)...,
	)
	root.AddCommand(
		newPipelinesCmd(g),
		newRunsCmd(g),
		newSkipsCmd(g),
		newServeCmd(g),
		newMCPCmd(g, version),
		newSecretCmd(g),
	)
	return root
}

// ExecuteContext runs the command line and exits non-zero on error.
func ExecuteContext(ctx context.Context, version string) {
	if err := NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
