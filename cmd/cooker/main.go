// cooker launches many short-lived workloads on a cluster and reports the
// peak number that ran at once.
package main

import (
	"context"
	"log/slog"
	"os"

	"cooker/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("Cooker failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cooker",
		Short:         "Stress a cluster with many concurrent workloads",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadCookerConfig()
			if err := config.ApplyFlags(cmd.Flags(), cfg); err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))
			return run(cmd.Context(), cfg)
		},
	}
	cmd.SetOut(os.Stdout)
	config.RegisterFlags(cmd)
	return cmd
}
