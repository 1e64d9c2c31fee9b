package cli

import (
	"context"
	"errors"
	"time"

	"github.com/nimburion/querykit/pkg/health"
	"github.com/spf13/cobra"
)

// ErrUnhealthy is returned by the health command when a check fails.
var ErrUnhealthy = errors.New("store is unhealthy")

func newHealthCommand(rt *runtime) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the configured store answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, log, err := rt.load(cmd.Flags())
			if err != nil {
				return err
			}
			backend, err := rt.opts.OpenStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer backend.Close()

			registry := health.NewRegistry()
			registry.Register(health.NewStoreChecker(cfg.Store.Type, backend, timeout))
			report := registry.Check(ctx)
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Healthy() {
				log.Error("health check failed", "store_type", cfg.Store.Type)
				return ErrUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", health.DefaultTimeout, "per-check timeout")
	return cmd
}
