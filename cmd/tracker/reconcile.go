package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"pnr_tracker/internal/infra/config"
	"pnr_tracker/internal/infra/logger"
)

// NewReconcileCommand runs a single pass and exits. It honours the redis run guard, so it is
// safe to use next to running servers.
func NewReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := build(ctx, cfg, logger.New(cfg))
			if err != nil {
				return err
			}
			defer c.Close()

			summary, ran := c.scheduler.RunPass(ctx)
			if !ran {
				return fmt.Errorf("another reconciliation pass is in progress")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%d changed=%d failed=%d notified=%d notify_failed=%d duration=%s\n",
				summary.Checked, summary.Changed, summary.Failed, summary.Notified, summary.NotifyFailed, summary.Duration)
			return nil
		},
	}
}
