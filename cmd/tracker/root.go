package main

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the tracker command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "PNR status tracker",
		Long: `Tracks railway PNR status for subscribed users and notifies them when it changes.

Configuration is read from the environment and from a .env file when present.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewReconcileCommand())
	return cmd
}
