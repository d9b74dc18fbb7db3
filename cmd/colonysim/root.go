package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "colonysim",
	Short: "Colony labor simulation",
	Long: `colonysim runs a tick-based colony where colonists claim dig, chop
and workshop tasks from shared queues and work them through behavior trees.
State is saved to SQLite and can be observed over an HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to colonysim.yml (defaults when empty)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reactionsCmd)
}
