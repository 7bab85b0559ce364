// Package cmd defines the CLI commands for the stockwatcher executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stockwatcher",
		Short: "Watches the Grow a Garden seed shop and alerts on rare stock.",
		Long: `stockwatcher polls the Grow a Garden stock page, parses the seed shop
inventory, and sends an email alert when any of the configured rare seeds
come into stock. Run "serve" for the long-running service with an HTTP API,
or "check" for a single cron-style check.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (optional, env vars override)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCheckCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
