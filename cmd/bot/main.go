package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRootCommand creates the root command. Configuration comes from the
// environment, .env and CONFIG_FILE; there are no global flags.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "care-bot",
		Short: "Care reminder bot",
		Long: `Care reminder bot keeps recurring care cycles (watering, feeding) for
each owner's subjects and notifies owners when something is due.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSweepCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newNotifyCommand())

	return cmd
}
