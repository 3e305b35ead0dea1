// Package cmd is the lore-machine command line: the API server, migrations and one-shot jobs.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:           "lore-machine",
	Short:         "LORE MACHINE collaborative storytelling backend",
	Long:          "lore-machine serves the story, voting and reward API and runs its background jobs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newJobsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌ "+err.Error())
		os.Exit(1)
	}
}
