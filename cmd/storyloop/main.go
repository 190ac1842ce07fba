package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Exit codes: every fatal condition maps to 1.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

var rootCmd = &cobra.Command{
	Use:   "storyloop",
	Short: "Sequential story scheduler for AI coding agents",
	Long: `Storyloop drives an external coding agent through a persisted story
backlog, one story per iteration, until every story is done. The agent
mutates the state file; storyloop observes progress only by re-reading
it and never trusts the agent's own exit status.`,
	Version: Version,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the storyloop version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("storyloop %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitFailure)
	}
}
