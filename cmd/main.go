// Command gitlytix serves and computes open-source project health scores.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gitlytix",
		Short: "Project health scores from GitHub activity",
		Long: `gitlytix turns GitHub issue, pull request and release activity into a
composite 0-100 health score, per-metric statistics and a leaderboard.

Run "gitlytix serve" for the HTTP API and dashboard, or "gitlytix score" to
score a set of durations locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newScoreCmd(), newIngestCmd(), newSeedCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
