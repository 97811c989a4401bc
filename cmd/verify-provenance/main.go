/*
Command verify-provenance detects whether a change proposed to a target
repository originated - by copy, adaptation, or unattributed cherry-pick -
from a known source repository, despite cosmetic divergence such as
rebranding, identifier renaming, or comment drift.

Usage:

	verify-provenance check <diff-file|->
	verify-provenance refresh
	verify-provenance bootstrap

Output is always written to stdout as a one-line-per-finding summary;
diagnostics and progress go to stderr. Exit code 0 means no finding above
threshold, 1 means at least one finding (or an unrecoverable error).
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "verify-provenance",
	Short: "Detect whether a change was copied from a known source repository.",
	Long: `verify-provenance runs a branding-aware diff normalizer, a two-layer
similarity search, and a trivial-change filter against a fingerprint
database to decide whether a proposed change originated from a known
source repository.`,
}

func init() {
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newBootstrapCmd())
	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information and exit.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("verify-provenance %s\n", buildVersion)
	},
}

// buildVersion is overridable at link time via -ldflags, mirroring how
// hercules stamps BinaryVersion/BinaryGitHash into its version command.
var buildVersion = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
