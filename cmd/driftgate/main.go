// Package main implements the driftgate CLI: quality-gate analysis of a
// proposed code change under a named policy.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes of the CLI contract.
const (
	exitPassed = 0
	exitFailed = 1
	exitUsage  = 2
)

// Sentinel errors mapping run outcomes to exit codes.
var (
	// errVerdictFailed means the run completed and the overall verdict
	// failed under the --fail-on setting.
	errVerdictFailed = errors.New("quality gates failed")

	// errUsage marks usage errors: unknown policy or gate, malformed
	// arguments.
	errUsage = errors.New("usage error")
)

var (
	// configPath is the driftgate config file, empty for the default.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errVerdictFailed) {
			os.Exit(exitFailed)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, errUsage) {
			os.Exit(exitUsage)
		}
		os.Exit(exitFailed)
	}
	os.Exit(exitPassed)
}

var rootCmd = &cobra.Command{
	Use:   "driftgate",
	Short: "Quality-gate orchestration for codebase drift detection",
	Long: `driftgate runs a configurable battery of analysis gates against a
proposed code change and combines their verdicts into one pass/fail
decision under a named policy.

Exit codes: 0 overall passed, 1 overall failed, 2 usage error.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "driftgate config file (default ~/.config/driftgate/config.yaml)")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(policiesCmd)
	rootCmd.AddCommand(historyCmd)
}
