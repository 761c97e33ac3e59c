package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scantriage",
	Short: "Orchestrate security scanners and triage their findings",
	Long: `scantriage runs multiple security scanning tools against a codebase,
merges their output into a single deduplicated finding set, and triages
the result: classifying likely false positives, scoring risk, and
clustering related findings.

Get started:
  scantriage doctor   Verify scanner tools are available
  scantriage scan     Scan a local path or git URL
  scantriage triage   Re-triage a stored scan snapshot
  scantriage history  List recorded runs and finding recurrence`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.scantriage/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		scanCmd,
		triageCmd,
		doctorCmd,
		historyCmd,
	)
}

func initConfig() {
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
