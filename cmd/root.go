package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	debug      bool
	policyPath string

	// Version info populated from main
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets build-time version information.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "cleanslate",
	Short: "Clean caches and temp files with a fail-closed safety net",
	Long: `CleanSlate - reclaim disk space without losing data.

Scans known cache locations (browsers, game engines, IDEs, package
managers), moves them to trash by default, backs everything up before
deletion, and can undo any operation. Every destructive action passes
a security policy check and is written to a tamper-evident audit log.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Show detailed operation logs")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "Security policy file (default: user policy, then bundled)")

	// Register all subcommands
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(versionCmd)
}
