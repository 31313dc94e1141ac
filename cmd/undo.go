package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleanslate-tools/cleanslate/internal/ui"
)

var (
	undoList    bool
	undoStats   bool
	undoDays    int
	undoCleanup int
	undoPaths   []string
)

var undoCmd = &cobra.Command{
	Use:   "undo [operation-id]",
	Short: "Restore a previous cleanup from backup",
	Long: `Restore files deleted by a previous clean operation.

Without arguments, --list shows recoverable operations and --stats shows
store totals. With an operation id, the backed-up files are copied back
to their original locations. Restoration refuses to overwrite paths that
have reappeared since the deletion.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		defer app.Close()

		switch {
		case undoStats:
			stats := app.Recovery.Statistics()
			fmt.Println(ui.TitleStyle.Render("Recovery store"))
			fmt.Printf("  Records         %d\n", stats.TotalRecords)
			fmt.Printf("  Recoverable     %d (%s in %d files)\n",
				stats.RecoverableOperations,
				ui.FormatSize(stats.TotalSizeRecoverable),
				stats.TotalFilesRecoverable)
			fmt.Printf("  Store size      %s\n", ui.FormatSize(stats.DatabaseSizeBytes))
			fmt.Printf("  Directory       %s\n", stats.RecoveryDirectory)
			for status, n := range stats.StatusBreakdown {
				fmt.Printf("  %-15s %d\n", status, n)
			}
			return nil

		case undoList:
			infos := app.Recovery.List(undoDays)
			if len(infos) == 0 {
				fmt.Printf("Nothing to recover from the last %d days.\n", undoDays)
				return nil
			}
			fmt.Println(ui.TitleStyle.Render("Recoverable operations"))
			for _, info := range infos {
				status := string(info.RecoveryStatus)
				if info.CanRecover {
					status = ui.Success("recoverable")
				}
				fmt.Printf("  %-10s %-14s %s  %d files  %s  %s\n",
					info.OperationID, info.OperationType, info.Timestamp,
					info.FilesAffected, ui.FormatSize(info.SizeAffected), status)
			}
			return nil

		case undoCleanup > 0:
			removed := app.Recovery.CleanupCompleted(undoCleanup)
			fmt.Println(ui.Success(fmt.Sprintf("removed %d completed recovery records", removed)))
			return nil
		}

		if len(args) != 1 {
			return fmt.Errorf("pass an operation id, or use --list / --stats")
		}

		result := app.Recovery.Undo(args[0], undoPaths)
		if result.Success {
			fmt.Println(ui.Success(result.Message))
			fmt.Printf("  %d files, %s restored in %s\n",
				result.FilesRestored, ui.FormatSize(result.SizeRestored), result.Duration)
		} else {
			fmt.Println(ui.Error(result.Message))
		}
		for _, p := range result.RestoredPaths {
			fmt.Println("  " + ui.IconOK + " " + p)
		}
		for _, p := range result.FailedPaths {
			fmt.Println("  " + ui.IconError + " " + p)
		}
		for _, w := range result.Warnings {
			fmt.Println(ui.Warn(w))
		}
		if !result.Success {
			return fmt.Errorf("recovery of %s did not complete", args[0])
		}
		return nil
	},
}

func init() {
	undoCmd.Flags().BoolVar(&undoList, "list", false, "List recoverable operations")
	undoCmd.Flags().BoolVar(&undoStats, "stats", false, "Show recovery store statistics")
	undoCmd.Flags().IntVar(&undoDays, "days", 7, "How many days back to list")
	undoCmd.Flags().IntVar(&undoCleanup, "cleanup", 0, "Remove completed recovery records older than N days")
	undoCmd.Flags().StringArrayVar(&undoPaths, "path", nil, "Restore only originals matching this path prefix (repeatable)")
}
