package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cleanslate-tools/cleanslate/internal/scanner"
	"github.com/cleanslate-tools/cleanslate/internal/sentinel"
	"github.com/cleanslate-tools/cleanslate/internal/ui"
)

var (
	cleanDryRun    bool
	cleanPermanent bool
	cleanForce     bool
	cleanCategory  string
)

var cleanCmd = &cobra.Command{
	Use:   "clean [target...]",
	Short: "Free up disk space",
	Long: `Delete cache targets, safely.

Every target is backed up and registered for undo before anything is
removed. Deletion goes to the OS trash unless --permanent is given, and
--permanent additionally requires a typed confirmation on a terminal
(or --force). Use 'cleanslate undo --list' to see what can be restored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && cleanCategory == "" {
			return fmt.Errorf("name at least one target or pass --category (run 'cleanslate scan' to list targets)")
		}

		app, err := newAppContext()
		if err != nil {
			return err
		}
		defer app.Close()

		targets, err := selectTargets(args, cleanCategory)
		if err != nil {
			return err
		}

		mode := sentinel.ModeTrash
		if cleanPermanent {
			mode = sentinel.ModePermanent
		}

		s := scanner.New(8, nil)
		var freed int64
		var cleaned, skipped int

		for _, target := range targets {
			var present []string
			var size int64
			var files int64
			for _, res := range s.MeasureAll(cmd.Context(), target.Paths) {
				if !res.Exists {
					continue
				}
				present = append(present, res.Path)
				size += res.Size
				files += res.Files
			}
			if len(present) == 0 {
				fmt.Printf("  %-16s %s\n", target.Name, ui.MutedStyle.Render("not present"))
				continue
			}

			sizeMB := float64(size) / (1 << 20)
			if limit := app.Policy.MaxDeletionSizeMB(); sizeMB > limit {
				fmt.Println(ui.Warn(fmt.Sprintf("%s is %s, over the policy limit of %.0f MB, skipping",
					target.Name, ui.FormatSize(size), limit)))
				skipped++
				continue
			}
			if sizeMB > app.Policy.LargeDirectoryThresholdMB() && !cleanForce && !cleanDryRun {
				if !confirmLargeTarget(app, target.Name, size) {
					fmt.Println(ui.MutedStyle.Render("  skipped " + target.Name))
					skipped++
					continue
				}
			}

			if cleanDryRun {
				ok := true
				for _, p := range present {
					approved, err := app.Deleter.Delete(p, mode, true, cleanForce, target.Context)
					if err != nil || !approved {
						ok = false
						if err != nil {
							fmt.Println(ui.Error(err.Error()))
						}
					}
				}
				if ok {
					fmt.Printf("  %-16s would free %s (%d files)\n", target.Name, ui.FormatSize(size), files)
					freed += size
					cleaned++
				}
				continue
			}

			// Backup and register first. No safety net, no deletion.
			opID := uuid.NewString()[:8]
			backups, err := app.Recovery.CreateBackup(opID, present)
			if err != nil {
				app.Audit.LogBackup(strings.Join(present, ","), "", false, 0, err.Error())
				fmt.Println(ui.Error(fmt.Sprintf("backup of %s failed, not deleting: %v", target.Name, err)))
				skipped++
				continue
			}
			for i, p := range present {
				app.Audit.LogBackup(p, backups[i], true, size, "")
			}
			if !app.Recovery.Register(opID, "cache_cleanup", present, backups, int(files), size,
				map[string]any{"target": target.Name, "context": target.Context}) {
				fmt.Println(ui.Error(fmt.Sprintf("could not register recovery for %s, not deleting", target.Name)))
				skipped++
				continue
			}

			targetFreed := int64(0)
			allOK := true
			for _, p := range present {
				ok, err := app.Deleter.Delete(p, mode, false, cleanForce, target.Context)
				if err != nil {
					fmt.Println(ui.Error(err.Error()))
					allOK = false
					continue
				}
				if !ok {
					fmt.Println(ui.MutedStyle.Render("  cancelled " + p))
					allOK = false
					continue
				}
			}
			if allOK {
				targetFreed = size
				fmt.Printf("  %-16s freed %s  %s\n", target.Name, ui.FormatSize(size),
					ui.MutedStyle.Render("(undo: "+opID+")"))
				cleaned++
			} else {
				skipped++
			}
			freed += targetFreed
		}

		fmt.Println()
		if cleanDryRun {
			fmt.Println(ui.Success(fmt.Sprintf("dry run: %s would be freed across %d targets", ui.FormatSize(freed), cleaned)))
		} else {
			fmt.Println(ui.Success(fmt.Sprintf("freed %s across %d targets (%d skipped)", ui.FormatSize(freed), cleaned, skipped)))
			if cleaned > 0 {
				fmt.Println(ui.MutedStyle.Render("run 'cleanslate undo --list' to see what can be restored"))
			}
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Preview the cleanup plan without deleting")
	cleanCmd.Flags().BoolVar(&cleanPermanent, "permanent", false, "Delete permanently instead of moving to trash")
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "Skip interactive confirmations")
	cleanCmd.Flags().StringVar(&cleanCategory, "category", "", "Clean one category (user, browser, dev, game)")
}

// confirmLargeTarget asks before cleaning a target above the policy's large
// directory threshold. Non-interactive sessions refuse rather than assume.
func confirmLargeTarget(app *appContext, name string, size int64) bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		slog.Warn("large target needs confirmation, refusing without a terminal", "target", name)
		return false
	}
	fmt.Printf("%s is %s. Clean it? [y/N] ", name, ui.FormatSize(size))
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	confirmed := err == nil && strings.EqualFold(strings.TrimSpace(line), "y")
	app.Audit.LogUserConfirmation("clean_large_target", confirmed, map[string]any{
		"target": name, "size": size, "asked_at": time.Now().UTC().Format(time.RFC3339),
	})
	return confirmed
}
