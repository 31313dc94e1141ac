package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleanslate-tools/cleanslate/internal/catalog"
	"github.com/cleanslate-tools/cleanslate/internal/scanner"
	"github.com/cleanslate-tools/cleanslate/internal/ui"
)

var (
	scanCategory string
	scanJSON     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [target...]",
	Short: "Measure cache sizes without deleting anything",
	Long: `Measure the disk space used by known cache locations.

Targets may be named explicitly (see the output for names), filtered by
category with --category, or left empty to scan everything the platform
catalog knows about. Scanning is strictly read-only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		defer app.Close()

		targets, err := selectTargets(args, scanCategory)
		if err != nil {
			return err
		}

		start := time.Now()
		s := scanner.New(8, nil)

		type scanRow struct {
			Target  catalog.Target
			Size    int64
			Files   int64
			Present bool
		}

		var rows []scanRow
		var totalSize, totalFiles int64
		var scannedPaths []string
		for _, target := range targets {
			row := scanRow{Target: target}
			for _, res := range s.MeasureAll(cmd.Context(), target.Paths) {
				if !res.Exists {
					continue
				}
				row.Present = true
				row.Size += res.Size
				row.Files += res.Files
				scannedPaths = append(scannedPaths, res.Path)
			}
			totalSize += row.Size
			totalFiles += row.Files
			rows = append(rows, row)
		}

		app.Audit.LogScan("scan", scannedPaths, totalSize, int(totalFiles), time.Since(start))

		if scanJSON {
			return json.NewEncoder(os.Stdout).Encode(rows)
		}

		fmt.Println(ui.TitleStyle.Render("Cache scan"))
		for _, row := range rows {
			if !row.Present {
				fmt.Printf("  %-16s %s %s\n", row.Target.Name,
					ui.RiskBadge(row.Target.RiskLevel), ui.MutedStyle.Render("not present"))
				continue
			}
			fmt.Printf("  %-16s %s %10s  %d files\n", row.Target.Name,
				ui.RiskBadge(row.Target.RiskLevel), ui.FormatSize(row.Size), row.Files)
		}
		fmt.Printf("\n  Total: %s across %d files\n", ui.FormatSize(totalSize), totalFiles)

		if warnings := s.Warnings(); len(warnings) > 0 {
			fmt.Println(ui.Warn(fmt.Sprintf("%d paths could not be fully scanned (use --debug for details)", len(warnings))))
			for _, w := range warnings {
				slog.Debug("scan warning", "detail", w)
			}
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanCategory, "category", "", "Only scan one category (user, browser, dev, game)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output results as JSON")
}

// selectTargets resolves explicit names and/or a category filter against the
// platform catalog. Unknown names are an error, not a silent skip.
func selectTargets(names []string, category string) ([]catalog.Target, error) {
	if len(names) > 0 {
		var targets []catalog.Target
		for _, name := range names {
			target, ok := catalog.ByName(name)
			if !ok {
				return nil, fmt.Errorf("unknown target %q (run 'cleanslate scan' to list targets)", name)
			}
			if category != "" && target.Category != category {
				continue
			}
			targets = append(targets, target)
		}
		return targets, nil
	}

	if category != "" {
		targets := catalog.ByCategory(category)
		if len(targets) == 0 {
			seen := make(map[string]bool)
			var known []string
			for _, t := range catalog.Targets() {
				if !seen[t.Category] {
					seen[t.Category] = true
					known = append(known, t.Category)
				}
			}
			return nil, fmt.Errorf("no targets in category %q (known: %s)", category, strings.Join(known, ", "))
		}
		return targets, nil
	}

	return catalog.Targets(), nil
}
