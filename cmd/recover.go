package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/cleanslate-tools/cleanslate/internal/recoverview"
)

var recoverDays int

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Browse and restore deleted caches interactively",
	Long:  "Full-screen browser over recoverable operations. Select one and restore it in place.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		defer app.Close()

		model := recoverview.New(app.Recovery, recoverDays)
		if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("recovery browser: %w", err)
		}
		return nil
	},
}

func init() {
	recoverCmd.Flags().IntVar(&recoverDays, "days", 30, "How many days back to list")
}
