package recoverview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/cleanslate-tools/cleanslate/internal/ui"
)

// ─── Top-level renderer ─────────────────────────────────────────────────────

func (m Model) renderView() string {
	w := m.Width
	if w < 60 {
		w = 60
	}

	var s strings.Builder
	s.WriteString(ui.TitleStyle.Render("  Recoverable operations"))
	s.WriteString("\n")
	s.WriteString(ui.MutedStyle.Render("  " + strings.Repeat("─", w-4)))
	s.WriteString("\n")

	if len(m.infos) == 0 {
		s.WriteString(ui.MutedStyle.Italic(true).
			Render(fmt.Sprintf("  Nothing to recover from the last %d days.", m.daysBack)))
		s.WriteString("\n")
	} else {
		s.WriteString(m.table.View())
		s.WriteString("\n")
	}

	if m.undoing {
		s.WriteString("\n  " + m.spinner.View() +
			ui.MutedStyle.Render(" restoring…"))
		s.WriteString("\n")
	}

	if m.confirming != "" {
		s.WriteString("\n")
		s.WriteString(ui.WarningBox.Render(
			fmt.Sprintf("Restore operation %s to its original paths? (y/N)", m.confirming)))
		s.WriteString("\n")
	}

	if m.result != nil {
		s.WriteString("\n")
		s.WriteString(m.renderResult())
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(m.renderFooter())
	return s.String()
}

// ─── Result card ────────────────────────────────────────────────────────────

func (m Model) renderResult() string {
	r := m.result

	var lines []string
	if r.Success {
		lines = append(lines, ui.Success(r.Message))
	} else {
		lines = append(lines, ui.Error(r.Message))
	}
	if r.FilesRestored > 0 {
		lines = append(lines, fmt.Sprintf("  %d files, %s restored in %s",
			r.FilesRestored, ui.FormatSize(r.SizeRestored), r.Duration.Round(time.Millisecond)))
	}
	for _, p := range r.FailedPaths {
		lines = append(lines, ui.Warn("failed: "+p))
	}

	border := ui.ColorSuccess
	if !r.Success || len(r.FailedPaths) > 0 {
		border = ui.ColorWarning
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// ─── Footer ─────────────────────────────────────────────────────────────────

func (m Model) renderFooter() string {
	hints := "  ↑/↓ select  " + ui.IconPipe + "  enter restore  " + ui.IconPipe +
		"  r refresh  " + ui.IconPipe + "  q quit"
	footer := ui.MutedStyle.Italic(true).Render(hints)

	if m.Err != nil {
		errStr := lipgloss.NewStyle().
			Foreground(ui.ColorError).
			Render("  " + ui.IconError + " " + m.Err.Error())
		return errStr + "\n" + footer
	}
	return footer
}
