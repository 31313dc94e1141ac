// Package ui holds the shared terminal palette, icons, and formatting helpers
// used by every command's output.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// ─── Palette ─────────────────────────────────────────────────────────────────

var (
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#7c3aed", Dark: "#a78bfa"}
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#0891b2", Dark: "#22d3ee"}
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#16a34a", Dark: "#4ade80"}
	ColorWarning   = lipgloss.AdaptiveColor{Light: "#ca8a04", Dark: "#facc15"}
	ColorError     = lipgloss.AdaptiveColor{Light: "#dc2626", Dark: "#f87171"}
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
)

// ─── Icons ───────────────────────────────────────────────────────────────────

const (
	IconOK      = "✓"
	IconError   = "✗"
	IconWarning = "!"
	IconArrow   = "→"
	IconPipe    = "│"
)

// ─── Styles ──────────────────────────────────────────────────────────────────

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	MutedStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	warnStyle    = lipgloss.NewStyle().Foreground(ColorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorError)

	// WarningBox frames destructive-action warnings.
	WarningBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarning).
			Padding(0, 1)
)

// Success renders a green check line.
func Success(msg string) string {
	return successStyle.Render(IconOK + " " + msg)
}

// Warn renders a yellow warning line.
func Warn(msg string) string {
	return warnStyle.Render(IconWarning + " " + msg)
}

// Error renders a red error line.
func Error(msg string) string {
	return errorStyle.Render(IconError + " " + msg)
}

// RiskBadge renders a colored risk-level tag.
func RiskBadge(level string) string {
	switch level {
	case "high":
		return errorStyle.Render("[high]")
	case "medium":
		return warnStyle.Render("[medium]")
	default:
		return MutedStyle.Render("[low]")
	}
}

// FormatSize returns a human-readable byte count.
func FormatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
		tb = gb * 1024
	)
	switch {
	case bytes >= tb:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(tb))
	case bytes >= gb:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
