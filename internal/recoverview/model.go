// Package recoverview is the interactive browser over recoverable operations.
// It only reads through the recovery manager; the single destructive-looking
// action it offers, undo, restores data rather than removing it.
package recoverview

import (
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cleanslate-tools/cleanslate/internal/recovery"
	"github.com/cleanslate-tools/cleanslate/internal/ui"
)

// ─── Messages ────────────────────────────────────────────────────────────────

type loadedMsg struct {
	infos []recovery.OperationInfo
}

type undoDoneMsg struct {
	result *recovery.Result
}

// ─── Model ───────────────────────────────────────────────────────────────────

// Model is the bubbletea Model for the recovery browser.
type Model struct {
	manager  *recovery.Manager
	daysBack int

	table   table.Model
	spinner spinner.Model

	infos      []recovery.OperationInfo
	confirming string // operation id awaiting y/n, "" otherwise
	undoing    bool
	result     *recovery.Result

	Width    int
	Height   int
	quitting bool
	Err      error
}

// New creates the browser over the given manager, listing operations from the
// last daysBack days.
func New(manager *recovery.Manager, daysBack int) Model {
	if daysBack <= 0 {
		daysBack = 30
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sp.Style.Foreground(ui.ColorSecondary)

	columns := []table.Column{
		{Title: "Operation", Width: 14},
		{Title: "Type", Width: 14},
		{Title: "When", Width: 17},
		{Title: "Files", Width: 6},
		{Title: "Size", Width: 10},
		{Title: "Status", Width: 12},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(ui.ColorPrimary)
	styles.Selected = styles.Selected.Foreground(ui.ColorSecondary).Bold(true)
	tbl.SetStyles(styles)

	return Model{
		manager:  manager,
		daysBack: daysBack,
		table:    tbl,
		spinner:  sp,
		Width:    80,
		Height:   24,
	}
}

func (m Model) load() tea.Cmd {
	manager, days := m.manager, m.daysBack
	return func() tea.Msg {
		return loadedMsg{infos: manager.List(days)}
	}
}

func (m Model) runUndo(operationID string) tea.Cmd {
	manager := m.manager
	return func() tea.Msg {
		return undoDoneMsg{result: manager.Undo(operationID, nil)}
	}
}

// selectedOperation returns the operation id under the cursor, or "".
func (m Model) selectedOperation() string {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

// infoByID finds the listed info for an operation id.
func (m Model) infoByID(id string) (recovery.OperationInfo, bool) {
	for _, info := range m.infos {
		if info.OperationID == id {
			return info, true
		}
	}
	return recovery.OperationInfo{}, false
}

// ─── tea.Model interface ─────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.undoing {
			// No input while a restore is running; it finishes or fails.
			return m, nil
		}

		if m.confirming != "" {
			switch msg.String() {
			case "y", "Y":
				id := m.confirming
				m.confirming = ""
				m.undoing = true
				m.result = nil
				return m, tea.Batch(m.spinner.Tick, m.runUndo(id))
			default:
				m.confirming = ""
				return m, nil
			}
		}

		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.load()
		case "enter", "u":
			id := m.selectedOperation()
			if id == "" {
				return m, nil
			}
			if info, ok := m.infoByID(id); !ok || !info.CanRecover {
				return m, nil
			}
			m.confirming = id
			return m, nil
		}

		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case loadedMsg:
		m.infos = msg.infos
		m.table.SetRows(rowsFor(msg.infos))
		return m, nil

	case undoDoneMsg:
		m.undoing = false
		m.result = msg.result
		return m, m.load()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderView()
}

// rowsFor converts operation infos to table rows, newest first as listed.
func rowsFor(infos []recovery.OperationInfo) []table.Row {
	rows := make([]table.Row, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, table.Row{
			info.OperationID,
			info.OperationType,
			shortTimestamp(info.Timestamp),
			strconv.Itoa(info.FilesAffected),
			ui.FormatSize(info.SizeAffected),
			statusLabel(info),
		})
	}
	return rows
}

func shortTimestamp(ts string) string {
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return parsed.Local().Format("2006-01-02 15:04")
}

func statusLabel(info recovery.OperationInfo) string {
	if info.CanRecover {
		return "recoverable"
	}
	return string(info.RecoveryStatus)
}
