// Package tui renders a live view of a harness run: per-server status lines,
// a scrolling log tail and the report path once the run finishes.
package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"inspectctl/internal/reporting"
	"inspectctl/internal/results"
	"inspectctl/pkg/logging"
)

const maxLogLines = 200

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

// LogEntryMsg wraps a logging entry for the TUI.
type LogEntryMsg struct {
	Entry logging.LogEntry
}

type serverLine struct {
	name   string
	phase  reporting.Phase
	status results.ServerStatus
	err    bool
}

// Model is the bubbletea model for a harness run.
type Model struct {
	spinner    spinner.Model
	updates    <-chan tea.Msg
	logChan    <-chan logging.LogEntry
	servers    []serverLine
	logLines   []string
	done       bool
	reportPath string
	statusMsg  string
	width      int
	height     int
}

// NewModel creates the run view fed by the reporter and log channels.
func NewModel(updates <-chan tea.Msg, logChan <-chan logging.LogEntry) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle
	return Model{
		spinner: sp,
		updates: updates,
		logChan: logChan,
		width:   80,
		height:  24,
	}
}

func waitForUpdate(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func waitForLog(ch <-chan logging.LogEntry) tea.Cmd {
	return func() tea.Msg {
		entry, ok := <-ch
		if !ok {
			return nil
		}
		return LogEntryMsg{Entry: entry}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, waitForUpdate(m.updates)}
	if m.logChan != nil {
		cmds = append(cmds, waitForLog(m.logChan))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "c":
			if m.reportPath != "" {
				if err := clipboard.WriteAll(m.reportPath); err != nil {
					m.statusMsg = "Copy failed: " + err.Error()
				} else {
					m.statusMsg = "Report path copied to clipboard"
				}
			}
			return m, nil
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case reporting.RunUpdateMsg:
		m = m.applyRunUpdate(msg.Update)
		return m, waitForUpdate(m.updates)

	case LogEntryMsg:
		m = m.appendLog(formatLogEntry(msg.Entry))
		return m, waitForLog(m.logChan)
	}

	return m, nil
}

func (m Model) applyRunUpdate(update reporting.RunUpdate) Model {
	if update.Server != "" {
		idx := -1
		for i, s := range m.servers {
			if s.name == update.Server {
				idx = i
				break
			}
		}
		if idx == -1 {
			m.servers = append(m.servers, serverLine{name: update.Server})
			idx = len(m.servers) - 1
		}
		m.servers[idx].phase = update.Phase
		if update.Err != nil {
			m.servers[idx].err = true
		}
		if update.Phase == reporting.PhasePing || update.Phase == reporting.PhaseShutdown {
			if m.servers[idx].err {
				m.servers[idx].status = results.ServerStatusFailed
			} else {
				m.servers[idx].status = results.ServerStatusCompleted
			}
		}
	}

	line := string(update.Phase)
	if update.Message != "" {
		line += ": " + update.Message
	}
	m = m.appendLog(line)

	if update.Done {
		m.done = true
		m.reportPath = update.ReportPath
	}
	return m
}

func (m Model) appendLog(line string) Model {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
	return m
}

func formatLogEntry(entry logging.LogEntry) string {
	line := fmt.Sprintf("[%s] %s: %s", entry.Level, entry.Subsystem, entry.Message)
	if entry.Err != nil {
		line += " (" + entry.Err.Error() + ")"
	}
	return line
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("inspectctl"))
	if m.done {
		b.WriteString(dimStyle.Render("  run finished"))
	} else {
		b.WriteString("  " + m.spinner.View() + dimStyle.Render(" running"))
	}
	b.WriteString("\n\n")

	for _, s := range m.servers {
		glyph := m.spinner.View()
		style := pendingStyle
		switch s.status {
		case results.ServerStatusCompleted:
			glyph = "✓"
			style = successStyle
		case results.ServerStatusFailed:
			glyph = "✗"
			style = failStyle
		}
		line := fmt.Sprintf("%s %s (%s)", glyph, s.name, s.phase)
		b.WriteString(style.Render(runewidth.Truncate(line, m.width-2, "…")))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	tail := m.logLines
	visible := m.height - len(m.servers) - 8
	if visible < 3 {
		visible = 3
	}
	if len(tail) > visible {
		tail = tail[len(tail)-visible:]
	}
	for _, line := range tail {
		b.WriteString(dimStyle.Render(runewidth.Truncate(line, m.width-2, "…")))
		b.WriteString("\n")
	}

	if m.reportPath != "" {
		b.WriteString("\n" + successStyle.Render("Report: "+m.reportPath) + "\n")
	}
	if m.statusMsg != "" {
		b.WriteString(statusStyle.Render(m.statusMsg) + "\n")
	}
	b.WriteString(dimStyle.Render("\nq: quit  c: copy report path\n"))
	return b.String()
}
