package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspectctl/internal/reporting"
	"inspectctl/internal/results"
)

func applyUpdates(m Model, updates ...reporting.RunUpdate) Model {
	for _, u := range updates {
		next, _ := m.Update(reporting.RunUpdateMsg{Update: u})
		m = next.(Model)
	}
	return m
}

func TestModel_TracksServerProgress(t *testing.T) {
	updates := make(chan tea.Msg, 8)
	m := NewModel(updates, nil)

	m = applyUpdates(m,
		reporting.RunUpdate{Phase: reporting.PhaseConnect, Server: "dev-tools", Message: "connecting"},
		reporting.RunUpdate{Phase: reporting.PhaseTools, Server: "dev-tools", Message: "testing tools"},
	)

	require.Len(t, m.servers, 1)
	assert.Equal(t, "dev-tools", m.servers[0].name)
	assert.Equal(t, reporting.PhaseTools, m.servers[0].phase)
	assert.Equal(t, results.ServerStatus(""), m.servers[0].status, "still in flight")
}

func TestModel_MarksServerCompletedAfterPing(t *testing.T) {
	updates := make(chan tea.Msg, 8)
	m := NewModel(updates, nil)

	m = applyUpdates(m,
		reporting.RunUpdate{Phase: reporting.PhaseConnect, Server: "analytics"},
		reporting.RunUpdate{Phase: reporting.PhasePing, Server: "analytics"},
	)

	require.Len(t, m.servers, 1)
	assert.Equal(t, results.ServerStatusCompleted, m.servers[0].status)
}

func TestModel_MarksServerFailedOnError(t *testing.T) {
	updates := make(chan tea.Msg, 8)
	m := NewModel(updates, nil)

	m = applyUpdates(m,
		reporting.RunUpdate{Phase: reporting.PhaseTools, Server: "cloud-ops", Err: errors.New("boom")},
		reporting.RunUpdate{Phase: reporting.PhasePing, Server: "cloud-ops"},
	)

	require.Len(t, m.servers, 1)
	assert.Equal(t, results.ServerStatusFailed, m.servers[0].status)
}

func TestModel_DoneUpdateStoresReportPath(t *testing.T) {
	updates := make(chan tea.Msg, 8)
	m := NewModel(updates, nil)

	m = applyUpdates(m, reporting.RunUpdate{
		Phase:      reporting.PhaseReport,
		Message:    "report written",
		Done:       true,
		ReportPath: "test-reports/report-1.json",
	})

	assert.True(t, m.done)
	assert.Equal(t, "test-reports/report-1.json", m.reportPath)
	assert.Contains(t, m.View(), "test-reports/report-1.json")
}

func TestModel_LogTailBounded(t *testing.T) {
	updates := make(chan tea.Msg, 8)
	m := NewModel(updates, nil)

	for i := 0; i < maxLogLines+50; i++ {
		m = m.appendLog("line")
	}
	assert.Len(t, m.logLines, maxLogLines)
}

func TestModel_QuitKey(t *testing.T) {
	updates := make(chan tea.Msg, 8)
	m := NewModel(updates, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
