package reporting

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"inspectctl/pkg/logging"
)

// RunUpdateMsg is the tea.Msg wrapping a RunUpdate for the TUI.
type RunUpdateMsg struct {
	Update RunUpdate
}

var _ tea.Msg = RunUpdateMsg{}

// TUIReporter forwards runner updates to the TUI over a message channel.
type TUIReporter struct {
	updateChan chan<- tea.Msg
}

// NewTUIReporter creates a TUIReporter sending to the provided channel.
func NewTUIReporter(updateChan chan<- tea.Msg) *TUIReporter {
	if updateChan == nil {
		logging.Error("TUIReporter", nil, "NewTUIReporter called with nil channel. Using a drained dummy.")
		dummy := make(chan tea.Msg)
		go func() {
			for range dummy {
			}
		}()
		return &TUIReporter{updateChan: dummy}
	}
	return &TUIReporter{updateChan: updateChan}
}

// Report sends the update without blocking; when the channel is full the
// update is dropped, logging only run-terminating ones.
func (t *TUIReporter) Report(update RunUpdate) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	select {
	case t.updateChan <- RunUpdateMsg{Update: update}:
	default:
		if update.Err != nil || update.Done {
			logging.Warn("TUIReporter", "TUI channel full, dropping update for phase %s", update.Phase)
		}
	}
}
