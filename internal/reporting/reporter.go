package reporting

import (
	"fmt"
	"time"

	"inspectctl/internal/results"
	"inspectctl/pkg/logging"
)

// Phase identifies the harness phase an update belongs to.
type Phase string

const (
	PhaseStartup     Phase = "startup"
	PhaseConnect     Phase = "connect"
	PhaseResources   Phase = "resources"
	PhaseTools       Phase = "tools"
	PhasePrompts     Phase = "prompts"
	PhaseElicitation Phase = "elicitation"
	PhaseProgress    Phase = "progress"
	PhasePing        Phase = "ping"
	PhaseReport      Phase = "report"
	PhaseShutdown    Phase = "shutdown"
)

// String makes Phase satisfy the fmt.Stringer interface.
func (p Phase) String() string {
	return string(p)
}

// RunUpdate carries status updates from the runner to whichever reporter is
// attached (console or TUI).
type RunUpdate struct {
	Timestamp time.Time
	Phase     Phase
	Server    string // empty for run-level updates
	Level     logging.LogLevel
	Message   string
	Err       error
	// Done marks the final update of a run; the TUI uses it to stop its
	// spinner and show the report path.
	Done       bool
	ReportPath string
}

// String provides a debugging representation of the update.
func (u RunUpdate) String() string {
	return fmt.Sprintf("Update(%s, phase: %s, server: %s, msg: %q, err: %v)",
		u.Timestamp.Format(time.RFC3339), u.Phase, u.Server, u.Message, u.Err)
}

// RunReporter receives runner updates. Implementations must be safe for
// sequential use from the runner goroutine; the harness never reports
// concurrently.
type RunReporter interface {
	Report(update RunUpdate)
}

// ReportWriter persists a completed run report and returns the artifact path.
// This is the generateReport(data) -> path contract.
type ReportWriter interface {
	Write(report results.Report) (string, error)
}
