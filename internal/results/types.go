package results

import (
	"time"
)

// ServerStatus is the overall outcome of one server's test run.
type ServerStatus string

const (
	ServerStatusCompleted ServerStatus = "completed"
	ServerStatusFailed    ServerStatus = "failed"
	ServerStatusUnknown   ServerStatus = "unknown"
)

// CaseStatus is the outcome of a single test case.
type CaseStatus string

const (
	CaseStatusSuccess CaseStatus = "success"
	CaseStatusFailed  CaseStatus = "failed"
	CaseStatusUnknown CaseStatus = "unknown"
)

// ErrorType classifies a recorded error by the phase that produced it.
type ErrorType string

const (
	ErrorTypeResources   ErrorType = "resources"
	ErrorTypeTools       ErrorType = "tools"
	ErrorTypePrompts     ErrorType = "prompts"
	ErrorTypeElicitation ErrorType = "elicitation"
	ErrorTypePing        ErrorType = "ping"
	ErrorTypeGeneral     ErrorType = "general"
)

// ExtractedData is a forensic snapshot of the Inspector UI after an interaction.
// JSONBlocks holds every <pre>/<code> block that parsed as JSON; blocks that did
// not parse are counted in SkippedBlocks rather than silently dropped.
type ExtractedData struct {
	VisibleText   string        `json:"visibleText,omitempty"`
	JSONBlocks    []interface{} `json:"jsonBlocks,omitempty"`
	SkippedBlocks int           `json:"skippedBlocks,omitempty"`
}

// TestCaseResult records the outcome of exercising one resource, tool or prompt.
type TestCaseResult struct {
	Name          string         `json:"name"`
	Status        CaseStatus     `json:"status"`
	Timestamp     string         `json:"timestamp"`
	ResponseTime  *int64         `json:"responseTime"` // milliseconds, nil when not measured
	Error         string         `json:"error,omitempty"`
	DataExtracted *ExtractedData `json:"dataExtracted,omitempty"`
	Note          string         `json:"note,omitempty"`
}

// CapabilityResult aggregates the test cases for one capability category.
// Expected comes from the test plan; Actual counts the cases that actually ran.
type CapabilityResult struct {
	Expected int              `json:"expected"`
	Actual   int              `json:"actual"`
	Tests    []TestCaseResult `json:"tests"`
}

// Capabilities holds one CapabilityResult per MCP primitive category.
type Capabilities struct {
	Tools     CapabilityResult `json:"tools"`
	Resources CapabilityResult `json:"resources"`
	Prompts   CapabilityResult `json:"prompts"`
}

// ConnectionResult records whether the Inspector session to the server came up.
type ConnectionResult struct {
	Status    CaseStatus `json:"status"`
	Timestamp string     `json:"timestamp"`
	Error     string     `json:"error,omitempty"`
}

// PhaseResult is a lightweight outcome for phases without per-case breakdowns
// (elicitation, progress notifications, ping).
type PhaseResult struct {
	Status    CaseStatus `json:"status"`
	Timestamp string     `json:"timestamp,omitempty"`
	Detail    string     `json:"detail,omitempty"`
}

// ErrorEntry is one recorded failure; failures are recorded, not fatal, so a
// single server result can carry several.
type ErrorEntry struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Timestamp string    `json:"timestamp"`
}

// ServerTestResult is the complete record of one server's test run. It is
// created at the start of TestServer, mutated in place while the phases run,
// and never touched again after being appended to the run's result list.
type ServerTestResult struct {
	ServerName            string            `json:"serverName"`
	ServerPath            string            `json:"serverPath"`
	StartTime             string            `json:"startTime"`
	EndTime               string            `json:"endTime,omitempty"`
	Status                ServerStatus      `json:"status"`
	Connection            *ConnectionResult `json:"connection,omitempty"`
	Capabilities          Capabilities      `json:"capabilities"`
	Elicitation           *PhaseResult      `json:"elicitation,omitempty"`
	ProgressNotifications *PhaseResult      `json:"progressNotifications,omitempty"`
	Ping                  *PhaseResult      `json:"ping,omitempty"`
	Errors                []ErrorEntry      `json:"errors"`
	Screenshots           []string          `json:"screenshots"`
}

// NewServerTestResult creates the fresh result shell for one server run.
func NewServerTestResult(name, path string) *ServerTestResult {
	return &ServerTestResult{
		ServerName:  name,
		ServerPath:  path,
		StartTime:   Now(),
		Status:      ServerStatusUnknown,
		Errors:      []ErrorEntry{},
		Screenshots: []string{},
	}
}

// RecordError appends a classified error entry.
func (r *ServerTestResult) RecordError(errType ErrorType, message string) {
	r.Errors = append(r.Errors, ErrorEntry{
		Type:      errType,
		Message:   message,
		Timestamp: Now(),
	})
}

// Summary aggregates outcomes across every tested server.
type Summary struct {
	TotalServers      int `json:"totalServers"`
	SuccessfulServers int `json:"successfulServers"`
	TotalTests        int `json:"totalTests"`
	PassedTests       int `json:"passedTests"`
	FailedTests       int `json:"failedTests"`
	SuccessRate       int `json:"successRate"` // rounded percentage, 0 when no tests ran
}

// Report is the persisted artifact of one full harness run.
type Report struct {
	RunID       string             `json:"runId"`
	Timestamp   string             `json:"timestamp"`
	Environment map[string]string  `json:"environment"`
	Summary     Summary            `json:"summary"`
	Results     []ServerTestResult `json:"testResults"`
}

// Issue is one validator finding.
type Issue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationSummary carries the finding counts for quick inspection.
type ValidationSummary struct {
	ErrorCount   int `json:"errorCount"`
	WarningCount int `json:"warningCount"`
}

// ValidationResult is the outcome of structurally validating a result tree.
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []Issue           `json:"errors"`
	Warnings []Issue           `json:"warnings"`
	Summary  ValidationSummary `json:"summary"`
}

// timeNow is swappable in tests.
var timeNow = time.Now

// Now returns the current time as an RFC 3339 timestamp, the format used for
// every timestamp in the result tree.
func Now() string {
	return timeNow().UTC().Format(time.RFC3339)
}
