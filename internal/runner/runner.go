// Package runner owns the end-to-end lifecycle of one harness invocation:
// the Inspector subprocess, the browser session, the per-server test phase
// machine and the aggregated report. Servers are tested strictly
// sequentially; the shared Inspector session cannot multiplex connections.
package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"inspectctl/internal/browser"
	"inspectctl/internal/config"
	"inspectctl/internal/inspector"
	"inspectctl/internal/reporting"
	"inspectctl/internal/results"
	"inspectctl/internal/validate"
	"inspectctl/pkg/logging"
)

// ErrConnection marks failures that prevent any capability from being tested
// on a server. The server run is abandoned but the harness continues.
var ErrConnection = errors.New("runner: connection failed")

// ErrInfrastructure marks failures fatal to the whole run (browser launch,
// Inspector spawn).
var ErrInfrastructure = errors.New("runner: infrastructure failure")

// InspectorProcess is the slice of the Inspector handle the runner needs.
type InspectorProcess interface {
	URL() string
	Stop()
}

// startInspectorProcess is swappable in tests.
var startInspectorProcess = func(command []string, workDir string, timeout time.Duration) (InspectorProcess, error) {
	return inspector.Start(command, workDir, timeout)
}

// Runner sequences capability tests across all configured servers.
type Runner struct {
	settings  config.Settings
	driver    browser.Driver
	validator *validate.Validator
	reporter  reporting.RunReporter
	writer    reporting.ReportWriter

	inspector   InspectorProcess
	runID       string
	testResults []results.ServerTestResult
	initialized bool
}

// New creates a Runner. Initialize must be called before StartInspector or
// TestServer.
func New(settings config.Settings, driver browser.Driver, reporter reporting.RunReporter, writer reporting.ReportWriter) *Runner {
	return &Runner{
		settings:  settings,
		driver:    driver,
		validator: validate.New(),
		reporter:  reporter,
		writer:    writer,
		runID:     uuid.NewString(),
	}
}

// RunID returns the identifier stamped on this run's report.
func (r *Runner) RunID() string {
	return r.runID
}

// Results returns the accumulated per-server results.
func (r *Runner) Results() []results.ServerTestResult {
	return r.testResults
}

func (r *Runner) report(update reporting.RunUpdate) {
	if r.reporter != nil {
		r.reporter.Report(update)
	}
}

// Initialize brings up the browser session. Must be called exactly once
// before any other method.
func (r *Runner) Initialize() error {
	if r.initialized {
		return nil
	}
	r.report(reporting.RunUpdate{Phase: reporting.PhaseStartup, Message: "Initializing browser session"})
	if err := r.driver.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrInfrastructure, err)
	}
	r.initialized = true
	return nil
}

// StartInspector spawns the Inspector subprocess and waits for its serving
// URL. Timing out here is fatal to the run: nothing can be tested without
// the Inspector.
func (r *Runner) StartInspector() error {
	if !r.initialized {
		return fmt.Errorf("%w: Initialize must be called first", ErrInfrastructure)
	}
	r.report(reporting.RunUpdate{Phase: reporting.PhaseStartup, Message: "Starting Inspector"})

	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}
	proc, err := startInspectorProcess(r.settings.InspectorCommand, workDir, r.settings.StartupTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInfrastructure, err)
	}
	r.inspector = proc
	r.report(reporting.RunUpdate{Phase: reporting.PhaseStartup, Message: "Inspector serving at " + proc.URL()})
	return nil
}

// TestServer runs the full phase machine for one server: connect, the three
// capability phases (each isolated), the progress-notification scan, ping,
// then disconnect. Capability failures are recorded, never fatal; only a
// missing session abandons the server. The finished result is appended to
// the run's result list and returned.
func (r *Runner) TestServer(ctx context.Context, cfg config.ServerTestConfig) (*results.ServerTestResult, error) {
	result := results.NewServerTestResult(cfg.Name, cfg.Path)
	defer func() {
		r.finalize(result)
		r.testResults = append(r.testResults, *result)
	}()

	r.report(reporting.RunUpdate{Phase: reporting.PhaseConnect, Server: cfg.Name, Message: "Testing server " + cfg.Name})

	if err := r.connect(ctx, cfg, result); err != nil {
		// No session, nothing else can run. Still try to leave the UI clean.
		r.disconnect(ctx, cfg.Name)
		return result, err
	}

	// Each capability phase is isolated so one failure cannot shadow the
	// others.
	if cfg.HasCapability(config.CapabilityResources) {
		r.runPhase(ctx, cfg, result, results.ErrorTypeResources, r.testResources)
	}
	if cfg.HasCapability(config.CapabilityTools) {
		r.runPhase(ctx, cfg, result, results.ErrorTypeTools, r.testTools)
	}
	if cfg.HasCapability(config.CapabilityPrompts) {
		r.runPhase(ctx, cfg, result, results.ErrorTypePrompts, r.testPrompts)
	}

	r.checkProgressNotifications(cfg, result)
	r.testPing(ctx, cfg.Name, result)
	r.disconnect(ctx, cfg.Name)

	return result, nil
}

type phaseFunc func(ctx context.Context, cfg config.ServerTestConfig, result *results.ServerTestResult) error

// runPhase executes one capability phase, converting a thrown error into a
// recorded ErrorEntry instead of aborting sibling phases.
func (r *Runner) runPhase(ctx context.Context, cfg config.ServerTestConfig, result *results.ServerTestResult, errType results.ErrorType, fn phaseFunc) {
	if err := fn(ctx, cfg, result); err != nil {
		logging.Error("Runner", err, "%s phase failed for %s", errType, cfg.Name)
		result.RecordError(errType, err.Error())
	}
}

func (r *Runner) connect(ctx context.Context, cfg config.ServerTestConfig, result *results.ServerTestResult) error {
	if err := r.driver.NavigateToInspector(ctx, r.inspector.URL()); err != nil {
		result.Connection = &results.ConnectionResult{
			Status:    results.CaseStatusFailed,
			Timestamp: results.Now(),
			Error:     err.Error(),
		}
		result.RecordError(results.ErrorTypeGeneral, err.Error())
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if err := r.driver.ConnectToServer(ctx, cfg.Path); err != nil {
		result.Connection = &results.ConnectionResult{
			Status:    results.CaseStatusFailed,
			Timestamp: results.Now(),
			Error:     err.Error(),
		}
		result.RecordError(results.ErrorTypeGeneral, err.Error())
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	result.Connection = &results.ConnectionResult{
		Status:    results.CaseStatusSuccess,
		Timestamp: results.Now(),
	}
	return nil
}

// recordFailureShot captures a screenshot after a failed case, when
// configured, and attaches its path to the server result.
func (r *Runner) recordFailureShot(result *results.ServerTestResult, name string) {
	if !r.settings.ScreenshotOnFailure {
		return
	}
	if shot := r.driver.CaptureScreenshot("failed-" + name); shot != "" {
		result.Screenshots = append(result.Screenshots, shot)
	}
}

func (r *Runner) disconnect(ctx context.Context, server string) {
	if err := r.driver.Disconnect(ctx); err != nil {
		// Best-effort; the next server's connect will surface a dirty UI.
		logging.Warn("Runner", "Disconnect after %s failed: %v", server, err)
	}
}

// finalize stamps the end time and computes the overall status: any failed
// test case, a failed ping, or any recorded error flips the server to
// failed.
func (r *Runner) finalize(result *results.ServerTestResult) {
	result.EndTime = results.Now()

	failed := len(result.Errors) > 0
	if result.Ping != nil && result.Ping.Status == results.CaseStatusFailed {
		failed = true
	}
	for _, cr := range []results.CapabilityResult{
		result.Capabilities.Tools,
		result.Capabilities.Resources,
		result.Capabilities.Prompts,
	} {
		for _, tc := range cr.Tests {
			if tc.Status == results.CaseStatusFailed {
				failed = true
			}
		}
	}
	if result.Connection != nil && result.Connection.Status == results.CaseStatusFailed {
		failed = true
	}

	if failed {
		result.Status = results.ServerStatusFailed
	} else {
		result.Status = results.ServerStatusCompleted
	}
}

// GenerateSummary aggregates outcomes across all tested servers. The ping
// phase counts as one test per server that ran it. A run with zero tests has
// a success rate of 0, never a division error.
func (r *Runner) GenerateSummary() results.Summary {
	summary := results.Summary{TotalServers: len(r.testResults)}

	for _, server := range r.testResults {
		if server.Status == results.ServerStatusCompleted && len(server.Errors) == 0 {
			summary.SuccessfulServers++
		}
		for _, cr := range []results.CapabilityResult{
			server.Capabilities.Tools,
			server.Capabilities.Resources,
			server.Capabilities.Prompts,
		} {
			for _, tc := range cr.Tests {
				summary.TotalTests++
				if tc.Status == results.CaseStatusSuccess {
					summary.PassedTests++
				} else if tc.Status == results.CaseStatusFailed {
					summary.FailedTests++
				}
			}
		}
		if server.Ping != nil {
			summary.TotalTests++
			switch server.Ping.Status {
			case results.CaseStatusSuccess:
				summary.PassedTests++
			case results.CaseStatusFailed:
				summary.FailedTests++
			}
		}
	}

	if summary.TotalTests > 0 {
		summary.SuccessRate = int(math.Round(float64(summary.PassedTests) / float64(summary.TotalTests) * 100))
	}
	return summary
}

// GenerateReport bundles summary, results, timestamp and environment options
// and delegates persistence to the report writer. Returns the artifact path.
func (r *Runner) GenerateReport() (string, error) {
	r.report(reporting.RunUpdate{Phase: reporting.PhaseReport, Message: "Writing report"})

	report := results.Report{
		RunID:     r.runID,
		Timestamp: results.Now(),
		Environment: map[string]string{
			"headless":      fmt.Sprintf("%t", r.settings.Headless),
			"timeout":       r.settings.Timeout.String(),
			"retries":       fmt.Sprintf("%d", r.settings.Retries),
			"retryInterval": r.settings.RetryInterval.String(),
			"screenshotDir": r.settings.ScreenshotDir,
		},
		Summary: r.GenerateSummary(),
		Results: r.testResults,
	}

	path, err := r.writer.Write(report)
	if err != nil {
		return "", fmt.Errorf("runner: persisting report: %w", err)
	}
	return path, nil
}

// Validate runs the structural validator over the accumulated results.
func (r *Runner) Validate() results.ValidationResult {
	return r.validator.ValidateTestResults(r.testResults)
}

// Cleanup tears down the browser session and the Inspector subprocess. Each
// step is independently guarded and best-effort.
func (r *Runner) Cleanup() {
	r.report(reporting.RunUpdate{Phase: reporting.PhaseShutdown, Message: "Cleaning up"})
	if r.driver != nil {
		if err := r.driver.Cleanup(); err != nil {
			logging.Warn("Runner", "Browser cleanup failed: %v", err)
		}
	}
	if r.inspector != nil {
		r.inspector.Stop()
	}
}

// Run executes the complete harness flow: initialize, start the Inspector,
// test every server in order, write the report. Cleanup always runs.
func (r *Runner) Run(ctx context.Context, servers []config.ServerTestConfig) (string, error) {
	defer r.Cleanup()

	if err := r.Initialize(); err != nil {
		return "", err
	}
	if err := r.StartInspector(); err != nil {
		return "", err
	}

	for _, server := range servers {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if _, err := r.TestServer(ctx, server); err != nil {
			// Connection failures are recorded in the result; keep going.
			logging.Warn("Runner", "Server %s abandoned: %v", server.Name, err)
		}
	}

	path, err := r.GenerateReport()
	if err != nil {
		return "", err
	}
	r.report(reporting.RunUpdate{
		Phase:      reporting.PhaseReport,
		Message:    "Report written to " + path,
		Done:       true,
		ReportPath: path,
	})
	return path, nil
}
