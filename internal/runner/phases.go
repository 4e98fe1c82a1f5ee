package runner

import (
	"context"
	"strings"
	"time"

	"inspectctl/internal/config"
	"inspectctl/internal/reporting"
	"inspectctl/internal/results"
	"inspectctl/pkg/logging"
)

// progressMarkers are the substrings taken as indirect evidence that a
// progress notification surfaced in the Inspector. The UI does not expose
// progress events as first-class elements, so this is a heuristic detector,
// not a protocol-level observation.
var progressMarkers = []string{
	"notifications/progress",
	"progressToken",
	"Progress:",
}

func (r *Runner) testResources(ctx context.Context, cfg config.ServerTestConfig, result *results.ServerTestResult) error {
	cases := cfg.TestCases.Resources
	result.Capabilities.Resources.Expected = len(cases)
	if len(cases) == 0 {
		return nil
	}

	r.report(reporting.RunUpdate{Phase: reporting.PhaseResources, Server: cfg.Name,
		Message: "Testing resources"})

	if err := r.driver.NavigateToTab(ctx, "Resources"); err != nil {
		return err
	}

	for _, c := range cases {
		tc := r.runCase(c.Name, func() (bool, error) {
			return r.driver.ClickResource(ctx, c.Name)
		})
		if tc.Status == results.CaseStatusFailed {
			r.recordFailureShot(result, c.Name)
		}
		result.Capabilities.Resources.Tests = append(result.Capabilities.Resources.Tests, tc)
		result.Capabilities.Resources.Actual++
	}
	return nil
}

func (r *Runner) testTools(ctx context.Context, cfg config.ServerTestConfig, result *results.ServerTestResult) error {
	cases := cfg.TestCases.Tools
	result.Capabilities.Tools.Expected = len(cases)
	if len(cases) == 0 {
		return nil
	}

	r.report(reporting.RunUpdate{Phase: reporting.PhaseTools, Server: cfg.Name,
		Message: "Testing tools"})

	if err := r.driver.NavigateToTab(ctx, "Tools"); err != nil {
		return err
	}

	for _, c := range cases {
		tc := r.runCase(c.Name, func() (bool, error) {
			ok, err := r.driver.ExecuteTool(ctx, c.Name, c.Args)
			if err != nil {
				return ok, err
			}
			if c.TriggersElicitation {
				r.handleElicitation(ctx, cfg.Name, c, result)
			}
			return ok, nil
		})
		if c.ExpectedResponse != "" && tc.Status == results.CaseStatusSuccess {
			r.checkExpectedResponse(&tc, c.ExpectedResponse)
		}
		if tc.Status == results.CaseStatusFailed {
			r.recordFailureShot(result, c.Name)
		}
		result.Capabilities.Tools.Tests = append(result.Capabilities.Tools.Tests, tc)
		result.Capabilities.Tools.Actual++
	}
	return nil
}

func (r *Runner) testPrompts(ctx context.Context, cfg config.ServerTestConfig, result *results.ServerTestResult) error {
	cases := cfg.TestCases.Prompts
	result.Capabilities.Prompts.Expected = len(cases)
	if len(cases) == 0 {
		return nil
	}

	r.report(reporting.RunUpdate{Phase: reporting.PhasePrompts, Server: cfg.Name,
		Message: "Testing prompts"})

	if err := r.driver.NavigateToTab(ctx, "Prompts"); err != nil {
		return err
	}

	for _, c := range cases {
		tc := r.runCase(c.Name, func() (bool, error) {
			return r.driver.ExecutePrompt(ctx, c.Name, c.Args)
		})
		if c.ExpectedResponse != "" && tc.Status == results.CaseStatusSuccess {
			r.checkExpectedResponse(&tc, c.ExpectedResponse)
		}
		if tc.Status == results.CaseStatusFailed {
			r.recordFailureShot(result, c.Name)
		}
		result.Capabilities.Prompts.Tests = append(result.Capabilities.Prompts.Tests, tc)
		result.Capabilities.Prompts.Actual++
	}
	return nil
}

// runCase executes one interaction, measures its response time, scrapes the
// resulting page state and classifies the outcome. Interaction errors become
// that case's failure; they do not abort the capability phase.
func (r *Runner) runCase(name string, interact func() (bool, error)) results.TestCaseResult {
	started := time.Now()
	ok, err := interact()
	elapsed := time.Since(started).Milliseconds()

	tc := results.TestCaseResult{
		Name:         name,
		Timestamp:    results.Now(),
		ResponseTime: &elapsed,
	}

	if data, derr := r.driver.ExtractCurrentData(); derr == nil {
		tc.DataExtracted = data
	} else {
		logging.Debug("Runner", "Data extraction after %s failed: %v", name, derr)
	}

	switch {
	case err != nil:
		tc.Status = results.CaseStatusFailed
		tc.Error = err.Error()
	case ok:
		tc.Status = results.CaseStatusSuccess
	default:
		tc.Status = results.CaseStatusFailed
		tc.Error = "error marker visible after interaction"
	}
	return tc
}

// checkExpectedResponse downgrades a success to failed when the configured
// response fragment is absent from the scraped text.
func (r *Runner) checkExpectedResponse(tc *results.TestCaseResult, expected string) {
	if tc.DataExtracted == nil {
		tc.Note = "expected response configured but no data extracted"
		return
	}
	if !strings.Contains(tc.DataExtracted.VisibleText, expected) {
		tc.Status = results.CaseStatusFailed
		tc.Error = "expected response fragment not found: " + expected
	}
}

func (r *Runner) handleElicitation(ctx context.Context, server string, c config.ToolCase, result *results.ServerTestResult) {
	r.report(reporting.RunUpdate{Phase: reporting.PhaseElicitation, Server: server,
		Message: "Handling elicitation for " + c.Name})

	if err := r.driver.HandleElicitation(ctx, c.ElicitationInput); err != nil {
		result.Elicitation = &results.PhaseResult{
			Status:    results.CaseStatusFailed,
			Timestamp: results.Now(),
			Detail:    err.Error(),
		}
		result.RecordError(results.ErrorTypeElicitation, err.Error())
		return
	}
	result.Elicitation = &results.PhaseResult{
		Status:    results.CaseStatusSuccess,
		Timestamp: results.Now(),
		Detail:    "elicitation form submitted for " + c.Name,
	}
}

// checkProgressNotifications is non-interactive: it scans the scraped text
// already collected during tool testing for a progress marker and annotates
// the result. Only meaningful when the plan flags a tool as progress-capable.
func (r *Runner) checkProgressNotifications(cfg config.ServerTestConfig, result *results.ServerTestResult) {
	expectsProgress := false
	for _, c := range cfg.TestCases.Tools {
		if c.HasProgressNotifications {
			expectsProgress = true
			break
		}
	}

	found := false
	for _, tc := range result.Capabilities.Tools.Tests {
		if tc.DataExtracted == nil {
			continue
		}
		for _, marker := range progressMarkers {
			if strings.Contains(tc.DataExtracted.VisibleText, marker) {
				found = true
				break
			}
		}
		if found {
			break
		}
	}

	switch {
	case found:
		result.ProgressNotifications = &results.PhaseResult{
			Status:    results.CaseStatusSuccess,
			Timestamp: results.Now(),
			Detail:    "progress marker observed in scraped output",
		}
	case expectsProgress:
		result.ProgressNotifications = &results.PhaseResult{
			Status:    results.CaseStatusFailed,
			Timestamp: results.Now(),
			Detail:    "no progress marker observed despite progress-capable tools",
		}
		result.RecordError(results.ErrorTypeGeneral, "expected progress notifications were not observed")
	default:
		result.ProgressNotifications = &results.PhaseResult{
			Status:    results.CaseStatusUnknown,
			Timestamp: results.Now(),
			Detail:    "no progress-capable tools configured",
		}
	}
}

// testPing exercises the liveness check. Absence of both a success marker
// and response content is a ping failure.
func (r *Runner) testPing(ctx context.Context, server string, result *results.ServerTestResult) {
	r.report(reporting.RunUpdate{Phase: reporting.PhasePing, Server: server, Message: "Testing ping"})

	ok, err := r.driver.Ping(ctx)
	switch {
	case err != nil:
		result.Ping = &results.PhaseResult{
			Status:    results.CaseStatusFailed,
			Timestamp: results.Now(),
			Detail:    err.Error(),
		}
		result.RecordError(results.ErrorTypePing, err.Error())
	case ok:
		result.Ping = &results.PhaseResult{
			Status:    results.CaseStatusSuccess,
			Timestamp: results.Now(),
		}
	default:
		result.Ping = &results.PhaseResult{
			Status:    results.CaseStatusFailed,
			Timestamp: results.Now(),
			Detail:    "no ping response observed",
		}
		result.RecordError(results.ErrorTypePing, "no ping response observed")
	}
}
