// Package validate structurally checks a completed test-result tree. It
// surfaces every problem in a single pass rather than failing fast: the
// caller wants a complete diagnostic list. Schema violations are errors;
// suspicious-but-valid findings (count drift, slow responses, missing error
// messages on failures) are warnings and never flip IsValid.
package validate

import (
	"fmt"
	"time"

	"inspectctl/internal/results"
)

// responseTimeCeiling is a sanity bound: anything slower is almost certainly
// a measurement bug, but it is still schema-conformant, so only a warning.
const responseTimeCeiling = 5 * time.Minute

// Validator accumulates findings for one validation pass. The accumulators
// are transient per-call state and are reset at the start of every top-level
// call, so a single instance can be reused across runs.
type Validator struct {
	errors   []results.Issue
	warnings []results.Issue
}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

func (v *Validator) addError(field, format string, args ...interface{}) {
	v.errors = append(v.errors, results.Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *Validator) addWarning(field, format string, args ...interface{}) {
	v.warnings = append(v.warnings, results.Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateTestResults validates every server result and returns the combined
// findings. Accumulators are reset first, so repeated calls are independent.
func (v *Validator) ValidateTestResults(res []results.ServerTestResult) results.ValidationResult {
	v.errors = []results.Issue{}
	v.warnings = []results.Issue{}

	for i := range res {
		v.validateServerResult(fmt.Sprintf("testResults[%d]", i), &res[i])
	}

	return results.ValidationResult{
		IsValid:  len(v.errors) == 0,
		Errors:   v.errors,
		Warnings: v.warnings,
		Summary: results.ValidationSummary{
			ErrorCount:   len(v.errors),
			WarningCount: len(v.warnings),
		},
	}
}

func (v *Validator) validateServerResult(field string, r *results.ServerTestResult) {
	if r.ServerName == "" {
		v.addError(field+".serverName", "serverName is required")
	}

	switch r.Status {
	case results.ServerStatusCompleted, results.ServerStatusFailed, results.ServerStatusUnknown:
	case "":
		v.addError(field+".status", "status is required")
	default:
		v.addError(field+".status", "invalid status %q, must be one of completed, failed, unknown", r.Status)
	}

	start := v.validateTimestamp(field+".startTime", r.StartTime, true)
	end := v.validateTimestamp(field+".endTime", r.EndTime, false)
	if start != nil && end != nil && end.Before(*start) {
		v.addError(field+".endTime", "endTime %s is before startTime %s", r.EndTime, r.StartTime)
	}

	v.validateCapabilities(field+".capabilities", &r.Capabilities)

	if r.Connection != nil {
		v.validateCaseStatus(field+".connection.status", r.Connection.Status)
		v.validateTimestamp(field+".connection.timestamp", r.Connection.Timestamp, false)
	}
	if r.Elicitation != nil {
		v.validateCaseStatus(field+".elicitation.status", r.Elicitation.Status)
	}
	if r.ProgressNotifications != nil {
		v.validateCaseStatus(field+".progressNotifications.status", r.ProgressNotifications.Status)
	}
	if r.Ping != nil {
		v.validateCaseStatus(field+".ping.status", r.Ping.Status)
	}

	for i, e := range r.Errors {
		v.validateErrorEntry(fmt.Sprintf("%s.errors[%d]", field, i), e)
	}
	for i, s := range r.Screenshots {
		if s == "" {
			v.addError(fmt.Sprintf("%s.screenshots[%d]", field, i), "screenshot path must not be empty")
		}
	}
}

func (v *Validator) validateCapabilities(field string, caps *results.Capabilities) {
	v.validateCapability(field+".tools", &caps.Tools)
	v.validateCapability(field+".resources", &caps.Resources)
	v.validateCapability(field+".prompts", &caps.Prompts)
}

func (v *Validator) validateCapability(field string, cr *results.CapabilityResult) {
	if cr.Expected < 0 {
		v.addError(field+".expected", "expected must be non-negative, got %d", cr.Expected)
	}
	if cr.Actual < 0 {
		v.addError(field+".actual", "actual must be non-negative, got %d", cr.Actual)
	}

	for i := range cr.Tests {
		v.validateTest(fmt.Sprintf("%s.tests[%d]", field, i), &cr.Tests[i])
	}

	// Bookkeeping drift, not a structural violation.
	if len(cr.Tests) != cr.Actual {
		v.addWarning(field, "tests count %d does not match actual %d", len(cr.Tests), cr.Actual)
	}
}

func (v *Validator) validateTest(field string, tc *results.TestCaseResult) {
	if tc.Name == "" {
		v.addError(field+".name", "name is required")
	}

	switch tc.Status {
	case results.CaseStatusSuccess, results.CaseStatusFailed, results.CaseStatusUnknown:
	case "":
		v.addError(field+".status", "status is required")
	default:
		v.addError(field+".status", "invalid status %q, must be one of success, failed, unknown", tc.Status)
	}

	v.validateTimestamp(field+".timestamp", tc.Timestamp, true)

	if tc.ResponseTime != nil {
		if *tc.ResponseTime < 0 {
			v.addError(field+".responseTime", "responseTime must be non-negative, got %d", *tc.ResponseTime)
		} else if time.Duration(*tc.ResponseTime)*time.Millisecond > responseTimeCeiling {
			v.addWarning(field+".responseTime", "responseTime %dms exceeds the %s sanity ceiling", *tc.ResponseTime, responseTimeCeiling)
		}
	}

	if tc.Status == results.CaseStatusFailed && tc.Error == "" {
		v.addWarning(field, "failed test %q carries no error message", tc.Name)
	}

	if tc.DataExtracted != nil {
		v.validateExtractedData(field+".dataExtracted", tc.DataExtracted)
	}
}

func (v *Validator) validateCaseStatus(field string, status results.CaseStatus) {
	switch status {
	case results.CaseStatusSuccess, results.CaseStatusFailed, results.CaseStatusUnknown:
	default:
		v.addError(field, "invalid status %q, must be one of success, failed, unknown", status)
	}
}

func (v *Validator) validateErrorEntry(field string, e results.ErrorEntry) {
	switch e.Type {
	case results.ErrorTypeResources, results.ErrorTypeTools, results.ErrorTypePrompts,
		results.ErrorTypeElicitation, results.ErrorTypePing, results.ErrorTypeGeneral:
	default:
		v.addError(field+".type", "invalid error type %q", e.Type)
	}
	if e.Message == "" {
		v.addError(field+".message", "message is required")
	}
	v.validateTimestamp(field+".timestamp", e.Timestamp, false)
}

// validateTimestamp parses an RFC 3339 timestamp, recording an error on
// malformed values and a warning on values in the future. Returns the parsed
// time when available so callers can check ordering.
func (v *Validator) validateTimestamp(field, value string, required bool) *time.Time {
	if value == "" {
		if required {
			v.addError(field, "timestamp is required")
		}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		v.addError(field, "invalid timestamp %q: not RFC 3339", value)
		return nil
	}
	if parsed.After(timeNow().Add(time.Minute)) {
		v.addWarning(field, "timestamp %s is in the future", value)
	}
	return &parsed
}

// validateExtractedData checks opportunistically parsed payload blocks. The
// scrape is lossy by design, so only shape problems inside successfully
// parsed blocks are reported.
func (v *Validator) validateExtractedData(field string, data *results.ExtractedData) {
	if data.SkippedBlocks < 0 {
		v.addError(field+".skippedBlocks", "skippedBlocks must be non-negative, got %d", data.SkippedBlocks)
	}
	if data.SkippedBlocks > 0 {
		v.addWarning(field, "%d scraped blocks failed to parse as JSON and were skipped", data.SkippedBlocks)
	}
	for i, block := range data.JSONBlocks {
		v.validatePayloadBlock(fmt.Sprintf("%s.jsonBlocks[%d]", field, i), block)
	}
}

// validatePayloadBlock applies the narrow MCP-shaped checks to one parsed
// block: content entries must have string type/text fields, and an error
// field in the payload is flagged as a warning.
func (v *Validator) validatePayloadBlock(field string, block interface{}) {
	obj, ok := block.(map[string]interface{})
	if !ok {
		return
	}

	if _, hasErr := obj["error"]; hasErr {
		v.addWarning(field, "parsed payload contains an error field")
	}

	content, ok := obj["content"].([]interface{})
	if !ok {
		return
	}
	for i, item := range content {
		entry, ok := item.(map[string]interface{})
		if !ok {
			v.addError(fmt.Sprintf("%s.content[%d]", field, i), "content entry is not an object")
			continue
		}
		if typ, ok := entry["type"]; ok {
			if _, isString := typ.(string); !isString {
				v.addError(fmt.Sprintf("%s.content[%d].type", field, i), "type must be a string, got %T", typ)
			}
		}
		if text, ok := entry["text"]; ok {
			if _, isString := text.(string); !isString {
				v.addError(fmt.Sprintf("%s.content[%d].text", field, i), "text must be a string, got %T", text)
			}
		}
	}
}

// ValidateToolResponse validates a single tool invocation's scraped payload.
func (v *Validator) ValidateToolResponse(name string, data *results.ExtractedData) results.ValidationResult {
	v.errors = []results.Issue{}
	v.warnings = []results.Issue{}
	if data != nil {
		v.validateExtractedData("tool."+name, data)
	}
	return v.finish()
}

// ValidateResourceResponse validates a single resource read's scraped payload.
func (v *Validator) ValidateResourceResponse(name string, data *results.ExtractedData) results.ValidationResult {
	v.errors = []results.Issue{}
	v.warnings = []results.Issue{}
	if data != nil {
		v.validateExtractedData("resource."+name, data)
	}
	return v.finish()
}

func (v *Validator) finish() results.ValidationResult {
	return results.ValidationResult{
		IsValid:  len(v.errors) == 0,
		Errors:   v.errors,
		Warnings: v.warnings,
		Summary: results.ValidationSummary{
			ErrorCount:   len(v.errors),
			WarningCount: len(v.warnings),
		},
	}
}

// timeNow is swappable in tests.
var timeNow = time.Now
