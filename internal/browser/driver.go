// Package browser drives the Inspector web UI. The Driver interface is the
// narrow seam between test orchestration and the Inspector's rendered DOM;
// Manager is the Playwright-backed implementation. UI-version churn should
// stay confined to this package.
package browser

import (
	"context"
	"errors"

	"inspectctl/internal/results"
)

// ErrConnectRetriesExhausted is returned when polling for connection evidence
// ran out of attempts. Distinct from selector-timeout errors so the runner
// can classify the failure as a connection error.
var ErrConnectRetriesExhausted = errors.New("browser: connection retries exhausted")

// Driver is the UI-automation contract the runner depends on. Implementations
// translate test intents into Inspector interactions and capture forensic
// evidence along the way.
type Driver interface {
	// Initialize launches the browser session. Fatal on failure.
	Initialize() error
	// NavigateToInspector loads the Inspector URL and waits for its landmark
	// element. Failure is fatal to the whole server test.
	NavigateToInspector(ctx context.Context, url string) error
	// ConnectToServer fills the connect form for "node <path>" and polls for
	// DOM evidence of a live session.
	ConnectToServer(ctx context.Context, path string) error
	// Disconnect ends the current session so the next server starts clean.
	Disconnect(ctx context.Context) error
	// NavigateToTab switches to a capability tab.
	NavigateToTab(ctx context.Context, name string) error
	// ClickResource reads one resource; the boolean reports the heuristic
	// outcome classification.
	ClickResource(ctx context.Context, name string) (bool, error)
	// ExecuteTool runs one tool with the given arguments.
	ExecuteTool(ctx context.Context, name string, args map[string]string) (bool, error)
	// ExecutePrompt retrieves one prompt with the given arguments.
	ExecutePrompt(ctx context.Context, name string, args map[string]string) (bool, error)
	// HandleElicitation waits for an elicitation form, fills it and submits.
	HandleElicitation(ctx context.Context, formData map[string]string) error
	// Ping clicks the ping control and classifies the response.
	Ping(ctx context.Context) (bool, error)
	// CaptureScreenshot is best-effort: it returns the written path, or an
	// empty path and logs on failure, and never aborts a test.
	CaptureScreenshot(name string) string
	// ExtractCurrentData scrapes visible text and any JSON-parsable blocks.
	ExtractCurrentData() (*results.ExtractedData, error)
	// Cleanup closes page, context and browser; each close is independently
	// guarded.
	Cleanup() error
}
