package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"inspectctl/internal/poll"
	"inspectctl/internal/results"
	"inspectctl/pkg/logging"
)

// Inspector UI selector contract. These couple the harness to the Inspector
// release in use and must be revalidated against new Inspector versions.
const (
	selCommandInput   = "#command-input"
	selArgumentsInput = "#arguments-input"
	selConnectButton  = `button:has-text("Connect")`
	selDisconnectBtn  = `button:has-text("Disconnect")`
	selCapabilityTabs = `button[role="tab"]`
	selHistoryPane    = `pre, code`
	selSuccessMarker  = `text=/Success|success/`
	selErrorMarker    = `[class*="error"], text=/Error:|Request failed/`
	selElicitationBox = `div:has-text("Elicitation Request") form, [data-testid="elicitation-form"]`
	selPingButton     = `button:has-text("Ping")`
)

// settleDelay is applied after UI actions that expose no "done" signal, such
// as tab switches.
const settleDelay = 750 * time.Millisecond

// Options configures a Manager.
type Options struct {
	Headless            bool
	Timeout             time.Duration // default selector wait, propagated to the page
	Retries             int           // max attempts for connection polling
	RetryInterval       time.Duration
	ScreenshotOnFailure bool
	ScreenshotDir       string
	VideoDir            string // empty disables recording
}

// Manager drives one browser session against the Inspector. It owns exactly
// one page for its lifetime; the runner is its only caller.
type Manager struct {
	opts    Options
	pw      *playwright.Playwright
	browser playwright.Browser
	browctx playwright.BrowserContext
	page    playwright.Page
	namer   *screenshotNamer
}

// NewManager creates a Manager. Initialize must be called before any
// interaction method.
func NewManager(opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 10
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	return &Manager{
		opts:  opts,
		namer: newScreenshotNamer(),
	}
}

// Initialize launches the browser and a single page scoped to the manager's
// lifetime, installs console and page-error listeners, and creates the
// screenshot directory. Propagates launch failures: without a browser there
// is nothing to test.
func (m *Manager) Initialize() error {
	if err := os.MkdirAll(m.opts.ScreenshotDir, 0755); err != nil {
		return fmt.Errorf("browser: creating screenshot dir %s: %w", m.opts.ScreenshotDir, err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("browser: starting playwright: %w", err)
	}
	m.pw = pw

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.opts.Headless),
	})
	if err != nil {
		return fmt.Errorf("browser: launching chromium: %w", err)
	}
	m.browser = browser

	ctxOpts := playwright.BrowserNewContextOptions{}
	if m.opts.VideoDir != "" {
		ctxOpts.RecordVideo = &playwright.RecordVideo{Dir: m.opts.VideoDir}
	}
	browctx, err := browser.NewContext(ctxOpts)
	if err != nil {
		return fmt.Errorf("browser: creating context: %w", err)
	}
	m.browctx = browctx

	page, err := browctx.NewPage()
	if err != nil {
		return fmt.Errorf("browser: opening page: %w", err)
	}
	m.page = page
	page.SetDefaultTimeout(float64(m.opts.Timeout.Milliseconds()))

	// Browser-side noise goes to the test log, never into the report.
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		logging.Debug("Browser", "[console:%s] %s", msg.Type(), msg.Text())
	})
	page.OnPageError(func(err error) {
		logging.Warn("Browser", "page error: %v", err)
	})

	logging.Info("Browser", "Browser session ready (headless: %t)", m.opts.Headless)
	return nil
}

// NavigateToInspector loads the Inspector URL and waits for the connect form
// landmark. Screenshots both outcomes; failure is fatal for the server test.
func (m *Manager) NavigateToInspector(ctx context.Context, url string) error {
	logging.Info("Browser", "Navigating to Inspector at %s", url)
	if _, err := m.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		m.CaptureScreenshot("inspector-load-failed")
		return fmt.Errorf("browser: loading Inspector at %s: %w", url, err)
	}

	if err := m.page.Locator(selCommandInput).WaitFor(); err != nil {
		m.CaptureScreenshot("inspector-landmark-missing")
		return fmt.Errorf("browser: Inspector landmark %s never appeared: %w", selCommandInput, err)
	}

	m.CaptureScreenshot("inspector-loaded")
	return nil
}

// ConnectToServer fills the connect form with "node <path>" and polls for UI
// evidence of a live session. The Inspector's connect latency is variable and
// unobservable except through the DOM, so a single state transition is never
// trusted; exhausting the attempt budget raises ErrConnectRetriesExhausted.
func (m *Manager) ConnectToServer(ctx context.Context, path string) error {
	logging.Info("Browser", "Connecting to server: %s", path)

	if err := m.page.Locator(selCommandInput).Fill("node"); err != nil {
		return fmt.Errorf("browser: filling command input: %w", err)
	}
	if err := m.page.Locator(selArgumentsInput).Fill(path); err != nil {
		return fmt.Errorf("browser: filling arguments input: %w", err)
	}
	if err := m.page.Locator(selConnectButton).First().Click(); err != nil {
		m.failureShot("connect-click-failed")
		return fmt.Errorf("browser: clicking connect: %w", err)
	}

	err := poll.Until(ctx, m.opts.RetryInterval, m.opts.Retries, func(ctx context.Context) (bool, error) {
		return m.sessionVisible()
	})
	if err != nil {
		m.failureShot("connect-failed")
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %s: %v", ErrConnectRetriesExhausted, path, err)
	}

	m.CaptureScreenshot("connected")
	logging.Info("Browser", "Session established for %s", path)
	return nil
}

// sessionVisible checks for either a Disconnect control or capability tab
// controls, both of which only render with a live session.
func (m *Manager) sessionVisible() (bool, error) {
	visible, err := m.page.Locator(selDisconnectBtn).First().IsVisible()
	if err == nil && visible {
		return true, nil
	}
	count, cerr := m.page.Locator(selCapabilityTabs).Count()
	if cerr == nil && count > 0 {
		return true, nil
	}
	if err == nil {
		err = cerr
	}
	return false, err
}

// Disconnect ends the current session. A missing Disconnect control means
// there is no session to end, which is not an error.
func (m *Manager) Disconnect(ctx context.Context) error {
	disconnect := m.page.Locator(selDisconnectBtn).First()
	visible, err := disconnect.IsVisible()
	if err != nil || !visible {
		logging.Debug("Browser", "No active session to disconnect")
		return nil
	}
	if err := disconnect.Click(); err != nil {
		return fmt.Errorf("browser: clicking disconnect: %w", err)
	}
	time.Sleep(settleDelay)
	return nil
}

// NavigateToTab clicks a capability tab and waits a fixed settle delay; tab
// switches have no explicit "loaded" signal.
func (m *Manager) NavigateToTab(ctx context.Context, name string) error {
	m.CaptureScreenshot("before-tab-" + name)
	tab := m.page.Locator(fmt.Sprintf(`button[role="tab"]:has-text(%q)`, name)).First()
	visible, _ := tab.IsVisible()
	if !visible {
		tab = m.page.Locator(fmt.Sprintf(`button:has-text(%q)`, name)).First()
	}
	if err := tab.Click(); err != nil {
		m.failureShot("tab-click-failed-" + name)
		return fmt.Errorf("browser: switching to %s tab: %w", name, err)
	}
	time.Sleep(settleDelay)
	m.CaptureScreenshot("after-tab-" + name)
	return nil
}

// ensureListPopulated clicks the "List X" control only when the capability
// list is not already rendered, avoiding redundant round-trips.
func (m *Manager) ensureListPopulated(listButton, anyItem string) error {
	if anyItem != "" {
		visible, err := m.itemLocator(anyItem).IsVisible()
		if err == nil && visible {
			return nil
		}
	}
	button := m.page.Locator(fmt.Sprintf(`button:has-text(%q)`, listButton)).First()
	if err := button.Click(); err != nil {
		return fmt.Errorf("browser: clicking %q: %w", listButton, err)
	}
	time.Sleep(settleDelay)
	return nil
}

// itemLocator finds a named capability item by exact text with a
// contains-text fallback, since the Inspector sometimes decorates names.
func (m *Manager) itemLocator(name string) playwright.Locator {
	exact := m.page.GetByText(name, playwright.PageGetByTextOptions{Exact: playwright.Bool(true)}).First()
	if count, err := exact.Count(); err == nil && count > 0 {
		return exact
	}
	return m.page.GetByText(name).First()
}

// ClickResource reads one resource and classifies the outcome.
func (m *Manager) ClickResource(ctx context.Context, name string) (bool, error) {
	if err := m.ensureListPopulated("List Resources", name); err != nil {
		return false, err
	}
	if err := m.itemLocator(name).Click(); err != nil {
		m.failureShot("resource-click-failed")
		return false, fmt.Errorf("browser: clicking resource %q: %w", name, err)
	}
	time.Sleep(settleDelay)
	m.CaptureScreenshot("resource-" + name)
	return m.classifyOutcome("resource " + name)
}

// ExecuteTool runs one tool: populate the list, select the tool, fill each
// argument through the matcher strategies, trigger the run, classify.
func (m *Manager) ExecuteTool(ctx context.Context, name string, args map[string]string) (bool, error) {
	if err := m.ensureListPopulated("List Tools", name); err != nil {
		return false, err
	}
	if err := m.itemLocator(name).Click(); err != nil {
		m.failureShot("tool-select-failed")
		return false, fmt.Errorf("browser: selecting tool %q: %w", name, err)
	}
	time.Sleep(settleDelay)

	for key, value := range args {
		if err := m.fillArgument(key, value); err != nil {
			logging.Warn("Browser", "Could not fill argument %q for tool %s: %v", key, name, err)
		}
	}

	runButton := m.page.Locator(`button:has-text("Run Tool")`).First()
	if err := runButton.Click(); err != nil {
		m.failureShot("tool-run-failed")
		return false, fmt.Errorf("browser: running tool %q: %w", name, err)
	}
	time.Sleep(settleDelay)
	m.CaptureScreenshot("tool-" + name)
	return m.classifyOutcome("tool " + name)
}

// ExecutePrompt retrieves one prompt, same pattern as ExecuteTool.
func (m *Manager) ExecutePrompt(ctx context.Context, name string, args map[string]string) (bool, error) {
	if err := m.ensureListPopulated("List Prompts", name); err != nil {
		return false, err
	}
	if err := m.itemLocator(name).Click(); err != nil {
		m.failureShot("prompt-select-failed")
		return false, fmt.Errorf("browser: selecting prompt %q: %w", name, err)
	}
	time.Sleep(settleDelay)

	for key, value := range args {
		if err := m.fillArgument(key, value); err != nil {
			logging.Warn("Browser", "Could not fill argument %q for prompt %s: %v", key, name, err)
		}
	}

	getButton := m.page.Locator(`button:has-text("Get Prompt")`).First()
	if err := getButton.Click(); err != nil {
		m.failureShot("prompt-get-failed")
		return false, fmt.Errorf("browser: getting prompt %q: %w", name, err)
	}
	time.Sleep(settleDelay)
	m.CaptureScreenshot("prompt-" + name)
	return m.classifyOutcome("prompt " + name)
}

// argFieldStrategies is the ordered list of selector strategies used to map
// an argument key to its form field. The first visible match wins.
var argFieldStrategies = []struct {
	name     string
	selector func(key string) string
}{
	{"name attribute", func(key string) string {
		return fmt.Sprintf(`input[name=%q], textarea[name=%q]`, key, key)
	}},
	{"id attribute", func(key string) string {
		return fmt.Sprintf(`input[id=%q], textarea[id=%q]`, key, key)
	}},
	{"placeholder contains", func(key string) string {
		return fmt.Sprintf(`input[placeholder*=%q], textarea[placeholder*=%q]`, key, key)
	}},
}

func (m *Manager) fillArgument(key, value string) error {
	for _, strategy := range argFieldStrategies {
		field := m.page.Locator(strategy.selector(key)).First()
		count, err := field.Count()
		if err != nil || count == 0 {
			continue
		}
		if err := field.Fill(value); err != nil {
			logging.Debug("Browser", "Strategy %q matched %q but fill failed: %v", strategy.name, key, err)
			continue
		}
		logging.Debug("Browser", "Filled argument %q via %s", key, strategy.name)
		return nil
	}
	return fmt.Errorf("no form field matched argument %q", key)
}

// classifyOutcome inspects the page for success or error markers. Neither
// marker present counts as success: the Inspector does not render an explicit
// state for every operation.
func (m *Manager) classifyOutcome(subject string) (bool, error) {
	errorVisible, _ := m.page.Locator(selErrorMarker).First().IsVisible()
	if errorVisible {
		logging.Warn("Browser", "Error marker visible after %s", subject)
		return false, nil
	}
	successVisible, _ := m.page.Locator(selSuccessMarker).First().IsVisible()
	if successVisible {
		return true, nil
	}
	logging.Debug("Browser", "No outcome marker after %s; treating as success", subject)
	return true, nil
}

// HandleElicitation waits for the elicitation form, fills named fields
// (select, checkbox and text variants), submits, and screenshots each phase.
func (m *Manager) HandleElicitation(ctx context.Context, formData map[string]string) error {
	form := m.page.Locator(selElicitationBox).First()
	if err := form.WaitFor(); err != nil {
		m.failureShot("elicitation-missing")
		return fmt.Errorf("browser: elicitation form never appeared: %w", err)
	}
	m.CaptureScreenshot("elicitation-form")

	for key, value := range formData {
		if err := m.fillElicitationField(key, value); err != nil {
			logging.Warn("Browser", "Could not fill elicitation field %q: %v", key, err)
		}
	}
	m.CaptureScreenshot("elicitation-filled")

	submit := m.page.Locator(`button:has-text("Submit")`).First()
	if err := submit.Click(); err != nil {
		m.failureShot("elicitation-submit-failed")
		return fmt.Errorf("browser: submitting elicitation form: %w", err)
	}
	time.Sleep(settleDelay)
	m.CaptureScreenshot("elicitation-submitted")
	return nil
}

func (m *Manager) fillElicitationField(key, value string) error {
	sel := m.page.Locator(fmt.Sprintf(`select[name=%q]`, key)).First()
	if count, err := sel.Count(); err == nil && count > 0 {
		_, err := sel.SelectOption(playwright.SelectOptionValues{Values: &[]string{value}})
		return err
	}

	checkbox := m.page.Locator(fmt.Sprintf(`input[type="checkbox"][name=%q]`, key)).First()
	if count, err := checkbox.Count(); err == nil && count > 0 {
		if value == "true" || value == "on" {
			return checkbox.Check()
		}
		return checkbox.Uncheck()
	}

	return m.fillArgument(key, value)
}

// Ping clicks the ping control and accepts any of several success markers.
// Ping UIs are inconsistent about exact wording, so response content with no
// explicit marker still counts as success.
func (m *Manager) Ping(ctx context.Context) (bool, error) {
	ping := m.page.Locator(selPingButton).First()
	if err := ping.Click(); err != nil {
		m.failureShot("ping-click-failed")
		return false, fmt.Errorf("browser: clicking ping: %w", err)
	}
	time.Sleep(settleDelay)
	m.CaptureScreenshot("ping")

	for _, marker := range []string{`text=/pong/i`, selSuccessMarker} {
		visible, _ := m.page.Locator(marker).First().IsVisible()
		if visible {
			return true, nil
		}
	}

	errorVisible, _ := m.page.Locator(selErrorMarker).First().IsVisible()
	if errorVisible {
		return false, nil
	}

	// No explicit marker: some response content is still evidence of life.
	texts, err := m.page.Locator(selHistoryPane).AllInnerTexts()
	if err == nil {
		for _, text := range texts {
			if strings.TrimSpace(text) != "" {
				logging.Debug("Browser", "Ping produced response content without a marker; treating as success")
				return true, nil
			}
		}
	}
	return false, nil
}

// CaptureScreenshot writes a numbered screenshot and returns its path.
// Best-effort: failures are logged and an empty path returned, so a broken
// screenshot never aborts a test.
func (m *Manager) CaptureScreenshot(name string) string {
	if m.page == nil {
		return ""
	}
	path := filepath.Join(m.opts.ScreenshotDir, m.namer.next(name))
	if _, err := m.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	}); err != nil {
		logging.Warn("Browser", "Screenshot %q failed: %v", name, err)
		return ""
	}
	return path
}

// failureShot captures a screenshot only when configured to do so.
func (m *Manager) failureShot(name string) {
	if m.opts.ScreenshotOnFailure {
		m.CaptureScreenshot(name)
	}
}

// ExtractCurrentData scrapes the page's visible text and opportunistically
// parses <pre>/<code> blocks as JSON.
func (m *Manager) ExtractCurrentData() (*results.ExtractedData, error) {
	visibleText, err := m.page.Locator("body").InnerText()
	if err != nil {
		return nil, fmt.Errorf("browser: reading visible text: %w", err)
	}
	rawBlocks, err := m.page.Locator(selHistoryPane).AllInnerTexts()
	if err != nil {
		logging.Debug("Browser", "Reading history blocks failed: %v", err)
		rawBlocks = nil
	}
	return buildExtractedData(visibleText, rawBlocks), nil
}

// Cleanup closes page, context and browser in that order. Each close is
// independently guarded so one failure does not block the rest.
func (m *Manager) Cleanup() error {
	var firstErr error
	if m.page != nil {
		if err := m.page.Close(); err != nil {
			logging.Warn("Browser", "Closing page failed: %v", err)
			firstErr = err
		}
	}
	if m.browctx != nil {
		if err := m.browctx.Close(); err != nil {
			logging.Warn("Browser", "Closing context failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			logging.Warn("Browser", "Closing browser failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			logging.Warn("Browser", "Stopping playwright failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

var _ Driver = (*Manager)(nil)
