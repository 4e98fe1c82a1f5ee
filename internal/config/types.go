package config

import (
	"time"
)

// Config is the top-level configuration structure for inspectctl.
type Config struct {
	Settings Settings           `yaml:"settings"`
	Servers  []ServerTestConfig `yaml:"servers"`
}

// Settings controls the browser session, the Inspector subprocess and the
// output locations. All fields have defaults and can be overridden per layer
// or through environment variables.
type Settings struct {
	Headless            bool          `yaml:"headless"`
	Timeout             time.Duration `yaml:"timeout"`       // default selector wait
	Retries             int           `yaml:"retries"`       // max attempts for connect/ping polling
	RetryInterval       time.Duration `yaml:"retryInterval"` // interval between polling attempts
	ScreenshotOnFailure bool          `yaml:"screenshotOnFailure"`
	ScreenshotDir       string        `yaml:"screenshotDir"`
	VideoDir            string        `yaml:"videoDir,omitempty"` // empty disables recording
	ReportDir           string        `yaml:"reportDir"`
	InspectorCommand    []string      `yaml:"inspectorCommand"` // e.g. ["npx", "@modelcontextprotocol/inspector"]
	StartupTimeout      time.Duration `yaml:"startupTimeout"`   // wall-clock budget for the Inspector URL to appear
}

// Capability names the MCP primitive categories a server declares.
type Capability string

const (
	CapabilityTools     Capability = "tools"
	CapabilityResources Capability = "resources"
	CapabilityPrompts   Capability = "prompts"
)

// ServerTestConfig describes one MCP server under test. Immutable for the
// duration of that server's run.
type ServerTestConfig struct {
	Name         string       `yaml:"name"`
	Path         string       `yaml:"path"` // subprocess entry point, run as "node <path>"
	Capabilities []Capability `yaml:"capabilities"`
	TestCases    TestCases    `yaml:"testCases"`
}

// HasCapability reports whether the server declares the given capability.
func (s ServerTestConfig) HasCapability(c Capability) bool {
	for _, have := range s.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// TestCases groups the planned cases per capability.
type TestCases struct {
	Tools     []ToolCase     `yaml:"tools,omitempty"`
	Resources []ResourceCase `yaml:"resources,omitempty"`
	Prompts   []PromptCase   `yaml:"prompts,omitempty"`
}

// ToolCase is one planned tool invocation.
type ToolCase struct {
	Name                     string            `yaml:"name"`
	Args                     map[string]string `yaml:"args,omitempty"`
	HasProgressNotifications bool              `yaml:"hasProgressNotifications,omitempty"`
	ExpectedResponse         string            `yaml:"expectedResponse,omitempty"`
	TriggersElicitation      bool              `yaml:"triggersElicitation,omitempty"`
	ElicitationInput         map[string]string `yaml:"elicitationInput,omitempty"`
}

// ResourceCase is one planned resource read.
type ResourceCase struct {
	Name string `yaml:"name"`
}

// PromptCase is one planned prompt retrieval.
type PromptCase struct {
	Name             string            `yaml:"name"`
	Args             map[string]string `yaml:"args,omitempty"`
	ExpectedResponse string            `yaml:"expectedResponse,omitempty"`
}
