package config

import "time"

// GetDefaultSettings returns the built-in settings applied before any config
// file or environment override.
func GetDefaultSettings() Settings {
	return Settings{
		Headless:            true,
		Timeout:             30 * time.Second,
		Retries:             10,
		RetryInterval:       time.Second,
		ScreenshotOnFailure: true,
		ScreenshotDir:       "test-screenshots",
		ReportDir:           "test-reports",
		InspectorCommand:    []string{"npx", "@modelcontextprotocol/inspector"},
		StartupTimeout:      30 * time.Second,
	}
}

// GetDefaultConfig returns the default configuration: built-in settings and no
// servers. Servers come exclusively from config files.
func GetDefaultConfig() Config {
	return Config{
		Settings: GetDefaultSettings(),
	}
}
