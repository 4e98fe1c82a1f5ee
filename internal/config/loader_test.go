package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// Helper to create a temporary config file
func createTempConfigFile(t *testing.T, dir string, content Config) string {
	t.Helper()
	tempFilePath := filepath.Join(dir, configFileName)
	data, err := yaml.Marshal(&content)
	require.NoError(t, err)
	err = os.WriteFile(tempFilePath, data, 0644)
	require.NoError(t, err)
	return tempFilePath
}

func mockPaths(t *testing.T, userPath, projectPath string) {
	t.Helper()
	originalUser := getUserConfigPath
	originalProject := getProjectConfigPath
	originalEnv := osGetenv
	t.Cleanup(func() {
		getUserConfigPath = originalUser
		getProjectConfigPath = originalProject
		osGetenv = originalEnv
	})
	getUserConfigPath = func() (string, error) { return userPath, nil }
	getProjectConfigPath = func() (string, error) { return projectPath, nil }
	osGetenv = func(string) string { return "" }
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t,
		filepath.Join(tempDir, "missing-user.yaml"),
		filepath.Join(tempDir, "missing-project.yaml"))

	loaded, err := LoadConfig()
	require.NoError(t, err)

	defaults := GetDefaultConfig()
	assert.Equal(t, defaults.Settings, loaded.Settings)
	assert.Empty(t, loaded.Servers)
}

func TestLoadConfig_UserOverride(t *testing.T) {
	tempDir := t.TempDir()
	userDir := filepath.Join(tempDir, "user")
	require.NoError(t, os.MkdirAll(userDir, 0755))

	userConfig := Config{
		Settings: Settings{
			Timeout:       45 * time.Second,
			ScreenshotDir: "custom-shots",
		},
		Servers: []ServerTestConfig{
			{Name: "dev-tools", Path: "servers/dev-tools/index.js", Capabilities: []Capability{CapabilityTools}},
		},
	}
	userPath := createTempConfigFile(t, userDir, userConfig)
	mockPaths(t, userPath, filepath.Join(tempDir, "missing-project.yaml"))

	loaded, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, loaded.Settings.Timeout)
	assert.Equal(t, "custom-shots", loaded.Settings.ScreenshotDir)
	// Unset fields keep their defaults.
	assert.Equal(t, 10, loaded.Settings.Retries)
	require.Len(t, loaded.Servers, 1)
	assert.Equal(t, "dev-tools", loaded.Servers[0].Name)
}

func TestLoadConfig_ProjectOverridesUser(t *testing.T) {
	tempDir := t.TempDir()
	userDir := filepath.Join(tempDir, "user")
	projectDir := filepath.Join(tempDir, "project")
	require.NoError(t, os.MkdirAll(userDir, 0755))
	require.NoError(t, os.MkdirAll(projectDir, 0755))

	userPath := createTempConfigFile(t, userDir, Config{
		Settings: Settings{Retries: 3},
		Servers: []ServerTestConfig{
			{Name: "dev-tools", Path: "old/path.js"},
			{Name: "analytics", Path: "servers/analytics/index.js"},
		},
	})
	projectPath := createTempConfigFile(t, projectDir, Config{
		Settings: Settings{Retries: 7},
		Servers: []ServerTestConfig{
			{Name: "dev-tools", Path: "servers/dev-tools/index.js"},
		},
	})
	mockPaths(t, userPath, projectPath)

	loaded, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7, loaded.Settings.Retries)
	require.Len(t, loaded.Servers, 2)

	byName := make(map[string]ServerTestConfig)
	for _, srv := range loaded.Servers {
		byName[srv.Name] = srv
	}
	assert.Equal(t, "servers/dev-tools/index.js", byName["dev-tools"].Path, "project overlay replaces by name")
	assert.Equal(t, "servers/analytics/index.js", byName["analytics"].Path)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t,
		filepath.Join(tempDir, "missing-user.yaml"),
		filepath.Join(tempDir, "missing-project.yaml"))

	osGetenv = func(key string) string {
		switch key {
		case "HEADLESS":
			return "false"
		case "INSPECTCTL_TIMEOUT":
			return "90s"
		case "INSPECTCTL_RETRIES":
			return "20"
		case "INSPECTCTL_REPORT_DIR":
			return "/tmp/reports"
		}
		return ""
	}

	loaded, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, loaded.Settings.Headless)
	assert.Equal(t, 90*time.Second, loaded.Settings.Timeout)
	assert.Equal(t, 20, loaded.Settings.Retries)
	assert.Equal(t, "/tmp/reports", loaded.Settings.ReportDir)
}

func TestLoadConfig_InvalidEnvValuesIgnored(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t,
		filepath.Join(tempDir, "missing-user.yaml"),
		filepath.Join(tempDir, "missing-project.yaml"))

	osGetenv = func(key string) string {
		switch key {
		case "HEADLESS":
			return "sideways"
		case "INSPECTCTL_RETRIES":
			return "-4"
		}
		return ""
	}

	loaded, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, loaded.Settings.Headless)
	assert.Equal(t, 10, loaded.Settings.Retries)
}

func writeRawConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, configFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFromFile_DisablesBoolSettings(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t, filepath.Join(tempDir, "u.yaml"), filepath.Join(tempDir, "p.yaml"))

	path := writeRawConfig(t, tempDir, `settings:
  headless: false
  screenshotOnFailure: false
`)

	loaded, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.False(t, loaded.Settings.Headless)
	assert.False(t, loaded.Settings.ScreenshotOnFailure,
		"an explicit screenshotOnFailure: false must survive the merge")
}

func TestLoadConfig_FileLeavesUnsetBoolsAtDefault(t *testing.T) {
	tempDir := t.TempDir()
	userDir := filepath.Join(tempDir, "user")
	require.NoError(t, os.MkdirAll(userDir, 0755))

	userPath := writeRawConfig(t, userDir, `settings:
  retries: 5
`)
	mockPaths(t, userPath, filepath.Join(tempDir, "missing-project.yaml"))

	loaded, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, loaded.Settings.Retries)
	assert.True(t, loaded.Settings.Headless)
	assert.True(t, loaded.Settings.ScreenshotOnFailure)
}

func TestLoadConfig_ProjectDisablesScreenshotOnFailure(t *testing.T) {
	tempDir := t.TempDir()
	projectDir := filepath.Join(tempDir, "project")
	require.NoError(t, os.MkdirAll(projectDir, 0755))

	projectPath := writeRawConfig(t, projectDir, `settings:
  screenshotOnFailure: false
`)
	mockPaths(t, filepath.Join(tempDir, "missing-user.yaml"), projectPath)

	loaded, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, loaded.Settings.ScreenshotOnFailure)
	assert.True(t, loaded.Settings.Headless, "untouched bool keeps its default")
}

func TestLoadConfig_ScreenshotOnFailureEnvOverride(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t,
		filepath.Join(tempDir, "missing-user.yaml"),
		filepath.Join(tempDir, "missing-project.yaml"))

	osGetenv = func(key string) string {
		if key == "INSPECTCTL_SCREENSHOT_ON_FAILURE" {
			return "false"
		}
		return ""
	}

	loaded, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, loaded.Settings.ScreenshotOnFailure)
}

func TestLoadConfigFromFile_Explicit(t *testing.T) {
	tempDir := t.TempDir()
	mockPaths(t, filepath.Join(tempDir, "u.yaml"), filepath.Join(tempDir, "p.yaml"))

	path := createTempConfigFile(t, tempDir, Config{
		Servers: []ServerTestConfig{
			{
				Name:         "knowledge",
				Path:         "servers/knowledge/index.js",
				Capabilities: []Capability{CapabilityResources, CapabilityPrompts},
				TestCases: TestCases{
					Resources: []ResourceCase{{Name: "app://docs/readme"}},
				},
			},
		},
	})

	loaded, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	require.Len(t, loaded.Servers, 1)
	srv := loaded.Servers[0]
	assert.True(t, srv.HasCapability(CapabilityResources))
	assert.True(t, srv.HasCapability(CapabilityPrompts))
	assert.False(t, srv.HasCapability(CapabilityTools))
	require.Len(t, srv.TestCases.Resources, 1)
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	_, err := LoadConfigFromFile("/nonexistent/config.yaml")
	assert.Error(t, err)
}
