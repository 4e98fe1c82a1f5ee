package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd
var osGetenv = os.Getenv

const (
	userConfigDir    = ".config/inspectctl"
	projectConfigDir = ".inspectctl"
	configFileName   = "config.yaml"
)

// LoadConfig loads the inspectctl configuration by layering default, user and
// project settings, then applying environment variable overrides.
func LoadConfig() (Config, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional; carry on with defaults.
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else {
		if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
			userConfig, bools, err := loadConfigFromFile(userConfigPath)
			if err != nil {
				return Config{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
			}
			config = mergeConfigs(config, userConfig)
			config.Settings = applyBoolOverlay(config.Settings, bools)
		}
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else {
		if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
			projectConfig, bools, err := loadConfigFromFile(projectConfigPath)
			if err != nil {
				return Config{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
			}
			config = mergeConfigs(config, projectConfig)
			config.Settings = applyBoolOverlay(config.Settings, bools)
		}
	}

	config.Settings = applyEnvOverrides(config.Settings)
	return config, nil
}

// LoadConfigFromFile loads a full configuration from an explicit path,
// layering it over the defaults and applying environment overrides. Used by
// the --config flag.
func LoadConfigFromFile(path string) (Config, error) {
	config := GetDefaultConfig()
	fileConfig, bools, err := loadConfigFromFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	config = mergeConfigs(config, fileConfig)
	config.Settings = applyBoolOverlay(config.Settings, bools)
	config.Settings = applyEnvOverrides(config.Settings)
	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// boolOverlay mirrors the bool settings with pointer types; a plain bool
// cannot distinguish an explicit false in a file from an absent key.
type boolOverlay struct {
	Headless            *bool `yaml:"headless"`
	ScreenshotOnFailure *bool `yaml:"screenshotOnFailure"`
}

func loadConfigFromFile(filePath string) (Config, boolOverlay, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, boolOverlay{}, err
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, boolOverlay{}, err
	}
	var wrapper struct {
		Settings boolOverlay `yaml:"settings"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Config{}, boolOverlay{}, err
	}
	return config, wrapper.Settings, nil
}

// applyBoolOverlay copies only the bool settings the file actually sets.
func applyBoolOverlay(s Settings, overlay boolOverlay) Settings {
	if overlay.Headless != nil {
		s.Headless = *overlay.Headless
	}
	if overlay.ScreenshotOnFailure != nil {
		s.ScreenshotOnFailure = *overlay.ScreenshotOnFailure
	}
	return s
}

// mergeConfigs merges 'overlay' config into 'base' config.
func mergeConfigs(base, overlay Config) Config {
	merged := base
	merged.Settings = mergeSettings(base.Settings, overlay.Settings)

	// Servers merge by name: overlay replaces or appends.
	serverMap := make(map[string]int, len(merged.Servers))
	for i, srv := range merged.Servers {
		serverMap[srv.Name] = i
	}
	for _, srv := range overlay.Servers {
		if i, ok := serverMap[srv.Name]; ok {
			merged.Servers[i] = srv
		} else {
			merged.Servers = append(merged.Servers, srv)
		}
	}

	return merged
}

// mergeSettings copies the non-zero overlay fields. Bool settings are merged
// separately through applyBoolOverlay, which carries presence information.
func mergeSettings(base, overlay Settings) Settings {
	merged := base
	if overlay.Timeout != 0 {
		merged.Timeout = overlay.Timeout
	}
	if overlay.Retries != 0 {
		merged.Retries = overlay.Retries
	}
	if overlay.RetryInterval != 0 {
		merged.RetryInterval = overlay.RetryInterval
	}
	if overlay.ScreenshotDir != "" {
		merged.ScreenshotDir = overlay.ScreenshotDir
	}
	if overlay.VideoDir != "" {
		merged.VideoDir = overlay.VideoDir
	}
	if overlay.ReportDir != "" {
		merged.ReportDir = overlay.ReportDir
	}
	if len(overlay.InspectorCommand) > 0 {
		merged.InspectorCommand = overlay.InspectorCommand
	}
	if overlay.StartupTimeout != 0 {
		merged.StartupTimeout = overlay.StartupTimeout
	}
	return merged
}

// applyEnvOverrides applies environment variable overrides, the highest
// precedence configuration layer.
func applyEnvOverrides(s Settings) Settings {
	if v := osGetenv("HEADLESS"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			s.Headless = parsed
		}
	}
	if v := osGetenv("INSPECTCTL_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			s.Timeout = parsed
		}
	}
	if v := osGetenv("INSPECTCTL_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			s.Retries = parsed
		}
	}
	if v := osGetenv("INSPECTCTL_SCREENSHOT_ON_FAILURE"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			s.ScreenshotOnFailure = parsed
		}
	}
	if v := osGetenv("INSPECTCTL_SCREENSHOT_DIR"); v != "" {
		s.ScreenshotDir = v
	}
	if v := osGetenv("INSPECTCTL_REPORT_DIR"); v != "" {
		s.ReportDir = v
	}
	return s
}

// GetUserConfigDir returns the user configuration directory path.
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
