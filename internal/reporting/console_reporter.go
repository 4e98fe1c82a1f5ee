package reporting

import (
	"time"

	"inspectctl/pkg/logging"
)

// ConsoleReporter logs runner updates through pkg/logging.
type ConsoleReporter struct{}

// NewConsoleReporter creates a ConsoleReporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// Report logs the update at its level, tagged with phase and server.
func (c *ConsoleReporter) Report(update RunUpdate) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	subsystem := "Runner"
	if update.Server != "" {
		subsystem = "Runner-" + update.Server
	}

	message := update.Message
	if update.Phase != "" {
		message = "[" + string(update.Phase) + "] " + message
	}

	switch {
	case update.Err != nil:
		logging.Error(subsystem, update.Err, "%s", message)
	case update.Level == logging.LevelWarn:
		logging.Warn(subsystem, "%s", message)
	case update.Level == logging.LevelDebug:
		logging.Debug(subsystem, "%s", message)
	default:
		logging.Info(subsystem, "%s", message)
	}
}
