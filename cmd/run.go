package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"inspectctl/internal/browser"
	"inspectctl/internal/config"
	"inspectctl/internal/reporting"
	"inspectctl/internal/runner"
	"inspectctl/internal/tui"
	"inspectctl/pkg/logging"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		headed     bool
		useTUI     bool
		only       []string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Test configured MCP servers through the Inspector UI",
		Long: `Starts the MCP Inspector, connects a browser to it and runs the
configured test cases against every server in the config, one server at
a time. Writes a JSON and HTML report when done.

The command exits non-zero when any server fails or when the produced
result tree fails structural validation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(configPath)
			if err != nil {
				return err
			}

			servers := filterServers(cfg.Servers, only)
			if len(servers) == 0 {
				return fmt.Errorf("no servers to test (config lists %d, filter matched none)", len(cfg.Servers))
			}

			settings := cfg.Settings
			if headed {
				settings.Headless = false
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if useTUI {
				return runWithTUI(ctx, settings, servers)
			}
			return runWithConsole(ctx, settings, servers, verbose)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "explicit config file (skips the layered lookup)")
	cmd.Flags().BoolVar(&headed, "headed", false, "run the browser with a visible window")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show a live terminal UI instead of plain logs")
	cmd.Flags().StringSliceVar(&only, "server", nil, "only test the named server(s); repeatable")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func loadRunConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadConfigFromFile(path)
	}
	return config.LoadConfig()
}

func filterServers(servers []config.ServerTestConfig, only []string) []config.ServerTestConfig {
	if len(only) == 0 {
		return servers
	}
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = true
	}
	var out []config.ServerTestConfig
	for _, srv := range servers {
		if wanted[srv.Name] {
			out = append(out, srv)
		}
	}
	return out
}

func newRunner(settings config.Settings, reporter reporting.RunReporter) *runner.Runner {
	driver := browser.NewManager(browser.Options{
		Headless:            settings.Headless,
		Timeout:             settings.Timeout,
		Retries:             settings.Retries,
		RetryInterval:       settings.RetryInterval,
		ScreenshotOnFailure: settings.ScreenshotOnFailure,
		ScreenshotDir:       settings.ScreenshotDir,
		VideoDir:            settings.VideoDir,
	})
	writer := reporting.NewFileReporter(settings.ReportDir)
	return runner.New(settings, driver, reporter, writer)
}

func runWithConsole(ctx context.Context, settings config.Settings, servers []config.ServerTestConfig, verbose bool) error {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stderr)

	r := newRunner(settings, reporting.NewConsoleReporter())
	path, err := r.Run(ctx, servers)
	if err != nil {
		return err
	}

	fmt.Printf("Report written to %s\n", path)
	return checkOutcome(r)
}

func runWithTUI(ctx context.Context, settings config.Settings, servers []config.ServerTestConfig) error {
	logChan := logging.InitForTUI(logging.LevelInfo)
	updates := make(chan tea.Msg, 64)

	r := newRunner(settings, reporting.NewTUIReporter(updates))
	program := tea.NewProgram(tui.NewModel(updates, logChan))

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrChan := make(chan error, 1)
	go func() {
		_, err := r.Run(runCtx, servers)
		if err == nil {
			err = checkOutcome(r)
		}
		logging.CloseTUIChannel()
		runErrChan <- err
	}()

	_, uiErr := program.Run()
	// Quitting the TUI before the run finishes aborts it; wait for the
	// goroutine so cleanup has completed before returning.
	cancelRun()
	runErr := <-runErrChan
	if uiErr != nil {
		return fmt.Errorf("terminal UI failed: %w", uiErr)
	}
	if errors.Is(runErr, context.Canceled) {
		return errors.New("run aborted before completion")
	}
	return runErr
}

// checkOutcome turns a finished run into the command's exit status: any
// failed server or any structural validation error is a failure.
func checkOutcome(r *runner.Runner) error {
	validation := r.Validate()
	if !validation.IsValid {
		for _, issue := range validation.Errors {
			logging.Error("Validate", nil, "%s: %s", issue.Field, issue.Message)
		}
		return fmt.Errorf("result tree failed validation with %d error(s)", validation.Summary.ErrorCount)
	}
	for _, issue := range validation.Warnings {
		logging.Warn("Validate", "%s: %s", issue.Field, issue.Message)
	}

	summary := r.GenerateSummary()
	failed := summary.TotalServers - summary.SuccessfulServers
	if failed > 0 {
		return fmt.Errorf("%d of %d server(s) failed", failed, summary.TotalServers)
	}
	return nil
}
