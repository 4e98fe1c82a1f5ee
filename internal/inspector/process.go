// Package inspector owns the lifecycle of the MCP Inspector subprocess: it
// spawns the Inspector, scans its stdout for the serving URL, and tears the
// process group down on cleanup. The URL pattern is the de facto wire format
// between this harness and the Inspector release in use; revalidate it when
// bumping the Inspector version.
package inspector

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"syscall"
	"time"

	"inspectctl/pkg/logging"
)

// urlPattern matches the Inspector's announcement of its serving URL,
// including the session token query string when present.
var urlPattern = regexp.MustCompile(`https?://(?:localhost|127\.0\.0\.1):\d+/?\S*`)

// ErrStartupTimeout is returned when the Inspector process started but never
// printed its serving URL within the startup budget.
var ErrStartupTimeout = errors.New("inspector: timed out waiting for serving URL")

// Process is a running Inspector instance.
type Process struct {
	cmd      *exec.Cmd
	url      string
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Start launches the Inspector with the given command line and working
// directory, then blocks until the serving URL appears on stdout or the
// startup budget elapses. The Inspector sometimes waits on interactive stdin
// before serving, so a newline is written proactively after spawn.
func Start(command []string, workDir string, startupTimeout time.Duration) (*Process, error) {
	if len(command) == 0 {
		return nil, errors.New("inspector: empty command")
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = workDir
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("inspector: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdoutPipe.Close()
		return nil, fmt.Errorf("inspector: stderr pipe: %w", err)
	}
	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		stdoutPipe.Close()
		stderrPipe.Close()
		return nil, fmt.Errorf("inspector: stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdoutPipe.Close()
		stderrPipe.Close()
		stdinPipe.Close()
		return nil, fmt.Errorf("inspector: failed to start %q: %w", command[0], err)
	}

	p := &Process{
		cmd:      cmd,
		stopChan: make(chan struct{}),
	}
	pid := cmd.Process.Pid
	logging.Info("Inspector", "Started Inspector (PID: %d): %v", pid, command)

	// Nudge processes that block on interactive stdin before serving.
	if _, err := io.WriteString(stdinPipe, "\n"); err != nil {
		logging.Debug("Inspector", "stdin nudge failed: %v", err)
	}

	urlChan := make(chan string, 1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		scanner := bufio.NewScanner(stdoutPipe)
		urlSent := false
		for scanner.Scan() {
			line := scanner.Text()
			logging.Debug("Inspector", "[STDOUT] %s", line)
			if !urlSent {
				if match := urlPattern.FindString(line); match != "" {
					urlSent = true
					urlChan <- match
				}
			}
		}
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			logging.Debug("Inspector", "[STDERR] %s", scanner.Text())
		}
	}()

	processDone := make(chan error, 1)
	go func() { processDone <- cmd.Wait() }()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case err := <-processDone:
			if err != nil {
				logging.Error("Inspector", err, "Inspector (PID: %d) exited with error", pid)
			} else {
				logging.Info("Inspector", "Inspector (PID: %d) exited", pid)
			}
		case <-p.stopChan:
			if cmd.ProcessState == nil || !cmd.ProcessState.Exited() {
				if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
					logging.Warn("Inspector", "SIGTERM to Inspector group failed: %v, escalating", err)
				}
				select {
				case <-processDone:
				case <-time.After(5 * time.Second):
					if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
						logging.Error("Inspector", err, "Failed to kill Inspector (PID: %d)", pid)
					}
					<-processDone
				}
			}
			logging.Info("Inspector", "Inspector (PID: %d) stopped", pid)
		}
	}()

	select {
	case url := <-urlChan:
		p.url = url
		logging.Info("Inspector", "Inspector serving at %s", url)
		return p, nil
	case <-time.After(startupTimeout):
		p.Stop()
		return nil, fmt.Errorf("%w after %s", ErrStartupTimeout, startupTimeout)
	}
}

// URL returns the serving URL extracted from the Inspector's stdout.
func (p *Process) URL() string {
	return p.url
}

// PID returns the Inspector's process ID.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Stop signals the Inspector process group to terminate and waits for the
// management goroutines to drain. Safe to call more than once.
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
	p.wg.Wait()
}

// ExtractURL applies the serving-URL pattern to a chunk of output. Exposed so
// the regex contract stays testable against captured Inspector banners.
func ExtractURL(output string) (string, bool) {
	match := urlPattern.FindString(output)
	return match, match != ""
}
