package browser

import (
	"fmt"
	"strings"
	"time"
)

// screenshotNamer produces deterministic, monotonically numbered screenshot
// filenames. The counter is per-Manager state and resets with each run, not
// each process, so filenames sort in capture order within a run.
type screenshotNamer struct {
	counter int
	now     func() time.Time
}

func newScreenshotNamer() *screenshotNamer {
	return &screenshotNamer{now: time.Now}
}

// next returns the next filename, e.g. "003-2026-08-30T10-00-00Z-connect-ok.png".
func (n *screenshotNamer) next(name string) string {
	n.counter++
	stamp := sanitizeTimestamp(n.now().UTC().Format(time.RFC3339))
	return fmt.Sprintf("%03d-%s-%s.png", n.counter, stamp, sanitizeName(name))
}

func sanitizeTimestamp(ts string) string {
	return strings.ReplaceAll(ts, ":", "-")
}

func sanitizeName(name string) string {
	replacer := strings.NewReplacer(
		" ", "-",
		"/", "-",
		":", "-",
		"\\", "-",
	)
	return replacer.Replace(strings.ToLower(name))
}
