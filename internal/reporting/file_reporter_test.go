package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inspectctl/internal/results"
)

func sampleReport() results.Report {
	return results.Report{
		RunID:     "run-123",
		Timestamp: "2026-08-30T10:05:00Z",
		Environment: map[string]string{
			"headless": "true",
		},
		Summary: results.Summary{
			TotalServers:      1,
			SuccessfulServers: 1,
			TotalTests:        4,
			PassedTests:       4,
			SuccessRate:       100,
		},
		Results: []results.ServerTestResult{
			{
				ServerName: "dev-tools",
				ServerPath: "servers/dev-tools/index.js",
				StartTime:  "2026-08-30T10:00:00Z",
				EndTime:    "2026-08-30T10:04:00Z",
				Status:     results.ServerStatusCompleted,
				Errors:     []results.ErrorEntry{},
			},
		},
	}
}

func TestFileReporter_WritesJSONAndHTML(t *testing.T) {
	dir := t.TempDir()
	reporter := NewFileReporter(dir)

	path, err := reporter.Write(sampleReport())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "report-run-123.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var roundTripped results.Report
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	assert.Equal(t, "run-123", roundTripped.RunID)
	assert.Equal(t, 100, roundTripped.Summary.SuccessRate)
	require.Len(t, roundTripped.Results, 1)
	assert.Equal(t, "dev-tools", roundTripped.Results[0].ServerName)

	htmlData, err := os.ReadFile(filepath.Join(dir, "report-run-123.html"))
	require.NoError(t, err)
	assert.Contains(t, string(htmlData), "dev-tools")
	assert.Contains(t, string(htmlData), "100%")
}

func TestFileReporter_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	reporter := NewFileReporter(dir)

	path, err := reporter.Write(sampleReport())
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestConsoleReporter_DoesNotPanicOnZeroValueUpdate(t *testing.T) {
	reporter := NewConsoleReporter()
	assert.NotPanics(t, func() {
		reporter.Report(RunUpdate{})
	})
}
