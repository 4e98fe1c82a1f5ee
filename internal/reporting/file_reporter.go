package reporting

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"inspectctl/internal/results"
	"inspectctl/pkg/logging"
)

// FileReporter persists a run report as JSON with an HTML rendering next to
// it. The JSON file is the canonical artifact; the HTML file is a
// human-friendly view of the same payload.
type FileReporter struct {
	dir string
}

// NewFileReporter creates a FileReporter writing into dir.
func NewFileReporter(dir string) *FileReporter {
	return &FileReporter{dir: dir}
}

// Write persists the report and returns the JSON artifact path. The HTML
// rendering is best-effort: a template failure is logged, not fatal, because
// the canonical JSON has already been written.
func (f *FileReporter) Write(report results.Report) (string, error) {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return "", fmt.Errorf("reporting: creating report dir %s: %w", f.dir, err)
	}

	jsonPath := filepath.Join(f.dir, fmt.Sprintf("report-%s.json", report.RunID))
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("reporting: marshaling report: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return "", fmt.Errorf("reporting: writing %s: %w", jsonPath, err)
	}

	htmlPath := filepath.Join(f.dir, fmt.Sprintf("report-%s.html", report.RunID))
	if err := f.writeHTML(htmlPath, report); err != nil {
		logging.Warn("FileReporter", "HTML report failed: %v", err)
	}

	return jsonPath, nil
}

func (f *FileReporter) writeHTML(path string, report results.Report) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return reportTemplate.Execute(out, report)
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>inspectctl report {{.RunID}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: left; }
.completed, .success { color: #1a7f37; }
.failed { color: #cf222e; }
.unknown { color: #9a6700; }
summary { cursor: pointer; margin: 0.5rem 0; }
</style>
</head>
<body>
<h1>MCP Inspector test report</h1>
<p>Run {{.RunID}} at {{.Timestamp}}</p>
<table>
<tr><th>Servers</th><th>Successful</th><th>Tests</th><th>Passed</th><th>Failed</th><th>Success rate</th></tr>
<tr>
<td>{{.Summary.TotalServers}}</td>
<td>{{.Summary.SuccessfulServers}}</td>
<td>{{.Summary.TotalTests}}</td>
<td>{{.Summary.PassedTests}}</td>
<td>{{.Summary.FailedTests}}</td>
<td>{{.Summary.SuccessRate}}%</td>
</tr>
</table>
{{range .Results}}
<details>
<summary><strong class="{{.Status}}">{{.ServerName}}</strong> ({{.Status}})</summary>
<p>{{.ServerPath}} &mdash; {{.StartTime}} to {{.EndTime}}</p>
<table>
<tr><th>Capability</th><th>Expected</th><th>Actual</th></tr>
<tr><td>tools</td><td>{{.Capabilities.Tools.Expected}}</td><td>{{.Capabilities.Tools.Actual}}</td></tr>
<tr><td>resources</td><td>{{.Capabilities.Resources.Expected}}</td><td>{{.Capabilities.Resources.Actual}}</td></tr>
<tr><td>prompts</td><td>{{.Capabilities.Prompts.Expected}}</td><td>{{.Capabilities.Prompts.Actual}}</td></tr>
</table>
{{if .Errors}}
<ul>
{{range .Errors}}<li class="failed">[{{.Type}}] {{.Message}}</li>{{end}}
</ul>
{{end}}
</details>
{{end}}
</body>
</html>
`))
