package browser

import (
	"encoding/json"
	"strings"

	"inspectctl/internal/results"
)

// parseJSONBlocks opportunistically parses candidate text blocks as JSON.
// Blocks that fail to parse are skipped but counted, so the report can show
// how lossy the scrape was. This is forensic evidence, not a protocol
// response, so partial results are acceptable.
func parseJSONBlocks(blocks []string) ([]interface{}, int) {
	var parsed []interface{}
	skipped := 0
	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
			skipped++
			continue
		}
		var value interface{}
		if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
			skipped++
			continue
		}
		parsed = append(parsed, value)
	}
	return parsed, skipped
}

// buildExtractedData assembles the scrape snapshot from visible page text and
// raw <pre>/<code> block contents.
func buildExtractedData(visibleText string, rawBlocks []string) *results.ExtractedData {
	blocks, skipped := parseJSONBlocks(rawBlocks)
	return &results.ExtractedData{
		VisibleText:   visibleText,
		JSONBlocks:    blocks,
		SkippedBlocks: skipped,
	}
}
