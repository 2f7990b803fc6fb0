package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// cleanMarkdownWrapper strips a ```json fence and any prose around the
// outermost JSON object.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

// parseClassification decodes a classifier reply. The category is returned
// as-is; validating it against the enumeration is the caller's job.
func parseClassification(content string) (ClassifyResponse, error) {
	var resp ClassifyResponse
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &resp); err != nil {
		return ClassifyResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	resp.Category = strings.TrimSpace(resp.Category)
	if resp.Category == "" {
		return ClassifyResponse{}, fmt.Errorf("%w: no category in response", ErrMalformedResponse)
	}
	resp.Rationale = strings.TrimSpace(resp.Rationale)
	return resp, nil
}
