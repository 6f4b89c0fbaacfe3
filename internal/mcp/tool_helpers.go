package mcp

import (
	"encoding/json"
	"fmt"

	"unitymcp/internal/envelope"
)

// ToolResult is the tools/call result shape.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is one piece of tool output.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolContent renders an envelope as a single text block. Failed envelopes
// set isError so clients can tell without parsing the text.
func toolContent(result *envelope.Result) (*ToolResult, error) {
	if result == nil {
		return nil, fmt.Errorf("tool returned no result")
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}

	return &ToolResult{
		Content: []ContentBlock{{Type: "text", Text: string(jsonBytes)}},
		IsError: !result.Success,
	}, nil
}
