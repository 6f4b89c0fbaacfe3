package mcp

import (
	"context"

	"unitymcp/internal/compile"
	"unitymcp/internal/envelope"
	"unitymcp/internal/errors"
)

// Tool names.
const (
	ToolCompileMonitor = "compile_monitor"
	ToolPingEditor     = "ping_editor"
)

// Tool represents a tool exposed via MCP
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ToolHandler handles a tool call. A returned error is a protocol-level
// problem with the arguments; operational failures travel in the envelope.
type ToolHandler func(ctx context.Context, params map[string]interface{}) (*envelope.Result, error)

// GetToolDefinitions returns all tool definitions
func (s *MCPServer) GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name: ToolCompileMonitor,
			Description: "Monitor Unity script compilation. get_status reports whether the editor is compiling " +
				"or reloading along with current errors and warnings; wait_for_complete polls until compilation " +
				"finishes or the timeout expires; get_errors and get_warnings list console diagnostics; " +
				"clear_errors clears the console; force_recompile refreshes assets to trigger a recompile.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"action": map[string]interface{}{
						"type":        "string",
						"enum":        compile.Actions(),
						"description": "Operation to perform",
					},
					"timeout_seconds": map[string]interface{}{
						"type":        "integer",
						"default":     30,
						"description": "wait_for_complete only: seconds to wait before reporting a timeout",
					},
					"include_stack_trace": map[string]interface{}{
						"type":        "boolean",
						"default":     false,
						"description": "get_errors only: attach stack traces to errors that have one",
					},
				},
				"required": []string{"action"},
			},
		},
		{
			Name:        ToolPingEditor,
			Description: "Check that the Unity editor bridge is reachable",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// RegisterTools registers all tool handlers
func (s *MCPServer) RegisterTools() {
	s.tools[ToolCompileMonitor] = s.toolCompileMonitor
	s.tools[ToolPingEditor] = s.toolPingEditor
}

func (s *MCPServer) toolCompileMonitor(ctx context.Context, params map[string]interface{}) (*envelope.Result, error) {
	action, ok := params["action"].(string)
	if !ok || action == "" {
		return nil, errors.New(errors.InvalidParameter, "Missing required parameter: action")
	}

	p, err := compile.ParseParams(params)
	if err != nil {
		return nil, err
	}

	return s.dispatcher.Dispatch(ctx, action, p), nil
}

func (s *MCPServer) toolPingEditor(ctx context.Context, _ map[string]interface{}) (*envelope.Result, error) {
	if s.pinger == nil {
		return envelope.Fail(errors.BridgeUnavailable, "No Unity bridge configured"), nil
	}
	if err := s.pinger.Ping(ctx); err != nil {
		return envelope.New().Error("Ping", err).Build(), nil
	}

	data := map[string]interface{}{"reachable": true}
	if s.bridgeAddr != "" {
		data["address"] = s.bridgeAddr
	}
	return envelope.OK("Unity editor is responding", data), nil
}
