package mcp

import (
	"context"
	"fmt"
)

// handleMessage processes an incoming MCP message and returns a response.
// tools/call answers asynchronously and returns nil here.
func (s *MCPServer) handleMessage(ctx context.Context, msg *MCPMessage) *MCPMessage {
	if msg.IsRequest() {
		return s.handleRequest(ctx, msg)
	}

	if msg.IsNotification() {
		s.handleNotification(msg)
		return nil
	}

	// Responses to server-initiated requests are not expected.
	if msg.Id != nil && msg.Method == "" {
		s.logger.Debug("Ignoring client response",
			"id", msg.Id,
		)
		return nil
	}

	return NewErrorMessage(msg.Id, InvalidRequest, "Invalid message: not a request or notification", nil)
}

// handleRequest handles a JSON-RPC request
func (s *MCPServer) handleRequest(ctx context.Context, msg *MCPMessage) *MCPMessage {
	s.logger.Debug("Handling request",
		"method", msg.Method,
		"id", msg.Id,
	)

	switch msg.Method {
	case "initialize":
		return s.handleInitializeRequest(msg)
	case "tools/list":
		return NewResultMessage(msg.Id, map[string]interface{}{
			"tools": s.GetToolDefinitions(),
		})
	case "tools/call":
		return s.handleCallToolRequest(ctx, msg)
	case "ping":
		return NewResultMessage(msg.Id, map[string]interface{}{})
	default:
		return NewErrorMessage(msg.Id, MethodNotFound, fmt.Sprintf("Method not found: %s", msg.Method), nil)
	}
}

// handleNotification handles a JSON-RPC notification
func (s *MCPServer) handleNotification(msg *MCPMessage) {
	switch msg.Method {
	case "notifications/initialized":
		s.logger.Info("Client initialized")
	case "notifications/cancelled":
		params, _ := msg.paramsObject()
		id := params["requestId"]
		if id != nil && s.cancelRequest(id) {
			s.logger.Info("Cancelled tool call",
				"id", id,
				"reason", params["reason"],
			)
		}
	default:
		s.logger.Debug("Unknown notification",
			"method", msg.Method,
		)
	}
}

// handleInitializeRequest handles the initialize request
func (s *MCPServer) handleInitializeRequest(msg *MCPMessage) *MCPMessage {
	params, ok := msg.paramsObject()
	if !ok {
		params = map[string]interface{}{}
	}
	return NewResultMessage(msg.Id, s.handleInitialize(params))
}

// handleCallToolRequest validates a tools/call request and runs the tool in
// its own goroutine so long waits do not block the message loop.
func (s *MCPServer) handleCallToolRequest(ctx context.Context, msg *MCPMessage) *MCPMessage {
	params, ok := msg.paramsObject()
	if !ok {
		return NewErrorMessage(msg.Id, InvalidParams, "Invalid params: expected object", nil)
	}

	toolName, ok := params["name"].(string)
	if !ok || toolName == "" {
		return NewErrorMessage(msg.Id, InvalidParams, "Invalid params: missing tool name", nil)
	}

	handler, exists := s.tools[toolName]
	if !exists {
		return NewErrorMessage(msg.Id, InvalidParams, fmt.Sprintf("Unknown tool: %s", toolName), nil)
	}

	args, ok := params["arguments"].(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	callCtx, cancel := context.WithCancel(ctx)
	s.track(msg.Id, cancel)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer cancel()
		defer s.untrack(msg.Id)

		response := s.runTool(callCtx, msg.Id, toolName, handler, args)
		if err := s.writeMessage(response); err != nil {
			s.logger.Error("Error writing tool response",
				"tool", toolName,
				"error", err.Error(),
			)
		}
	}()

	return nil
}

// runTool executes one tool handler and wraps its envelope as MCP content.
func (s *MCPServer) runTool(ctx context.Context, id interface{}, name string, handler ToolHandler, args map[string]interface{}) (response *MCPMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Panic in tool handler",
				"tool", name,
				"panic", fmt.Sprint(rec),
			)
			response = NewErrorMessage(id, InternalError, fmt.Sprintf("%s error: %v", name, rec), nil)
		}
	}()

	s.logger.Debug("Calling tool",
		"tool", name,
		"params", args,
	)

	result, err := handler(ctx, args)
	if err != nil {
		return NewErrorMessage(id, InvalidParams, err.Error(), nil)
	}

	content, err := toolContent(result)
	if err != nil {
		return NewErrorMessage(id, InternalError, err.Error(), nil)
	}
	return NewResultMessage(id, content)
}

