package mcp

// ServerCapabilities represents the capabilities exposed by the MCP server
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability represents the tools capability
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ServerInfo identifies this server to the client.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult represents the result of the initialize request
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

const serverInstructions = "Use compile_monitor to check Unity compilation state. " +
	"After editing scripts call force_recompile, then wait_for_complete, then get_errors."

// handleInitialize builds the initialize result. The tool list is fixed.
func (s *MCPServer) handleInitialize(params map[string]interface{}) *InitializeResult {
	s.logger.Info("MCP server initializing",
		"clientInfo", params["clientInfo"],
		"clientProtocol", params["protocolVersion"],
	)

	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{ListChanged: false},
		},
		ServerInfo: ServerInfo{
			Name:    "unitymcp",
			Version: s.version,
		},
		Instructions: serverInstructions,
	}
}
