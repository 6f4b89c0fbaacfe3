package main

import (
	"github.com/spf13/cobra"

	"unitymcp/internal/mcp"
	"unitymcp/internal/version"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol (MCP) server.

The server speaks JSON-RPC 2.0 over stdio and exposes two tools:
  - compile_monitor: get_status, wait_for_complete, get_errors,
    get_warnings, clear_errors, force_recompile
  - ping_editor: check that the Unity bridge is reachable

Logs go to stderr and ~/.unitymcp/logs/mcp.log. This command is normally
started by an MCP client, not by hand.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	logger, closer, err := newServiceLogger(appConfig, "mcp")
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signalContext()
	defer stop()

	flush := initTelemetry(ctx, appConfig, logger)
	defer flush()

	bridge := newBridge(appConfig, logger)
	dispatcher := newDispatcher(appConfig, bridge, logger)

	logger.Info("Starting MCP server",
		"version", version.Version,
		"bridge", bridge.Addr(),
		"project", projectRoot,
	)

	server := mcp.NewMCPServer(version.Version, dispatcher, bridge, logger)
	server.SetBridgeAddr(bridge.Addr())

	if err := server.Start(ctx); err != nil {
		logger.Error("MCP server error", "error", err)
		return err
	}
	return nil
}
