// Package mcp serves the compile monitor over the Model Context Protocol:
// newline-delimited JSON-RPC 2.0 on stdin/stdout.
package mcp

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"unitymcp/internal/compile"
)

// Pinger checks that the editor bridge is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MCPServer represents the MCP server
type MCPServer struct {
	stdin   io.Reader
	stdout  io.Writer
	scanner *bufio.Scanner
	writeMu sync.Mutex
	logger  *slog.Logger
	version string

	dispatcher *compile.Dispatcher
	pinger     Pinger
	bridgeAddr string
	tools      map[string]ToolHandler

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

// NewMCPServer creates a server that answers tool calls through the
// dispatcher. pinger may be nil, in which case ping_editor reports failure.
func NewMCPServer(version string, dispatcher *compile.Dispatcher, pinger Pinger, logger *slog.Logger) *MCPServer {
	server := &MCPServer{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		logger:     logger,
		version:    version,
		dispatcher: dispatcher,
		pinger:     pinger,
		tools:      make(map[string]ToolHandler),
		inflight:   make(map[string]context.CancelFunc),
	}

	server.RegisterTools()
	return server
}

// SetBridgeAddr records the bridge address reported by ping_editor.
func (s *MCPServer) SetBridgeAddr(addr string) {
	s.bridgeAddr = addr
}

// Start processes messages until stdin closes or ctx is cancelled. In-flight
// tool calls are cancelled and awaited before it returns.
func (s *MCPServer) Start(ctx context.Context) error {
	s.logger.Info("MCP server starting",
		"version", s.version,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
	}()

	for {
		if ctx.Err() != nil {
			s.logger.Info("MCP server shutting down (context cancelled)")
			return nil
		}

		msg, err := s.readMessage()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				s.logger.Info("MCP server shutting down (EOF)")
				return nil
			}

			var malformed *errMalformed
			if stderrors.As(err, &malformed) {
				s.logger.Warn("Discarding malformed message",
					"error", err.Error(),
				)
				_ = s.writeError(nil, ParseError, fmt.Sprintf("Failed to parse message: %v", err))
				continue
			}

			s.logger.Error("Error reading message",
				"error", err.Error(),
			)
			return err
		}

		response := s.handleMessage(ctx, msg)
		if response != nil {
			if err := s.writeMessage(response); err != nil {
				s.logger.Error("Error writing response",
					"error", err.Error(),
				)
			}
		}
	}
}

// SetStdin sets the input stream (for testing)
func (s *MCPServer) SetStdin(r io.Reader) {
	s.stdin = r
	s.scanner = nil
}

// SetStdout sets the output stream (for testing)
func (s *MCPServer) SetStdout(w io.Writer) {
	s.stdout = w
}

// track registers a cancellable call under its request id.
func (s *MCPServer) track(id interface{}, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight[requestKey(id)] = cancel
}

func (s *MCPServer) untrack(id interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, requestKey(id))
}

// cancelRequest cancels an in-flight call. It reports whether one was found.
func (s *MCPServer) cancelRequest(id interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := requestKey(id)
	cancel, ok := s.inflight[key]
	if ok {
		cancel()
		delete(s.inflight, key)
	}
	return ok
}

// InFlight returns the number of tool calls still running.
func (s *MCPServer) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}
