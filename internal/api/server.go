// Package api exposes the compile monitor actions over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"unitymcp/internal/auth"
	"unitymcp/internal/compile"
)

// Pinger checks that the editor bridge is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server
type Server struct {
	router     *http.ServeMux
	server     *http.Server
	config     *ServerConfig
	logger     *slog.Logger
	dispatcher *compile.Dispatcher
	pinger     Pinger
	auth       *auth.Manager
}

// NewServer creates a new HTTP server instance
func NewServer(config *ServerConfig, dispatcher *compile.Dispatcher, pinger Pinger, logger *slog.Logger) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	authManager, err := auth.NewManager(config.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	s := &Server{
		router:     http.NewServeMux(),
		config:     config,
		logger:     logger,
		dispatcher: dispatcher,
		pinger:     pinger,
		auth:       authManager,
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.applyMiddleware(s.router),
		ReadTimeout:  seconds(config.ReadTimeoutSeconds),
		WriteTimeout: seconds(config.WriteTimeoutSeconds),
		IdleTimeout:  seconds(config.IdleTimeoutSeconds),
	}

	return s, nil
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.config.Addr
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on an existing listener until Shutdown
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting HTTP server",
		"addr", ln.Addr().String(),
		"auth", s.auth.Enabled(),
	)

	s.server.BaseContext = func(net.Listener) context.Context { return ctx }
	s.auth.StartBackgroundTasks(ctx)

	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server shut down successfully")
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Last one applied runs first
	handler = AuthMiddleware(s.auth, s.logger)(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	if s.config.CORS {
		handler = CORSMiddleware()(handler)
	}
	return handler
}
