package api

import (
	"net/http"

	"unitymcp/internal/compile"
	"unitymcp/internal/version"
)

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	// Health and readiness checks
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)

	// Compile monitor actions
	s.router.HandleFunc("GET /compile/status", s.actionHandler(compile.ActionGetStatus))
	s.router.HandleFunc("POST /compile/wait", s.handleWait)
	s.router.HandleFunc("GET /compile/errors", s.handleErrors)
	s.router.HandleFunc("GET /compile/warnings", s.actionHandler(compile.ActionGetWarnings))
	s.router.HandleFunc("POST /compile/clear", s.actionHandler(compile.ActionClearErrors))
	s.router.HandleFunc("POST /compile/recompile", s.actionHandler(compile.ActionForceRecompile))

	// Generic action endpoint, parameters in the JSON body
	s.router.HandleFunc("POST /actions/{action}", s.handleAction)

	s.router.HandleFunc("GET /{$}", s.handleRoot)
}

// handleRoot lists the available endpoints
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"name":    "unitymcp HTTP API",
		"version": version.Version,
		"actions": compile.Actions(),
		"endpoints": []string{
			"GET /health - Liveness check",
			"GET /ready - Unity bridge reachability",
			"GET /compile/status - Compilation status snapshot",
			"POST /compile/wait?timeoutSeconds=N - Wait for compilation to finish",
			"GET /compile/errors?includeStackTrace=true - Compilation errors",
			"GET /compile/warnings - Compilation warnings",
			"POST /compile/clear - Clear the editor console",
			"POST /compile/recompile - Force a script recompile",
			"POST /actions/{action} - Run any compile_monitor action",
		},
	}

	WriteJSON(w, response, http.StatusOK)
}
