package api

import (
	"context"
	"net/http"
	"time"

	"unitymcp/internal/version"
)

// readyTimeout bounds the bridge ping behind /ready
const readyTimeout = 5 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Bridge    bool      `json:"bridge"`
	Error     string    `json:"error,omitempty"`
}

// handleHealth responds to liveness checks
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
	}, http.StatusOK)
}

// handleReady reports whether the Unity bridge answers a ping
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	response := ReadyResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Bridge:    true,
	}
	statusCode := http.StatusOK

	var err error
	if s.pinger == nil {
		err = errNoBridge
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		err = s.pinger.Ping(ctx)
	}

	if err != nil {
		response.Status = "not_ready"
		response.Bridge = false
		response.Error = err.Error()
		statusCode = http.StatusServiceUnavailable
	}

	WriteJSON(w, response, statusCode)
}
