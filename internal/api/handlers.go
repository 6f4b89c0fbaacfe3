package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"unitymcp/internal/compile"
	"unitymcp/internal/errors"
)

// maxBodySize bounds JSON bodies on /actions/{action}
const maxBodySize = 64 * 1024

var errNoBridge = errors.New(errors.BridgeUnavailable, "No Unity bridge configured")

// actionHandler runs a parameterless action
func (s *Server) actionHandler(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, action, compile.Params{})
	}
}

// handleWait handles POST /compile/wait?timeoutSeconds=N
func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	var p compile.Params
	if raw := r.URL.Query().Get("timeoutSeconds"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			BadRequest(w, fmt.Sprintf("Invalid timeoutSeconds: %s", raw))
			return
		}
		p = p.WithTimeout(n)
	}
	s.dispatch(w, r, compile.ActionWaitForComplete, p)
}

// handleErrors handles GET /compile/errors?includeStackTrace=true
func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	var p compile.Params
	if raw := r.URL.Query().Get("includeStackTrace"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			BadRequest(w, fmt.Sprintf("Invalid includeStackTrace: %s", raw))
			return
		}
		p.IncludeStackTrace = b
	}
	s.dispatch(w, r, compile.ActionGetErrors, p)
}

// handleAction handles POST /actions/{action} with optional JSON parameters
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	args := map[string]interface{}{}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		BadRequest(w, "Failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		WriteError(w, errors.New(errors.InvalidParameter, "Request body too large"), http.StatusRequestEntityTooLarge)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			BadRequest(w, "Request body must be a JSON object")
			return
		}
	}

	p, err := compile.ParseParams(args)
	if err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	s.dispatch(w, r, r.PathValue("action"), p)
}

// dispatch runs one action under the request context and writes its envelope
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, action string, p compile.Params) {
	if p.TimeoutSeconds != nil && *p.TimeoutSeconds > s.config.MaxWaitSeconds {
		BadRequest(w, fmt.Sprintf("timeoutSeconds cannot exceed %d", s.config.MaxWaitSeconds))
		return
	}

	s.logger.Debug("Dispatching action",
		"action", action,
		"requestID", GetRequestID(r.Context()),
		"keyID", GetAuthKeyID(r.Context()),
	)

	result := s.dispatcher.Dispatch(r.Context(), action, p)
	WriteResult(w, result)
}
