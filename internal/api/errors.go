package api

import (
	"encoding/json"
	"net/http"

	"unitymcp/internal/envelope"
	"unitymcp/internal/errors"
)

// ErrorResponse is the body of requests rejected before reaching the monitor
type ErrorResponse struct {
	Error          string             `json:"error"`
	Code           string             `json:"code"`
	Details        interface{}        `json:"details,omitempty"`
	SuggestedFixes []errors.FixAction `json:"suggestedFixes,omitempty"`
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err error, status int) {
	resp := ErrorResponse{
		Error: err.Error(),
		Code:  string(errors.CodeOf(err)),
	}

	if me, ok := errors.As(err); ok {
		resp.Error = me.Message
		resp.Details = me.Details
		resp.SuggestedFixes = errors.GetSuggestedFixes(me.Code)
	}

	WriteJSON(w, resp, status)
}

// WriteResult writes an action envelope with a status derived from its code
func WriteResult(w http.ResponseWriter, result *envelope.Result) {
	status := http.StatusOK
	if !result.Success {
		status = MapErrorCodeToStatus(result.Code)
	}
	WriteJSON(w, result, status)
}

// MapErrorCodeToStatus maps error codes to HTTP status codes
func MapErrorCodeToStatus(code errors.ErrorCode) int {
	switch code {
	case errors.Timeout:
		return http.StatusGatewayTimeout // 504
	case errors.BridgeUnavailable:
		return http.StatusServiceUnavailable // 503
	case errors.UnknownAction, errors.InvalidParameter:
		return http.StatusBadRequest // 400
	default:
		return http.StatusBadGateway // 502
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// BadRequest writes a 400 Bad Request error
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, errors.New(errors.InvalidParameter, message), http.StatusBadRequest)
}

// InternalError writes a 500 Internal Server Error
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, errors.New(errors.InternalError, message), http.StatusInternalServerError)
}

// MethodNotAllowed writes a 405 with the allowed method
func MethodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	WriteError(w, errors.New(errors.InvalidParameter, "Method not allowed"), http.StatusMethodNotAllowed)
}
