// Package envelope provides the uniform result shape returned by every
// compile monitor action: {success, message, data}. Whatever happens inside a
// handler, the caller only ever sees this envelope.
package envelope

import (
	"unitymcp/internal/errors"
)

// Result is the action result envelope.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	// Code is the structured reason for a failed result. It is for Go callers
	// (HTTP status mapping, exit codes) and never serialized.
	Code errors.ErrorCode `json:"-"`
}

// OK creates a successful result.
func OK(message string, data interface{}) *Result {
	return New().Message(message).Data(data).Build()
}

// Fail creates a failed result with no payload.
func Fail(code errors.ErrorCode, message string) *Result {
	return New().Failure(code, message).Build()
}

// IsTimeout reports whether the result is a wait timeout.
func (r *Result) IsTimeout() bool {
	return r != nil && !r.Success && r.Code == errors.Timeout
}
