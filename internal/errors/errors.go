package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// BridgeUnavailable indicates the editor bridge could not be reached
	BridgeUnavailable ErrorCode = "BRIDGE_UNAVAILABLE"
	// CommandFailed indicates the editor answered with a failure envelope
	CommandFailed ErrorCode = "COMMAND_FAILED"
	// EditorStateUnavailable indicates the editor state query did not succeed
	EditorStateUnavailable ErrorCode = "EDITOR_STATE_UNAVAILABLE"
	// InvalidResponse indicates a bridge reply that could not be decoded
	InvalidResponse ErrorCode = "INVALID_RESPONSE"
	// Timeout indicates a wait exceeded its deadline
	Timeout ErrorCode = "TIMEOUT"
	// Cancelled indicates the caller abandoned the operation
	Cancelled ErrorCode = "CANCELLED"
	// UnknownAction indicates an action name outside the supported set
	UnknownAction ErrorCode = "UNKNOWN_ACTION"
	// InvalidParameter indicates a malformed caller parameter
	InvalidParameter ErrorCode = "INVALID_PARAMETER"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// MonitorError is a typed failure carrying a stable code, a human-readable
// message and optional structured details.
type MonitorError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates a MonitorError without a cause
func New(code ErrorCode, message string) *MonitorError {
	return &MonitorError{
		Code:           code,
		Message:        message,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Wrap creates a MonitorError around an underlying cause
func Wrap(code ErrorCode, message string, cause error) *MonitorError {
	e := New(code, message)
	e.cause = cause
	return e
}

// Error implements the error interface
func (e *MonitorError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *MonitorError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a MonitorError with the same code.
func (e *MonitorError) Is(target error) bool {
	t, ok := target.(*MonitorError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds details to the error
func (e *MonitorError) WithDetails(details interface{}) *MonitorError {
	e.Details = details
	return e
}

// As finds the first MonitorError in err's chain.
func As(err error) (*MonitorError, bool) {
	var me *MonitorError
	if stderrors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// CodeOf returns the code of the first MonitorError in err's chain,
// or InternalError for any other non-nil error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	if me, ok := As(err); ok {
		return me.Code
	}
	return InternalError
}

// IsTimeout reports whether err is a wait timeout.
func IsTimeout(err error) bool {
	return CodeOf(err) == Timeout
}

// IsCancelled reports whether err is a cancelled operation.
func IsCancelled(err error) bool {
	return CodeOf(err) == Cancelled
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	BridgeUnavailable: {
		{
			Type:        RunCommand,
			Command:     "unitymcp ping",
			Safe:        true,
			Description: "Check that the Unity editor is open and the MCP bridge is listening",
		},
	},
	EditorStateUnavailable: {
		{
			Type:        RunCommand,
			Command:     "unitymcp ping",
			Safe:        true,
			Description: "Verify the bridge answers before querying compile status",
		},
	},
	Timeout: {
		{
			Type:        RunCommand,
			Command:     "unitymcp compile wait --timeout 120",
			Safe:        true,
			Description: "Wait again with a longer timeout",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
