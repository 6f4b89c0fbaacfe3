package unity

import (
	"encoding/json"
	"time"
)

// Response is the editor's reply to a command once the bridge accepted it.
// A transport-level failure is returned as an error instead, so a Response
// with Success=true and empty Data is a genuine, successful empty result.
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// FailureMessage returns the most descriptive failure text in the response.
func (r *Response) FailureMessage() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

// request is the wire shape of a command.
type request struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params"`
}

// bridgeReply is the outer reply written by the bridge.
type bridgeReply struct {
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// reloadHint is present in a result while the editor is reloading its domain.
type reloadHint struct {
	State        string `json:"state"`
	RetryAfterMs int    `json:"retry_after_ms"`
	Message      string `json:"message"`
}

func (h reloadHint) reloading() bool {
	return h.State == "reloading"
}

func (h reloadHint) retryAfter() time.Duration {
	if h.RetryAfterMs <= 0 {
		return 0
	}
	return time.Duration(h.RetryAfterMs) * time.Millisecond
}
