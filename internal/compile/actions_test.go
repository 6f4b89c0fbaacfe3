package compile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"unitymcp/internal/errors"
	"unitymcp/internal/unity"
)

func newTestDispatcher(b *scriptedBridge) *Dispatcher {
	return NewDispatcher(newTestMonitor(b), discardLogger())
}

// envelopeJSON renders a result the way callers receive it.
func envelopeJSON(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestDispatchUnknownAction(t *testing.T) {
	b := &scriptedBridge{
		handle: func(string, map[string]interface{}) (*unity.Response, error) {
			t.Error("bridge should not be called for unknown actions")
			return &unity.Response{}, nil
		},
	}

	res := newTestDispatcher(b).Dispatch(context.Background(), "bogus", Params{})
	if res.Success {
		t.Fatal("unknown action should fail")
	}
	if res.Message != "Unknown action: bogus" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.Code != errors.UnknownAction {
		t.Errorf("Code = %q, want UNKNOWN_ACTION", res.Code)
	}
	if len(b.Calls()) != 0 {
		t.Errorf("bridge called %d times", len(b.Calls()))
	}
}

func TestDispatchGetStatus(t *testing.T) {
	console := consoleResponse(t,
		entry("Error", "e1", "a.cs", "1", "trace"),
		entry("Warning", "w1", "b.cs", "2", ""),
		entry("Warning", "w2", "c.cs", "3", ""),
	)
	b := editorBridge(t, console, [2]bool{true, true})

	res := newTestDispatcher(b).Dispatch(context.Background(), ActionGetStatus, Params{})
	if !res.Success || res.Message != "Compilation status retrieved" {
		t.Fatalf("result = %+v", res)
	}

	data := envelopeJSON(t, res)["data"].(map[string]interface{})
	want := map[string]interface{}{
		"isCompiling":  true,
		"isUpdating":   true,
		"hasErrors":    true,
		"hasWarnings":  true,
		"errorCount":   float64(1),
		"warningCount": float64(2),
		"status":       "compiling",
	}
	for k, v := range want {
		if data[k] != v {
			t.Errorf("data[%q] = %v, want %v", k, data[k], v)
		}
	}
	if errs := data["errors"].([]interface{}); len(errs) != 1 {
		t.Errorf("errors = %v", errs)
	}
}

func TestDispatchGetStatusEditorFailure(t *testing.T) {
	b := &scriptedBridge{
		handle: func(string, map[string]interface{}) (*unity.Response, error) {
			return nil, fmt.Errorf("dial tcp 127.0.0.1:6400: connection refused")
		},
	}

	res := newTestDispatcher(b).Dispatch(context.Background(), ActionGetStatus, Params{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Message != "Failed to get editor state" {
		t.Errorf("Message = %q, want 'Failed to get editor state'", res.Message)
	}
	if res.Code != errors.EditorStateUnavailable {
		t.Errorf("Code = %q", res.Code)
	}
	if n := b.count(CommandReadConsole, ""); n != 0 {
		t.Errorf("console read %d times", n)
	}
}

func TestDispatchWaitForComplete(t *testing.T) {
	b := editorBridge(t, consoleResponse(t), [2]bool{true, false}, [2]bool{false, false})

	res := newTestDispatcher(b).Dispatch(context.Background(), ActionWaitForComplete, Params{}.WithTimeout(5))
	if !res.Success || res.Message != "Compilation completed" {
		t.Fatalf("result = %+v", res)
	}

	data := envelopeJSON(t, res)["data"].(map[string]interface{})
	final := data["finalStatus"].(map[string]interface{})
	if final["isCompiling"] != false || final["status"] != "idle" {
		t.Errorf("finalStatus = %v", final)
	}
	if _, ok := data["waitTime"].(float64); !ok {
		t.Errorf("waitTime = %v, want seconds", data["waitTime"])
	}
}

func TestDispatchWaitTimeout(t *testing.T) {
	b := editorBridge(t, consoleResponse(t), [2]bool{true, false})

	res := newTestDispatcher(b).Dispatch(context.Background(), ActionWaitForComplete, Params{}.WithTimeout(0))
	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if !res.IsTimeout() {
		t.Errorf("Code = %q, want TIMEOUT", res.Code)
	}
	if res.Message != "Compilation timeout after 0 seconds" {
		t.Errorf("Message = %q", res.Message)
	}

	data := envelopeJSON(t, res)["data"].(map[string]interface{})
	if data["timeout"] != true {
		t.Errorf("data = %v, want timeout marker", data)
	}
}

func TestDispatchGetErrors(t *testing.T) {
	console := consoleResponse(t,
		entry("Error", "e1", "a.cs", "1", "trace-1"),
		entry("Log", "noise", "", "", ""),
		entry("Error", "e2", "b.cs", "2", "trace-2"),
	)

	tests := []struct {
		name      string
		params    Params
		wantStack bool
	}{
		{"without stack traces", Params{}, false},
		{"with stack traces", Params{IncludeStackTrace: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := editorBridge(t, console, [2]bool{false, false})
			res := newTestDispatcher(b).Dispatch(context.Background(), ActionGetErrors, tt.params)
			if !res.Success || res.Message != "Retrieved 2 compilation errors" {
				t.Fatalf("result = %+v", res)
			}

			data := envelopeJSON(t, res)["data"].(map[string]interface{})
			if data["errorCount"] != float64(2) {
				t.Errorf("errorCount = %v", data["errorCount"])
			}
			for _, e := range data["errors"].([]interface{}) {
				_, has := e.(map[string]interface{})["stackTrace"]
				if has != tt.wantStack {
					t.Errorf("stackTrace present = %v, want %v", has, tt.wantStack)
				}
			}
		})
	}
}

func TestDispatchGetWarnings(t *testing.T) {
	console := consoleResponse(t, entry("Warning", "w1", "a.cs", "1", "trace"))
	b := editorBridge(t, console, [2]bool{false, false})

	res := newTestDispatcher(b).Dispatch(context.Background(), ActionGetWarnings, Params{})
	if !res.Success || res.Message != "Retrieved 1 compilation warnings" {
		t.Fatalf("result = %+v", res)
	}
	data := envelopeJSON(t, res)["data"].(map[string]interface{})
	if data["warningCount"] != float64(1) {
		t.Errorf("warningCount = %v", data["warningCount"])
	}
}

func TestDispatchClearAndRecompileSingleCall(t *testing.T) {
	tests := []struct {
		action  string
		wantMsg string
	}{
		{ActionClearErrors, "Console cleared"},
		{ActionForceRecompile, "Forced recompilation initiated"},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			b := &scriptedBridge{
				handle: func(string, map[string]interface{}) (*unity.Response, error) {
					return &unity.Response{Success: true}, nil
				},
			}
			res := newTestDispatcher(b).Dispatch(context.Background(), tt.action, Params{})
			if !res.Success || res.Message != tt.wantMsg {
				t.Errorf("result = %+v", res)
			}
			if n := len(b.Calls()); n != 1 {
				t.Errorf("bridge called %d times, want 1", n)
			}
		})
	}
}

func TestDispatchWrapsUnexpectedErrors(t *testing.T) {
	b := &scriptedBridge{
		handle: func(string, map[string]interface{}) (*unity.Response, error) {
			return nil, fmt.Errorf("connection reset by peer")
		},
	}

	res := newTestDispatcher(b).Dispatch(context.Background(), ActionClearErrors, Params{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Message != "Console clear error: connection reset by peer" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.Code != errors.InternalError {
		t.Errorf("Code = %q, want INTERNAL_ERROR", res.Code)
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	b := &scriptedBridge{
		handle: func(string, map[string]interface{}) (*unity.Response, error) {
			panic("boom")
		},
	}

	res := newTestDispatcher(b).Dispatch(context.Background(), ActionForceRecompile, Params{})
	if res == nil || res.Success {
		t.Fatalf("result = %+v, want failure", res)
	}
	if res.Message != "Force recompile error: boom" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestDispatchEveryActionReturnsEnvelope(t *testing.T) {
	b := &scriptedBridge{
		handle: func(string, map[string]interface{}) (*unity.Response, error) {
			return nil, errors.New(errors.BridgeUnavailable, "Unity bridge at 127.0.0.1:6400 did not answer")
		},
	}
	d := newTestDispatcher(b)

	for _, action := range Actions() {
		res := d.Dispatch(context.Background(), action, Params{}.WithTimeout(0))
		if res == nil {
			t.Fatalf("%s returned nil", action)
		}
		out := envelopeJSON(t, res)
		if _, ok := out["success"]; !ok {
			t.Errorf("%s: envelope missing success", action)
		}
		if msg, _ := out["message"].(string); strings.TrimSpace(msg) == "" {
			t.Errorf("%s: empty message", action)
		}
		if _, ok := out["code"]; ok {
			t.Errorf("%s: code should not be serialized", action)
		}
	}
}
