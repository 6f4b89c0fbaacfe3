package compile

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"unitymcp/internal/unity"
)

type bridgeCall struct {
	command string
	params  map[string]interface{}
}

// scriptedBridge answers commands through a handler and records every call.
type scriptedBridge struct {
	mu     sync.Mutex
	calls  []bridgeCall
	handle func(command string, params map[string]interface{}) (*unity.Response, error)
}

func (b *scriptedBridge) Send(ctx context.Context, command string, params map[string]interface{}) (*unity.Response, error) {
	b.mu.Lock()
	b.calls = append(b.calls, bridgeCall{command: command, params: params})
	b.mu.Unlock()
	return b.handle(command, params)
}

func (b *scriptedBridge) Calls() []bridgeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bridgeCall(nil), b.calls...)
}

func (b *scriptedBridge) count(command, action string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.command == command && (action == "" || c.params["action"] == action) {
			n++
		}
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.PollInterval = 10 * time.Millisecond
	return opts
}

func newTestMonitor(b *scriptedBridge) *Monitor {
	return NewMonitor(b, discardLogger(), testOptions())
}

func rawJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func stateResponse(t *testing.T, compiling, updating bool) *unity.Response {
	return &unity.Response{
		Success: true,
		Data: rawJSON(t, map[string]interface{}{
			"isCompiling": compiling,
			"isUpdating":  updating,
			"isPlaying":   false,
		}),
	}
}

func consoleResponse(t *testing.T, entries ...map[string]interface{}) *unity.Response {
	if entries == nil {
		entries = []map[string]interface{}{}
	}
	return &unity.Response{Success: true, Data: rawJSON(t, entries)}
}

func entry(kind, message, file, line, stack string) map[string]interface{} {
	e := map[string]interface{}{
		"type":    kind,
		"message": message,
		"file":    file,
		"line":    line,
	}
	if stack != "" {
		e["stackTrace"] = stack
	}
	return e
}

// editorBridge reports the given states in order (repeating the last) and a
// fixed console.
func editorBridge(t *testing.T, console *unity.Response, states ...[2]bool) *scriptedBridge {
	var mu sync.Mutex
	i := 0
	return &scriptedBridge{
		handle: func(command string, params map[string]interface{}) (*unity.Response, error) {
			switch command {
			case CommandManageEditor:
				mu.Lock()
				s := states[i]
				if i < len(states)-1 {
					i++
				}
				mu.Unlock()
				return stateResponse(t, s[0], s[1]), nil
			case CommandReadConsole:
				return console, nil
			}
			t.Errorf("unexpected command %q", command)
			return &unity.Response{}, nil
		},
	}
}
