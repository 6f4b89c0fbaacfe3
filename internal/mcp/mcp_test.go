package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"unitymcp/internal/compile"
	"unitymcp/internal/errors"
	"unitymcp/internal/unity"
)

// fakeEditor answers bridge commands with a fixed editor state and console.
type fakeEditor struct {
	mu        sync.Mutex
	compiling bool
	console   string
	calls     []string
}

func (f *fakeEditor) Send(ctx context.Context, command string, params map[string]interface{}) (*unity.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, command)

	switch command {
	case compile.CommandManageEditor:
		return &unity.Response{
			Success: true,
			Data:    json.RawMessage(fmt.Sprintf(`{"isCompiling":%v,"isUpdating":false}`, f.compiling)),
		}, nil
	case compile.CommandReadConsole:
		if params["action"] == "clear" {
			return &unity.Response{Success: true, Message: "Console cleared"}, nil
		}
		return &unity.Response{Success: true, Data: json.RawMessage(f.console)}, nil
	case compile.CommandExecuteMenuItem:
		return &unity.Response{Success: true}, nil
	}
	return nil, errors.New(errors.CommandFailed, "unknown command "+command)
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMCPServer(editor *fakeEditor, pinger Pinger) *MCPServer {
	logger := testLogger()
	monitor := compile.NewMonitor(editor, logger, compile.Options{PollInterval: 10 * time.Millisecond})
	return NewMCPServer("test", compile.NewDispatcher(monitor, logger), pinger, logger)
}

// runSession feeds the given lines to the server and returns responses by id.
func runSession(t *testing.T, s *MCPServer, lines ...string) map[string]map[string]interface{} {
	t.Helper()

	var out bytes.Buffer
	s.SetStdin(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	s.SetStdout(&out)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	responses := make(map[string]map[string]interface{})
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var msg map[string]interface{}
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			t.Fatalf("invalid response line %q: %v", line, err)
		}
		responses[fmt.Sprint(msg["id"])] = msg
	}
	return responses
}

func callTool(id int, name string, args string) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"tools/call","params":{"name":%q,"arguments":%s}}`, id, name, args)
}

// toolEnvelope extracts the envelope from a tools/call response.
func toolEnvelope(t *testing.T, resp map[string]interface{}) (map[string]interface{}, bool) {
	t.Helper()
	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no result: %v", resp)
	}
	content := result["content"].([]interface{})
	text := content[0].(map[string]interface{})["text"].(string)

	var env map[string]interface{}
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		t.Fatalf("tool text is not JSON: %v", err)
	}
	isError, _ := result["isError"].(bool)
	return env, isError
}

func TestMCPErrorError(t *testing.T) {
	err := &MCPError{Code: InvalidParams, Message: "invalid params", Data: map[string]string{"field": "action"}}
	if got := err.Error(); got != "invalid params" {
		t.Errorf("MCPError.Error() = %q", got)
	}
}

func TestInitialize(t *testing.T) {
	s := newTestMCPServer(&fakeEditor{console: `[]`}, nil)
	responses := runSession(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"test"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
	)

	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1 (notifications are not answered)", len(responses))
	}
	result := responses["1"]["result"].(map[string]interface{})
	if result["protocolVersion"] != ProtocolVersion {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
	info := result["serverInfo"].(map[string]interface{})
	if info["name"] != "unitymcp" || info["version"] != "test" {
		t.Errorf("serverInfo = %v", info)
	}
}

func TestToolsList(t *testing.T) {
	s := newTestMCPServer(&fakeEditor{console: `[]`}, nil)
	responses := runSession(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)

	tools := responses["2"]["result"].(map[string]interface{})["tools"].([]interface{})
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.(map[string]interface{})["name"].(string)] = true
	}
	if !names[ToolCompileMonitor] || !names[ToolPingEditor] {
		t.Errorf("tools = %v", names)
	}
}

func TestCompileMonitorTool(t *testing.T) {
	console := `[{"type":"Error","message":"CS0103","file":"A.cs","line":"3","stackTrace":"at A"},{"type":"Warning","message":"CS0168"}]`

	tests := []struct {
		name        string
		args        string
		wantSuccess bool
		wantMessage string
	}{
		{"status", `{"action":"get_status"}`, true, "Compilation status retrieved"},
		{"errors", `{"action":"get_errors","include_stack_trace":true}`, true, "Retrieved 1 compilation errors"},
		{"warnings", `{"action":"get_warnings"}`, true, "Retrieved 1 compilation warnings"},
		{"wait", `{"action":"wait_for_complete","timeoutSeconds":5}`, true, "Compilation completed"},
		{"clear", `{"action":"clear_errors"}`, true, "Console cleared"},
		{"recompile", `{"action":"force_recompile"}`, true, "Forced recompilation initiated"},
		{"unknown action", `{"action":"bogus"}`, false, "Unknown action: bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestMCPServer(&fakeEditor{console: console}, nil)
			responses := runSession(t, s, callTool(7, ToolCompileMonitor, tt.args))

			env, isError := toolEnvelope(t, responses["7"])
			if env["success"] != tt.wantSuccess {
				t.Errorf("success = %v, want %v", env["success"], tt.wantSuccess)
			}
			if isError == tt.wantSuccess {
				t.Errorf("isError = %v, want %v", isError, !tt.wantSuccess)
			}
			if env["message"] != tt.wantMessage {
				t.Errorf("message = %v, want %q", env["message"], tt.wantMessage)
			}
		})
	}
}

func TestCompileMonitorToolTimeout(t *testing.T) {
	s := newTestMCPServer(&fakeEditor{compiling: true, console: `[]`}, nil)
	responses := runSession(t, s, callTool(3, ToolCompileMonitor, `{"action":"wait_for_complete","timeout_seconds":0}`))

	env, isError := toolEnvelope(t, responses["3"])
	if !isError || env["success"] != false {
		t.Fatalf("envelope = %v, want failure", env)
	}
	data := env["data"].(map[string]interface{})
	if data["timeout"] != true {
		t.Errorf("data = %v, want timeout marker", data)
	}
}

func TestCompileMonitorToolInvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{"missing action", `{}`},
		{"bad timeout", `{"action":"wait_for_complete","timeout_seconds":"soon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			editor := &fakeEditor{console: `[]`}
			responses := runSession(t, newTestMCPServer(editor, nil), callTool(4, ToolCompileMonitor, tt.args))

			rpcErr, ok := responses["4"]["error"].(map[string]interface{})
			if !ok {
				t.Fatalf("response = %v, want JSON-RPC error", responses["4"])
			}
			if rpcErr["code"] != float64(InvalidParams) {
				t.Errorf("code = %v, want %d", rpcErr["code"], InvalidParams)
			}
			if len(editor.calls) != 0 {
				t.Errorf("editor called %v", editor.calls)
			}
		})
	}
}

func TestPingEditorTool(t *testing.T) {
	tests := []struct {
		name        string
		pinger      Pinger
		wantSuccess bool
	}{
		{"reachable", fakePinger{}, true},
		{"unreachable", fakePinger{err: errors.New(errors.BridgeUnavailable, "Unity bridge at 127.0.0.1:6400 did not answer ping")}, false},
		{"not configured", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestMCPServer(&fakeEditor{console: `[]`}, tt.pinger)
			responses := runSession(t, s, callTool(5, ToolPingEditor, `{}`))

			env, _ := toolEnvelope(t, responses["5"])
			if env["success"] != tt.wantSuccess {
				t.Errorf("envelope = %v, want success=%v", env, tt.wantSuccess)
			}
		})
	}
}

func TestProtocolErrors(t *testing.T) {
	s := newTestMCPServer(&fakeEditor{console: `[]`}, nil)
	responses := runSession(t, s,
		`{"jsonrpc":"2.0","id":10,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":11,"method":"tools/call","params":{"name":"nope"}}`,
		`{"jsonrpc":"2.0","id":12,"method":"tools/call","params":"bad"}`,
		`not json`,
		`{"jsonrpc":"2.0","id":13,"method":"ping"}`,
	)

	wantCodes := map[string]float64{
		"10": MethodNotFound,
		"11": InvalidParams,
		"12": InvalidParams,
	}
	for id, code := range wantCodes {
		rpcErr, ok := responses[id]["error"].(map[string]interface{})
		if !ok || rpcErr["code"] != code {
			t.Errorf("response %s = %v, want error code %v", id, responses[id], code)
		}
	}

	parseErr, ok := responses["<nil>"]["error"].(map[string]interface{})
	if !ok || parseErr["code"] != float64(ParseError) {
		t.Errorf("malformed line response = %v, want parse error", responses["<nil>"])
	}

	if _, ok := responses["13"]["result"]; !ok {
		t.Errorf("ping response = %v, want result", responses["13"])
	}
}

func TestShutdownCancelsInFlightCalls(t *testing.T) {
	editor := &fakeEditor{compiling: true, console: `[]`}
	s := newTestMCPServer(editor, nil)

	done := make(chan map[string]map[string]interface{}, 1)
	go func() {
		done <- runSession(t, s, callTool(9, ToolCompileMonitor, `{"action":"wait_for_complete","timeout_seconds":3600}`))
	}()

	select {
	case responses := <-done:
		env, isError := toolEnvelope(t, responses["9"])
		if !isError || env["success"] != false {
			t.Errorf("envelope = %v, want cancelled failure", env)
		}
		if s.InFlight() != 0 {
			t.Errorf("InFlight() = %d after shutdown", s.InFlight())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after EOF with a wait in flight")
	}
}

func TestCancelledNotification(t *testing.T) {
	editor := &fakeEditor{compiling: true, console: `[]`}
	s := newTestMCPServer(editor, nil)

	pr, pw := io.Pipe()
	var out bytes.Buffer
	s.SetStdin(pr)
	s.SetStdout(&out)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	fmt.Fprintln(pw, callTool(21, ToolCompileMonitor, `{"action":"wait_for_complete","timeout_seconds":3600}`))

	deadline := time.Now().Add(2 * time.Second)
	for s.InFlight() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.InFlight() != 1 {
		t.Fatalf("InFlight() = %d, want 1", s.InFlight())
	}

	fmt.Fprintln(pw, `{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":21,"reason":"user"}}`)

	for s.InFlight() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.InFlight() != 0 {
		t.Errorf("InFlight() = %d after cancellation", s.InFlight())
	}

	pw.Close()
	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !strings.Contains(out.String(), "Compilation wait cancelled") {
		t.Errorf("output = %s, want cancellation envelope", out.String())
	}
}
