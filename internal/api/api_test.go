package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"unitymcp/internal/compile"
	"unitymcp/internal/errors"
	"unitymcp/internal/unity"
)

// fakeEditor answers bridge commands with a fixed state and console.
type fakeEditor struct {
	mu        sync.Mutex
	compiling bool
	stateErr  error
	calls     []string
}

func (f *fakeEditor) Send(ctx context.Context, command string, params map[string]interface{}) (*unity.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, command)

	switch command {
	case compile.CommandManageEditor:
		if f.stateErr != nil {
			return nil, f.stateErr
		}
		return &unity.Response{
			Success: true,
			Data:    json.RawMessage(fmt.Sprintf(`{"isCompiling":%v}`, f.compiling)),
		}, nil
	case compile.CommandReadConsole:
		if params["action"] == "clear" {
			return &unity.Response{Success: true}, nil
		}
		return &unity.Response{
			Success: true,
			Data:    json.RawMessage(`[{"type":"Error","message":"CS0103","file":"A.cs","line":"4","stackTrace":"at A"},{"type":"Warning","message":"CS0168"}]`),
		}, nil
	case compile.CommandExecuteMenuItem:
		return &unity.Response{Success: true}, nil
	}
	return nil, errors.New(errors.CommandFailed, "unknown command")
}

func (f *fakeEditor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, editor *fakeEditor, cfg *ServerConfig) *Server {
	t.Helper()
	logger := testLogger()
	monitor := compile.NewMonitor(editor, logger, compile.Options{PollInterval: 10 * time.Millisecond})
	s, err := NewServer(cfg, compile.NewDispatcher(monitor, logger), fakePinger{}, logger)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, target, body string, header http.Header) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header[k] = v
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("response is not JSON: %s", rec.Body.String())
		}
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeEditor{}, nil)
	rec, body := do(t, s, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("GET /health = %d %v", rec.Code, body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		pinger     Pinger
		wantStatus int
	}{
		{"bridge up", fakePinger{}, http.StatusOK},
		{"bridge down", fakePinger{err: errors.New(errors.BridgeUnavailable, "refused")}, http.StatusServiceUnavailable},
		{"no bridge", nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeEditor{}, nil)
			s.pinger = tt.pinger
			rec, _ := do(t, s, http.MethodGet, "/ready", "", nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("GET /ready = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestCompileEndpoints(t *testing.T) {
	tests := []struct {
		method      string
		target      string
		wantStatus  int
		wantMessage string
	}{
		{http.MethodGet, "/compile/status", http.StatusOK, "Compilation status retrieved"},
		{http.MethodPost, "/compile/wait?timeoutSeconds=5", http.StatusOK, "Compilation completed"},
		{http.MethodGet, "/compile/errors?includeStackTrace=true", http.StatusOK, "Retrieved 1 compilation errors"},
		{http.MethodGet, "/compile/warnings", http.StatusOK, "Retrieved 1 compilation warnings"},
		{http.MethodPost, "/compile/clear", http.StatusOK, "Console cleared"},
		{http.MethodPost, "/compile/recompile", http.StatusOK, "Forced recompilation initiated"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			s := newTestServer(t, &fakeEditor{}, nil)
			rec, body := do(t, s, tt.method, tt.target, "", nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", rec.Code, tt.wantStatus, body)
			}
			if body["success"] != true || body["message"] != tt.wantMessage {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestErrorsStackTraceQuery(t *testing.T) {
	s := newTestServer(t, &fakeEditor{}, nil)

	_, body := do(t, s, http.MethodGet, "/compile/errors", "", nil)
	errs := body["data"].(map[string]interface{})["errors"].([]interface{})
	if _, ok := errs[0].(map[string]interface{})["stackTrace"]; ok {
		t.Error("stackTrace should be omitted by default")
	}

	rec, _ := do(t, s, http.MethodGet, "/compile/errors?includeStackTrace=maybe", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad includeStackTrace status = %d, want 400", rec.Code)
	}
}

func TestWaitTimeoutMapsToGatewayTimeout(t *testing.T) {
	s := newTestServer(t, &fakeEditor{compiling: true}, nil)
	rec, body := do(t, s, http.MethodPost, "/compile/wait?timeoutSeconds=0", "", nil)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	if body["success"] != false || body["message"] != "Compilation timeout after 0 seconds" {
		t.Errorf("body = %v", body)
	}
	if body["data"].(map[string]interface{})["timeout"] != true {
		t.Errorf("data = %v, want timeout marker", body["data"])
	}
}

func TestWaitParameterValidation(t *testing.T) {
	tests := []struct {
		target string
	}{
		{"/compile/wait?timeoutSeconds=soon"},
		{"/compile/wait?timeoutSeconds=100000"},
	}
	for _, tt := range tests {
		editor := &fakeEditor{}
		s := newTestServer(t, editor, nil)
		rec, body := do(t, s, http.MethodPost, tt.target, "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", tt.target, rec.Code)
		}
		if body["code"] != string(errors.InvalidParameter) {
			t.Errorf("%s code = %v", tt.target, body["code"])
		}
		if editor.callCount() != 0 {
			t.Errorf("%s reached the editor", tt.target)
		}
	}
}

func TestStatusEditorFailureMapsToBadGateway(t *testing.T) {
	s := newTestServer(t, &fakeEditor{stateErr: errors.New(errors.CommandFailed, "boom")}, nil)
	rec, body := do(t, s, http.MethodGet, "/compile/status", "", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if body["message"] != "Failed to get editor state" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestGenericActionEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
	}{
		{"status", "/actions/get_status", "", http.StatusOK},
		{"errors with params", "/actions/get_errors", `{"includeStackTrace":true}`, http.StatusOK},
		{"wait with snake case", "/actions/wait_for_complete", `{"timeout_seconds":2}`, http.StatusOK},
		{"unknown action", "/actions/bogus", "", http.StatusBadRequest},
		{"bad json", "/actions/get_status", `[1,2]`, http.StatusBadRequest},
		{"bad params", "/actions/get_errors", `{"includeStackTrace":"perhaps"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeEditor{}, nil)
			rec, body := do(t, s, http.MethodPost, tt.target, tt.body, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%v)", rec.Code, tt.wantStatus, body)
			}
		})
	}
}

func TestUnknownActionMessage(t *testing.T) {
	editor := &fakeEditor{}
	s := newTestServer(t, editor, nil)
	_, body := do(t, s, http.MethodPost, "/actions/bogus", "", nil)
	if body["message"] != "Unknown action: bogus" {
		t.Errorf("message = %v", body["message"])
	}
	if editor.callCount() != 0 {
		t.Errorf("editor called %d times", editor.callCount())
	}
}

func TestMethodRouting(t *testing.T) {
	s := newTestServer(t, &fakeEditor{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/compile/recompile", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /compile/recompile = %d, want 405", rec.Code)
	}
}

func TestRequestCancellationReachesWaiter(t *testing.T) {
	s := newTestServer(t, &fakeEditor{compiling: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/compile/wait?timeoutSeconds=60", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not stop when the request was cancelled")
	}
	if !strings.Contains(rec.Body.String(), "Compilation wait cancelled") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMapErrorCodeToStatus(t *testing.T) {
	tests := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.Timeout, http.StatusGatewayTimeout},
		{errors.BridgeUnavailable, http.StatusServiceUnavailable},
		{errors.UnknownAction, http.StatusBadRequest},
		{errors.InvalidParameter, http.StatusBadRequest},
		{errors.EditorStateUnavailable, http.StatusBadGateway},
		{errors.CommandFailed, http.StatusBadGateway},
		{errors.InternalError, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := MapErrorCodeToStatus(tt.code); got != tt.want {
			t.Errorf("MapErrorCodeToStatus(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
