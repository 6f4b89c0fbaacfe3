// Package compile monitors the Unity editor's compilation state. It builds
// status snapshots from the editor state and console, classifies console
// diagnostics, waits for compilation to settle, and dispatches the
// compile_monitor actions into uniform result envelopes.
package compile

import (
	"context"
	"log/slog"
	"time"

	"unitymcp/internal/errors"
	"unitymcp/internal/unity"
)

// Bridge commands used by the monitor.
const (
	CommandManageEditor    = "manage_editor"
	CommandReadConsole     = "read_console"
	CommandExecuteMenuItem = "execute_menu_item"

	// RefreshMenuPath is the editor menu item that triggers a recompile.
	RefreshMenuPath = "Assets/Refresh"
)

// Commander sends one command to the editor. A returned error means the
// command never produced a response; a response with Success=false is the
// editor reporting failure.
type Commander interface {
	Send(ctx context.Context, command string, params map[string]interface{}) (*unity.Response, error)
}

// Options tunes request sizes and polling.
type Options struct {
	// StatusConsoleCount is how many console entries a status snapshot reads.
	StatusConsoleCount int
	// DiagnosticsConsoleCount is how many entries get_errors/get_warnings read.
	DiagnosticsConsoleCount int
	// PollInterval is the pause between snapshots while waiting.
	PollInterval time.Duration
	// DefaultTimeoutSeconds applies when a wait gives no timeout.
	DefaultTimeoutSeconds int
}

// DefaultOptions returns the reference request sizes and cadence.
func DefaultOptions() Options {
	return Options{
		StatusConsoleCount:      50,
		DiagnosticsConsoleCount: 100,
		PollInterval:            500 * time.Millisecond,
		DefaultTimeoutSeconds:   30,
	}
}

// Monitor answers compile monitoring queries against one bridge. It keeps no
// state between calls and is safe for concurrent use.
type Monitor struct {
	bridge Commander
	logger *slog.Logger
	opts   Options
	now    func() time.Time
}

// NewMonitor creates a monitor. Non-positive option fields take their defaults.
func NewMonitor(bridge Commander, logger *slog.Logger, opts Options) *Monitor {
	def := DefaultOptions()
	if opts.StatusConsoleCount <= 0 {
		opts.StatusConsoleCount = def.StatusConsoleCount
	}
	if opts.DiagnosticsConsoleCount <= 0 {
		opts.DiagnosticsConsoleCount = def.DiagnosticsConsoleCount
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.DefaultTimeoutSeconds <= 0 {
		opts.DefaultTimeoutSeconds = def.DefaultTimeoutSeconds
	}

	return &Monitor{
		bridge: bridge,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// Options returns the effective options.
func (m *Monitor) Options() Options {
	return m.opts
}

// Status takes a fresh snapshot. Failure to read the editor state fails the
// snapshot; failure to read the console only leaves diagnostics empty.
func (m *Monitor) Status(ctx context.Context) (CompileStatus, error) {
	resp, err := m.bridge.Send(ctx, CommandManageEditor, map[string]interface{}{
		"action": "get_state",
	})
	if err != nil {
		if errors.IsCancelled(err) {
			return CompileStatus{}, err
		}
		return CompileStatus{}, errors.Wrap(errors.EditorStateUnavailable, "Failed to get editor state", err)
	}
	if !resp.Success {
		m.logger.Warn("Editor state query failed",
			"error", resp.FailureMessage(),
		)
		return CompileStatus{}, errors.New(errors.EditorStateUnavailable, "Failed to get editor state")
	}

	state := decodeEditorState(resp.Data)
	entries := m.readConsole(ctx, m.opts.StatusConsoleCount)

	return CompileStatus{
		IsCompiling: state.IsCompiling,
		IsUpdating:  state.IsUpdating,
		Diagnostics: Classify(entries, true),
	}, nil
}

// Errors returns the compilation errors among the most recent console entries.
func (m *Monitor) Errors(ctx context.Context, includeStackTrace bool) []Diagnostic {
	entries := m.readConsole(ctx, m.opts.DiagnosticsConsoleCount)
	return Classify(entries, includeStackTrace).Errors
}

// Warnings returns the compilation warnings among the most recent console entries.
func (m *Monitor) Warnings(ctx context.Context) []Diagnostic {
	entries := m.readConsole(ctx, m.opts.DiagnosticsConsoleCount)
	return Classify(entries, false).Warnings
}

// ClearConsole clears the editor console.
func (m *Monitor) ClearConsole(ctx context.Context) (*Outcome, error) {
	resp, err := m.bridge.Send(ctx, CommandReadConsole, map[string]interface{}{
		"action": "clear",
	})
	if err != nil {
		return nil, err
	}
	return passThrough(resp, "Console cleared")
}

// ForceRecompile asks the editor to refresh assets, which recompiles scripts.
func (m *Monitor) ForceRecompile(ctx context.Context) (*Outcome, error) {
	resp, err := m.bridge.Send(ctx, CommandExecuteMenuItem, map[string]interface{}{
		"menuPath": RefreshMenuPath,
	})
	if err != nil {
		return nil, err
	}
	if resp.Success {
		return &Outcome{
			Message: "Forced recompilation initiated",
			Data:    map[string]interface{}{"recompileTriggered": true},
		}, nil
	}
	return passThrough(resp, "")
}

// readConsole fetches up to count console entries. Failures are logged and
// yield no entries.
func (m *Monitor) readConsole(ctx context.Context, count int) []ConsoleEntry {
	resp, err := m.bridge.Send(ctx, CommandReadConsole, map[string]interface{}{
		"action": "get",
		"count":  count,
	})
	if err != nil {
		m.logger.Warn("Console read failed, continuing without diagnostics",
			"error", err.Error(),
		)
		return nil
	}
	if !resp.Success {
		m.logger.Warn("Console read failed, continuing without diagnostics",
			"error", resp.FailureMessage(),
		)
		return nil
	}
	return decodeConsoleEntries(resp.Data)
}

// passThrough converts an editor response into an outcome, or into a
// CommandFailed error carrying the response payload.
func passThrough(resp *unity.Response, defaultMessage string) (*Outcome, error) {
	data := decodeData(resp.Data)
	if resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = defaultMessage
		}
		return &Outcome{Message: msg, Data: data}, nil
	}

	msg := resp.FailureMessage()
	if msg == "" {
		msg = "Command failed"
	}
	err := errors.New(errors.CommandFailed, msg)
	if data != nil {
		err = err.WithDetails(data)
	}
	return nil, err
}
