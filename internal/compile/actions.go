package compile

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"unitymcp/internal/envelope"
	"unitymcp/internal/errors"
	"unitymcp/internal/telemetry"
)

// Action names accepted by the dispatcher.
const (
	ActionGetStatus       = "get_status"
	ActionWaitForComplete = "wait_for_complete"
	ActionGetErrors       = "get_errors"
	ActionGetWarnings     = "get_warnings"
	ActionClearErrors     = "clear_errors"
	ActionForceRecompile  = "force_recompile"
)

// Actions lists every action name in a stable order.
func Actions() []string {
	return []string{
		ActionGetStatus,
		ActionWaitForComplete,
		ActionGetErrors,
		ActionGetWarnings,
		ActionClearErrors,
		ActionForceRecompile,
	}
}

type handlerFunc func(ctx context.Context, p Params) (*envelope.Result, error)

type route struct {
	// context prefixes messages for faults that are not MonitorErrors.
	context string
	handler handlerFunc
}

// Dispatcher routes compile_monitor actions to the monitor and is the only
// place where failures become envelopes.
type Dispatcher struct {
	monitor *Monitor
	logger  *slog.Logger
	routes  map[string]route
}

// NewDispatcher creates a dispatcher for the given monitor.
func NewDispatcher(monitor *Monitor, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		monitor: monitor,
		logger:  logger,
	}
	d.routes = map[string]route{
		ActionGetStatus:       {"Compile status", d.handleStatus},
		ActionWaitForComplete: {"Compilation wait", d.handleWait},
		ActionGetErrors:       {"Compilation errors", d.handleErrors},
		ActionGetWarnings:     {"Compilation warnings", d.handleWarnings},
		ActionClearErrors:     {"Console clear", d.handleClear},
		ActionForceRecompile:  {"Force recompile", d.handleRecompile},
	}
	return d
}

// Monitor returns the underlying monitor.
func (d *Dispatcher) Monitor() *Monitor {
	return d.monitor
}

// Dispatch runs one action and always returns an envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, action string, p Params) (result *envelope.Result) {
	invocation := uuid.New().String()
	d.logger.Info("Processing compile_monitor",
		"action", action,
		"invocation", invocation,
	)

	r, ok := d.routes[action]
	if !ok {
		return envelope.Fail(errors.UnknownAction, "Unknown action: "+action)
	}

	ctx, span := telemetry.StartSpan(ctx, "compile_monitor."+action,
		attribute.String("compile_monitor.action", action),
		attribute.String("compile_monitor.invocation", invocation),
	)
	var spanErr error
	defer func() { telemetry.EndSpan(span, spanErr) }()

	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("Panic in compile_monitor handler",
				"action", action,
				"invocation", invocation,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			spanErr = fmt.Errorf("panic: %v", rec)
			result = envelope.Fail(errors.InternalError, fmt.Sprintf("%s error: %v", r.context, rec))
		}
	}()

	res, err := r.handler(ctx, p)
	if err != nil {
		spanErr = err
		d.logger.Warn("compile_monitor action failed",
			"action", action,
			"invocation", invocation,
			"code", string(errors.CodeOf(err)),
			"error", err.Error(),
		)
		return envelope.New().Error(r.context, err).Build()
	}
	return res
}

func (d *Dispatcher) handleStatus(ctx context.Context, _ Params) (*envelope.Result, error) {
	status, err := d.monitor.Status(ctx)
	if err != nil {
		return nil, err
	}
	return envelope.OK("Compilation status retrieved", status), nil
}

func (d *Dispatcher) handleWait(ctx context.Context, p Params) (*envelope.Result, error) {
	res, err := d.monitor.WaitForComplete(ctx, p.TimeoutSeconds)
	if err != nil {
		return nil, err
	}
	return envelope.OK("Compilation completed", res), nil
}

func (d *Dispatcher) handleErrors(ctx context.Context, p Params) (*envelope.Result, error) {
	diags := d.monitor.Errors(ctx, p.IncludeStackTrace)
	return envelope.OK(
		fmt.Sprintf("Retrieved %d compilation errors", len(diags)),
		map[string]interface{}{
			"errorCount": len(diags),
			"errors":     diags,
		},
	), nil
}

func (d *Dispatcher) handleWarnings(ctx context.Context, _ Params) (*envelope.Result, error) {
	diags := d.monitor.Warnings(ctx)
	return envelope.OK(
		fmt.Sprintf("Retrieved %d compilation warnings", len(diags)),
		map[string]interface{}{
			"warningCount": len(diags),
			"warnings":     diags,
		},
	), nil
}

func (d *Dispatcher) handleClear(ctx context.Context, _ Params) (*envelope.Result, error) {
	out, err := d.monitor.ClearConsole(ctx)
	if err != nil {
		return nil, err
	}
	return envelope.OK(out.Message, out.Data), nil
}

func (d *Dispatcher) handleRecompile(ctx context.Context, _ Params) (*envelope.Result, error) {
	out, err := d.monitor.ForceRecompile(ctx)
	if err != nil {
		return nil, err
	}
	return envelope.OK(out.Message, out.Data), nil
}
