package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"unitymcp/internal/compile"
	"unitymcp/internal/config"
	"unitymcp/internal/paths"
	"unitymcp/internal/slogutil"
	"unitymcp/internal/telemetry"
	"unitymcp/internal/unity"
	"unitymcp/internal/version"
)

// logLevel prefers explicit -v/--quiet flags over logging.level.
func logLevel(cfg *config.Config, fallback slog.Level) slog.Level {
	if quiet || verbosity > 0 {
		return slogutil.LevelFromVerbosity(verbosity, quiet)
	}
	if cfg != nil && cfg.Logging.Level != "" {
		return slogutil.LevelFromString(cfg.Logging.Level)
	}
	return fallback
}

// newServiceLogger logs to stderr and to a rotating file for long-running
// modes (mcp, serve). Stdout stays free for protocol traffic.
func newServiceLogger(cfg *config.Config, subsystem string) (*slog.Logger, io.Closer, error) {
	file := cfg.Logging.File
	if file == "" {
		if _, err := paths.EnsureLogsDir(); err == nil {
			file, _ = paths.GetLogPath(subsystem)
		}
	}
	return slogutil.New(slogutil.Options{
		Level:      logLevel(cfg, slog.LevelInfo),
		Console:    os.Stderr,
		File:       file,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
}

// newCLILogger logs warnings and above to stderr unless -v is given.
func newCLILogger() *slog.Logger {
	level := slog.LevelWarn
	if quiet || verbosity > 0 {
		level = slogutil.LevelFromVerbosity(verbosity, quiet)
	}
	return slogutil.NewLogger(os.Stderr, level)
}

func newBridge(cfg *config.Config, logger *slog.Logger) *unity.Client {
	return unity.NewClient(cfg.BridgeOptions(), logger)
}

func newDispatcher(cfg *config.Config, bridge compile.Commander, logger *slog.Logger) *compile.Dispatcher {
	monitor := compile.NewMonitor(bridge, logger, cfg.MonitorOptions())
	return compile.NewDispatcher(monitor, logger)
}

// initTelemetry starts OTLP export when enabled. The returned function is
// always safe to call.
func initTelemetry(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}

	shutdown, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version.Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
		return func() {}
	}

	logger.Info("Tracing enabled", "endpoint", cfg.Telemetry.Endpoint)
	return func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
