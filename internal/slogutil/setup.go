package slogutil

import (
	"io"
	"log/slog"
)

// Options describes where a process logs.
type Options struct {
	Level      slog.Leveler
	Console    io.Writer // usually os.Stderr; nil disables console output
	File       string    // optional log file
	MaxSize    string    // rotation threshold such as "10MB"; empty disables rotation
	MaxBackups int
	Compress   bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger from opts. The returned closer releases the log file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if opts.Console != nil {
		handlers = append(handlers, NewHandler(opts.Console, handlerOpts))
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rf, err := OpenRotatingFile(opts.File, RotateOptions{
			MaxSize:    ParseSize(opts.MaxSize),
			MaxBackups: opts.MaxBackups,
			Compress:   opts.Compress,
		})
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, NewHandler(rf, handlerOpts))
		closer = rf
	}

	switch len(handlers) {
	case 0:
		return NewDiscardLogger(), closer, nil
	case 1:
		return slog.New(handlers[0]), closer, nil
	default:
		return slog.New(NewTeeHandler(handlers...)), closer, nil
	}
}
