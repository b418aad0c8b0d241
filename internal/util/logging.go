package util

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LogOptions configures the process-wide structured logger
type LogOptions struct {
	// Verbose enables debug level logging
	Verbose bool

	// JSON selects the JSON handler instead of the text handler
	JSON bool

	// Dir, when set, tees all log output into Dir/Name.log
	Dir string

	// Name is the run name used for the log file
	Name string

	// Stderr overrides the console sink (defaults to os.Stderr)
	Stderr io.Writer
}

// SetupLogging builds the process logger and installs it as the slog default.
// The returned close function releases the log file, if one was opened.
func SetupLogging(opts LogOptions) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var sink io.Writer = os.Stderr
	if opts.Stderr != nil {
		sink = opts.Stderr
	}

	closeFn := func() error { return nil }
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		name := opts.Name
		if name == "" {
			name = "fanout"
		}
		f, err := os.OpenFile(filepath.Join(opts.Dir, name+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sink = io.MultiWriter(sink, f)
		closeFn = f.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(sink, handlerOpts)
	} else {
		handler = slog.NewTextHandler(sink, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, closeFn, nil
}

// WorkerLogger derives the logging context handed to one worker.
// Records from different workers are serialized by the shared handler and are
// distinguishable by their worker attribute.
func WorkerLogger(base *slog.Logger, workerID int) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("worker", workerID)
}
