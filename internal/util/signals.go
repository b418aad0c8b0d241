package util

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler creates a context that is cancelled on receiving SIGINT or SIGTERM.
// Cancelling stops queueing new chunks; chunks already running finish on their own.
// A second signal will force immediate exit.
func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal, no further chunks will be started", "signal", sig.String())
		cancel()

		// Second signal forces immediate exit
		sig = <-sigCh
		slog.Warn("received second shutdown signal, forcing exit", "signal", sig.String())
		os.Exit(130)
	}()

	return ctx
}
