package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aryankumar/fanout/internal/cli"
	"github.com/aryankumar/fanout/internal/util"
)

func main() {
	// First signal stops queueing chunks and sub-jobs, a second one exits immediately
	ctx := util.SetupSignalHandler()

	if err := cli.Execute(ctx); err != nil {
		slog.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", cli.FriendlyError(err))
		os.Exit(1)
	}
}
