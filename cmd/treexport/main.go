// File: cmd/treexport/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mgrotte/treexport/cmd"
	"github.com/mgrotte/treexport/internal/observability"
)

// osExit allows mocking os.Exit in tests.
var osExit = os.Exit

func main() {
	// Graceful shutdown on SIGINT/SIGTERM: cancelling the context tears the
	// browser session down through the run controller's deferred close.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := cmd.NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)

	observability.Sync()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Interrupted runs exit cleanly; the logs already say why.
			osExit(0)
			return
		}
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Run failed.", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		osExit(1)
	}
}
