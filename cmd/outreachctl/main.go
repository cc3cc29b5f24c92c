// Command outreachctl is the cron and operator entry point: it runs
// dispatch and screening passes, prints stats, applies migrations and mints
// tokens for the external scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(defaultEnv()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "[ERROR]", err)
		stop()
		os.Exit(1)
	}
}
