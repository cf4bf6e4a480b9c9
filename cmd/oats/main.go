package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"oats/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Failed jobs were already listed in the summary.
		if !errors.Is(err, context.Canceled) && !errors.Is(err, errJobsFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			if services.IsFatalConfig(err) {
				fmt.Fprintln(os.Stderr, "Run 'oats config validate' or 'oats formats' to check the setup.")
			}
		}
		os.Exit(1)
	}
}
