// Command pagectl pages through S3 key listings and sorted Parquet objects
// one page at a time, printing a continuation token after each page.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cobra prints the error and usage, so only the exit status is left.
	if err := newApp(os.Stdout).rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
