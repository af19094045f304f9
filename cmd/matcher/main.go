// matcher runs the lost-and-found match-scoring engine: schema migrations, one-off matching of a
// listing, full regeneration, and the River worker that matches newly created listings.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		return exitFailure
	}

	return exitSuccess
}
