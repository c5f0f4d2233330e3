package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// contextForRun returns a context cancelled on SIGINT/SIGTERM, mirroring
// commands.Runner.Run's signal-handling setup.
func contextForRun() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancel()
	}()

	return ctx
}
