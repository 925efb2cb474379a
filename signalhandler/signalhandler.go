// Package signalhandler turns SIGINT and SIGTERM into context cancellation and
// sizes the worker pools.
package signalhandler

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"imagematcher/exitcodes"
	"imagematcher/logging"
)

// SetupHandler returns a context that is canceled on the first SIGINT or
// SIGTERM, so running work stops and no output is written. A second signal
// exits the process immediately. stop releases the handler.
func SetupHandler(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigChan:
			logging.LogWarning("interrupted, stopping", "signal", sig.String())
			cancel()
		case <-done:
			return
		}

		select {
		case <-sigChan:
			// cgo calls may not return promptly; do not wait for them.
			os.Exit(exitcodes.ExitInterrupted)
		case <-done:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
			cancel()
		})
	}
}

// GetOptimalProcs returns the optimal number of worker goroutines for the system
func GetOptimalProcs() int {
	numCPU := runtime.NumCPU()

	// For image processing with CGo, using too many goroutines can cause issues
	maxProcs := (numCPU * 3) / 4
	if maxProcs < 1 {
		maxProcs = 1
	}

	return maxProcs
}
