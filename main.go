// Command imagematcher maps each image of a reference set to the images of a
// candidate set that look the same after normalization.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"imagematcher/exitcodes"
	"imagematcher/logging"
	"imagematcher/signalhandler"
)

func main() {
	// Set up proper signal handling
	ctx, stop := signalhandler.SetupHandler(context.Background())

	// Set the optimal number of CPUs to use
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	logging.CloseLogger()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", message(err))
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if code, ok := exitcodes.IsExitCodeError(err); ok {
		return code
	}
	return exitcodes.ExitGeneralRuntimeError
}

// message strips the exit code wrapper so users see the cause only.
func message(err error) error {
	var exitErr *exitcodes.ExitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.Err
	}
	return err
}
