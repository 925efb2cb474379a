// Package exitcodes defines the process exit codes of imagematcher and the
// error type that carries one up to main.
//
//	0:     Success
//	1-9:   Input/configuration errors
//	10-19: Image loading errors
//	20-29: Runtime and I/O errors
//	30-39: Internal errors
//	130:   Interrupted by a signal
package exitcodes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	ExitSuccess = 0

	ExitMissingArguments        = 1 // Positional arguments missing
	ExitInputConfigurationError = 2 // Invalid flags, config file or size

	ExitDecodeError = 10 // A source path could not be read as an image

	ExitGeneralRuntimeError = 20
	ExitIOError             = 21 // Output could not be written

	ExitInternalError = 30

	ExitInterrupted = 130 // SIGINT or SIGTERM
)

// ExitCodeError wraps an error with the exit code main should terminate with.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d: %v", e.Code, e.Err)
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// Wrap returns nil for a nil err, otherwise an ExitCodeError with code.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitCodeError{Code: code, Err: err}
}

// IsExitCodeError reports whether err carries an exit code and returns it.
func IsExitCodeError(err error) (int, bool) {
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// CodeDescriptions maps exit codes to short descriptions for usage output.
// See Describe.
var CodeDescriptions = map[int]string{
	ExitSuccess:                 "Success",
	ExitMissingArguments:        "Required arguments not provided",
	ExitInputConfigurationError: "Invalid configuration",
	ExitDecodeError:             "Source image could not be decoded",
	ExitGeneralRuntimeError:     "General runtime error",
	ExitIOError:                 "I/O error",
	ExitInternalError:           "Internal error",
	ExitInterrupted:             "Interrupted",
}

// Describe lists every code with its description, one per line, in
// ascending order.
func Describe() string {
	codes := make([]int, 0, len(CodeDescriptions))
	for code := range CodeDescriptions {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	var b strings.Builder
	for _, code := range codes {
		fmt.Fprintf(&b, "  %3d  %s\n", code, CodeDescriptions[code])
	}
	return b.String()
}
