package imageprocessor

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrDecode      = errors.New("cannot decode image")
	ErrInvalidSize = errors.New("invalid normalization size")
	ErrNoLoader    = errors.New("no loader accepted the file")
)

// DecodeError reports a source path that could not be read as an image.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", ErrDecode, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", ErrDecode, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Err}
}

// InvalidSizeError reports a normalization target with a non-positive side.
type InvalidSizeError struct {
	Width  int
	Height int
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("%v: %dx%d", ErrInvalidSize, e.Width, e.Height)
}

func (e *InvalidSizeError) Unwrap() error {
	return ErrInvalidSize
}
