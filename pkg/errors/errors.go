// Package errors defines the error kinds shared by the index build and query
// paths. Callers classify failures with errors.Is against the sentinels.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrCorruptStore      = errors.New("corrupt store")
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Process exit codes returned by ExitCode.
const (
	ExitOK       = 0
	ExitInternal = 1
	ExitInput    = 2
	ExitNotFound = 3
	ExitCorrupt  = 4
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsNotFound reports whether err means the term is simply absent. It is
// recoverable, unlike a corrupt store.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCorrupt reports whether err indicates a store integrity failure.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptStore) || errors.Is(err, ErrDimensionMismatch)
}

func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidInput):
		return ExitInput
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case IsCorrupt(err):
		return ExitCorrupt
	default:
		return ExitInternal
	}
}
