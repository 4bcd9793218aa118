package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration  = errors.New("configuration error")
	ErrResourceLocked = errors.New("resource locked")
	ErrQuerySyntax    = errors.New("query syntax error")
	ErrIO             = errors.New("io failure")
	ErrNotSealed      = errors.New("index seal state violation")
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

// IOf wraps an underlying storage error as an ErrIO while keeping cause in
// the chain, so both errors.Is(err, ErrIO) and errors.Is(err, cause) hold.
func IOf(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, fmt.Sprintf(format, args...), cause)
}

// ExitCode maps an error kind to the process exit status used by cmd/.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfiguration):
		return 2
	case errors.Is(err, ErrResourceLocked):
		return 3
	case errors.Is(err, ErrNotSealed):
		return 4
	case errors.Is(err, ErrQuerySyntax):
		return 5
	case errors.Is(err, ErrIO):
		return 6
	default:
		return 1
	}
}
