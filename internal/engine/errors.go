package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for commands referencing an unknown download id.
	ErrNotFound = errors.New("download not found")
	// ErrShutdown is returned once the manager stopped accepting commands.
	ErrShutdown = errors.New("download manager is shut down")

	errCanceled = errors.New("download canceled")
)

func errUnsupportedAlgorithm(algorithm string) error {
	return fmt.Errorf("unsupported checksum algorithm %q", algorithm)
}

// diskError marks filesystem failures, which are fatal and never retried.
type diskError struct {
	err error
}

func (e *diskError) Error() string {
	return e.err.Error()
}

func (e *diskError) Unwrap() error {
	return e.err
}
