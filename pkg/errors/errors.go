package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("archive source not found")
	ErrInvalidID            = fmt.Errorf("invalid archive identifier: %w", ErrNotFound)
	ErrSpawn                = errors.New("failed to spawn archive process")
	ErrStreamInterrupted    = errors.New("archive stream interrupted")
	ErrProcessAlreadyExited = errors.New("archive process already exited")
	ErrAlreadyReaped        = errors.New("archive process already reaped")
)

// ProcessError carries the pid and the lifecycle operation that failed.
type ProcessError struct {
	Pid       int
	Operation string
	Err       error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process %d: %s failed: %v", e.Pid, e.Operation, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func NewProcessError(pid int, operation string, err error) error {
	return &ProcessError{
		Pid:       pid,
		Operation: operation,
		Err:       err,
	}
}

// IsBenign reports whether err ends a transfer without being a server fault:
// the client went away or the process was already gone at teardown.
func IsBenign(err error) bool {
	return errors.Is(err, ErrStreamInterrupted) ||
		errors.Is(err, ErrProcessAlreadyExited)
}
