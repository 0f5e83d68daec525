package domain

import (
	"context"
	"errors"
	"time"

	apperrors "zipstream/pkg/errors"
)

type Outcome string

const (
	OutcomeCompleted   Outcome = "COMPLETED"
	OutcomeCancelled   Outcome = "CANCELLED"
	OutcomeInterrupted Outcome = "INTERRUPTED"
	OutcomeSpawnFailed Outcome = "SPAWN_FAILED"
	OutcomeNotFound    Outcome = "NOT_FOUND"
	OutcomeFailed      Outcome = "FAILED"
)

// Transfer is the record of one archive delivery, successful or not.
type Transfer struct {
	ID        string
	Dir       string
	StartTime time.Time
	Duration  time.Duration
	Bytes     int64
	Chunks    int64
	Outcome   Outcome
	ExitCode  int
	Error     string
}

// NewTransfer starts a transfer record for id
func NewTransfer(id string) *Transfer {
	return &Transfer{
		ID:        id,
		StartTime: time.Now(),
		ExitCode:  -1,
	}
}

// Finish stamps the duration and derives the outcome from err.
func (t *Transfer) Finish(err error) {
	t.Duration = time.Since(t.StartTime)
	t.Outcome = OutcomeFor(err)
	if err != nil {
		t.Error = err.Error()
	}
}

// OutcomeFor classifies the error that ended a transfer
func OutcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	case errors.Is(err, apperrors.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, apperrors.ErrSpawn):
		return OutcomeSpawnFailed
	case errors.Is(err, apperrors.ErrStreamInterrupted):
		return OutcomeInterrupted
	default:
		return OutcomeFailed
	}
}

func (t *Transfer) IsCompleted() bool {
	return t.Outcome == OutcomeCompleted
}
