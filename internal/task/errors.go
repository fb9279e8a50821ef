package task

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced task does not exist.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidTransition is the parent of every rejected lifecycle move.
	ErrInvalidTransition = errors.New("invalid transition")

	ErrAlreadyInProgress = fmt.Errorf("%w: already in progress", ErrInvalidTransition)
	ErrAlreadyDone       = fmt.Errorf("%w: already done", ErrInvalidTransition)
	ErrNotBlocked        = fmt.Errorf("%w: not blocked", ErrInvalidTransition)
)

// TransitionError reports a rejected transition together with the status
// the task was in at the time.
type TransitionError struct {
	ID     string
	Action string
	Status Status
	Err    error
}

func (e *TransitionError) Error() string {
	switch e.Err {
	case ErrAlreadyInProgress:
		return fmt.Sprintf("task %s is already in progress (status: %s)", e.ID, e.Status)
	case ErrAlreadyDone:
		return fmt.Sprintf("task %s is already done (status: %s)", e.ID, e.Status)
	case ErrNotBlocked:
		return fmt.Sprintf("cannot %s task %s: it is not blocked (status: %s)", e.Action, e.ID, e.Status)
	}
	return fmt.Sprintf("cannot %s task %s (status: %s): %v", e.Action, e.ID, e.Status, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// NotFound wraps ErrNotFound with the requested id.
func NotFound(id string) error {
	return fmt.Errorf("task %s: %w", id, ErrNotFound)
}
