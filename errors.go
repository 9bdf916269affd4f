package timesheet

import (
	"errors"
	"fmt"
)

var (
	// Store errors.
	ErrNoStore          = errors.New("timesheet: no store configured")
	ErrConcurrentUpdate = errors.New("timesheet: concurrent update")

	// Not found errors.
	ErrItemNotFound     = errors.New("timesheet: submission item not found")
	ErrDeletionNotFound = errors.New("timesheet: deletion request not found")

	// Conflict errors.
	ErrItemAlreadyExists = errors.New("timesheet: submission item already exists")
	ErrDeletionPending   = errors.New("timesheet: deletion request already pending")

	// State errors.
	ErrInvalidState     = errors.New("timesheet: invalid state transition")
	ErrAlreadyProcessed = errors.New("timesheet: already processed")
	ErrNotDue           = errors.New("timesheet: not due yet")

	// Input and configuration errors.
	ErrInvalidInput  = errors.New("timesheet: invalid input")
	ErrInvalidConfig = errors.New("timesheet: invalid configuration")
	ErrUnknownAction = errors.New("timesheet: unknown action kind")
)

// StateError reports an operation rejected because of the entity's
// current status. It matches ErrInvalidState with errors.Is.
type StateError struct {
	Op     string
	ID     string
	Status string
	Reason string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("timesheet: %s %s: current status %q", e.Op, e.ID, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap returns ErrInvalidState.
func (e *StateError) Unwrap() error { return ErrInvalidState }
