package queue

import (
	"errors"
	"fmt"

	"github.com/Afonso75/QZeroN-sub002/internal/schedule"
)

var ErrActiveTicketExists = errors.New("holder already has an active ticket in this queue")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotOperatingError is returned when the queue does not accept tickets right now.
type NotOperatingError struct {
	Case   schedule.Case
	Reason string
}

func (e *NotOperatingError) Error() string {
	return "queue not operating: " + e.Reason
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
