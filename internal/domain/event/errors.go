package event

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrRegistrationClosed = errors.New("registration closed")
	ErrNotEditable        = errors.New("event not editable")
	ErrInvalidEvent       = errors.New("invalid event")
)

// TransitionError describes a rejected lifecycle transition.
type TransitionError struct {
	From   Status
	Action Action
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cannot %s event in status %s", e.Action, e.From)
	}
	return fmt.Sprintf("cannot %s event in status %s: %s", e.Action, e.From, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
