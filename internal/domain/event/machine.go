package event

import (
	"fmt"
	"strings"
	"time"
)

// Request describes one transition attempt.
type Request struct {
	Action Action
	// Reason is recorded on cancellation.
	Reason string
	// Override asks to start before StartDate.
	Override bool
	// At is the wall-clock instant the transition is evaluated against.
	At time.Time
}

// Machine validates and executes lifecycle transitions. It holds policy only;
// serialization and persistence belong to the caller.
type Machine struct {
	allowManualStart bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithManualStart permits operators to start an event before its start date.
func WithManualStart(allowed bool) Option {
	return func(m *Machine) {
		m.allowManualStart = allowed
	}
}

// NewMachine builds a Machine. Manual start is allowed by default.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{allowManualStart: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply returns ev with req applied, or an error and the zero Event.
// ev itself is never modified.
func (m *Machine) Apply(ev Event, req Request) (Event, error) {
	if !isActionAllowed(ev.Status, req.Action) {
		return Event{}, &TransitionError{From: ev.Status, Action: req.Action}
	}
	if err := m.guard(ev, req); err != nil {
		return Event{}, err
	}

	next := ev
	next.Status = req.Action.target()
	next.UpdatedAt = req.At

	switch req.Action {
	case ActionCancel:
		next.CancelReason = strings.TrimSpace(req.Reason)
	case ActionRevertToDraft:
		next.CancelReason = ""
		next.ResultsPublishedAt = nil
	}
	return next, nil
}

func (m *Machine) guard(ev Event, req Request) error {
	switch req.Action {
	case ActionPublish:
		if missing := missingRequired(ev); len(missing) > 0 {
			return &TransitionError{
				From:   ev.Status,
				Action: req.Action,
				Reason: "missing " + strings.Join(missing, ", "),
			}
		}
		if ev.MaxParticipants != nil && ev.CurrentParticipants > *ev.MaxParticipants {
			return fmt.Errorf("%w: %d accepted for %d places", ErrCapacityExceeded, ev.CurrentParticipants, *ev.MaxParticipants)
		}
	case ActionStart:
		if !req.At.Before(ev.StartDate) {
			return nil
		}
		if !req.Override {
			return &TransitionError{From: ev.Status, Action: req.Action, Reason: "start date not reached"}
		}
		if !m.allowManualStart {
			return &TransitionError{From: ev.Status, Action: req.Action, Reason: "manual start disabled"}
		}
	}
	return nil
}
