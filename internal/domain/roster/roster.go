// Package roster models the registration and judge-assignment links of an event.
package roster

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/palco/internal/domain/event"
)

// ErrAlreadyAccepted is returned when approving a participant twice.
var ErrAlreadyAccepted = errors.New("participant already accepted")

// ErrInvalidName is returned for blank participant or judge names.
var ErrInvalidName = errors.New("name is required")

// ParticipantStatus tracks a registration through approval.
type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "pending"
	ParticipantAccepted ParticipantStatus = "accepted"
)

// Participant is a registration link between a person and an event.
type Participant struct {
	ID      string
	EventID string
	Name    string
	// Seq is the 1-based registration order within the event.
	Seq          int
	Status       ParticipantStatus
	RegisteredAt time.Time
	ApprovedAt   *time.Time
}

// Accepted reports whether the participant counts towards the roster.
func (p Participant) Accepted() bool { return p.Status == ParticipantAccepted }

// Judge is an evaluator assigned to an event.
type Judge struct {
	ID         string
	EventID    string
	Name       string
	AssignedAt time.Time
}

// Admit decides the initial status of a new registration for ev at now.
// Registration must be open; automatic approval also needs a free place.
func Admit(ev event.Event, now time.Time) (ParticipantStatus, error) {
	if !event.IsRegistrationOpen(ev, now) {
		return "", fmt.Errorf("%w: event %s is %s", event.ErrRegistrationClosed, ev.ID, ev.Status)
	}
	if ev.ApprovalMode == event.ApprovalManual {
		return ParticipantPending, nil
	}
	if !ev.HasCapacity() {
		return "", fmt.Errorf("%w: %d places taken", event.ErrCapacityExceeded, ev.CurrentParticipants)
	}
	return ParticipantAccepted, nil
}

// Approve checks that a pending participant may be accepted into ev.
func Approve(ev event.Event, p Participant) error {
	if p.Accepted() {
		return ErrAlreadyAccepted
	}
	if !ev.HasCapacity() {
		return fmt.Errorf("%w: %d places taken", event.ErrCapacityExceeded, ev.CurrentParticipants)
	}
	return nil
}

// NormalizeName trims a participant or judge name and rejects blanks.
func NormalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", ErrInvalidName
	}
	return n, nil
}
