// Package event holds the event record, its lifecycle state machine and the
// registration window policy.
package event

import (
	"fmt"
	"strings"
	"time"
)

// ApprovalMode governs whether a registration needs an explicit approval.
type ApprovalMode string

const (
	ApprovalAutomatic ApprovalMode = "automatic"
	ApprovalManual    ApprovalMode = "manual"
)

// ParseApprovalMode canonicalizes an approval mode label. Empty means automatic.
func ParseApprovalMode(value string) (ApprovalMode, bool) {
	switch ApprovalMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ApprovalAutomatic:
		return ApprovalAutomatic, true
	case ApprovalManual:
		return ApprovalManual, true
	default:
		return "", false
	}
}

// Event is a single festival competition instance.
type Event struct {
	ID          string
	Name        string
	Description string
	Location    string
	Category    string
	Type        string
	Status      Status

	StartDate             time.Time
	EndDate               *time.Time
	RegistrationStartDate *time.Time
	RegistrationEndDate   *time.Time

	// MaxParticipants is nil when the event has no capacity limit.
	MaxParticipants     *int
	CurrentParticipants int
	ApprovalMode        ApprovalMode

	CancelReason       string
	ResultsPublishedAt *time.Time
	CopiedFrom         string

	CreatedAt time.Time
	UpdatedAt time.Time
	// Version is bumped by the store on every successful write.
	Version int64
}

// Details carries the operator-editable fields of an event.
type Details struct {
	Name                  string
	Description           string
	Location              string
	Category              string
	Type                  string
	StartDate             time.Time
	EndDate               *time.Time
	RegistrationStartDate *time.Time
	RegistrationEndDate   *time.Time
	MaxParticipants       *int
	ApprovalMode          ApprovalMode
}

// New builds a draft event from details.
func New(id string, d Details, now time.Time) (Event, error) {
	if err := d.validate(); err != nil {
		return Event{}, err
	}
	ev := Event{
		ID:        id,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ev.setDetails(d)
	return ev, nil
}

// Edit replaces the editable fields. Only drafts may be edited.
func Edit(ev Event, d Details, now time.Time) (Event, error) {
	if ev.Status != StatusDraft {
		return Event{}, fmt.Errorf("%w: status is %s", ErrNotEditable, ev.Status)
	}
	if err := d.validate(); err != nil {
		return Event{}, err
	}
	if d.MaxParticipants != nil && *d.MaxParticipants < ev.CurrentParticipants {
		return Event{}, fmt.Errorf("%w: %d participants already accepted", ErrCapacityExceeded, ev.CurrentParticipants)
	}
	ev.setDetails(d)
	ev.UpdatedAt = now
	return ev, nil
}

// Copy produces a fresh draft carrying src's details. Roster, evaluations,
// results and cancellation data stay behind.
func Copy(src Event, id string, now time.Time) Event {
	return Event{
		ID:                    id,
		Name:                  src.Name + " (copy)",
		Description:           src.Description,
		Location:              src.Location,
		Category:              src.Category,
		Type:                  src.Type,
		Status:                StatusDraft,
		StartDate:             src.StartDate,
		EndDate:               cloneTime(src.EndDate),
		RegistrationStartDate: cloneTime(src.RegistrationStartDate),
		RegistrationEndDate:   cloneTime(src.RegistrationEndDate),
		MaxParticipants:       cloneInt(src.MaxParticipants),
		ApprovalMode:          src.ApprovalMode,
		CopiedFrom:            src.ID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// HasCapacity reports whether one more participant may be accepted.
// Events without a limit always have capacity.
func (e Event) HasCapacity() bool {
	return e.MaxParticipants == nil || e.CurrentParticipants < *e.MaxParticipants
}

// ResultsPublished reports whether the results-published marker is set.
func (e Event) ResultsPublished() bool { return e.ResultsPublishedAt != nil }

func (e *Event) setDetails(d Details) {
	e.Name = strings.TrimSpace(d.Name)
	e.Description = d.Description
	e.Location = strings.TrimSpace(d.Location)
	e.Category = strings.TrimSpace(d.Category)
	e.Type = strings.TrimSpace(d.Type)
	e.StartDate = d.StartDate
	e.EndDate = cloneTime(d.EndDate)
	e.RegistrationStartDate = cloneTime(d.RegistrationStartDate)
	e.RegistrationEndDate = cloneTime(d.RegistrationEndDate)
	e.MaxParticipants = cloneInt(d.MaxParticipants)
	e.ApprovalMode = d.ApprovalMode
	if e.ApprovalMode == "" {
		e.ApprovalMode = ApprovalAutomatic
	}
}

func (d Details) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if _, ok := ParseApprovalMode(string(d.ApprovalMode)); !ok {
		return fmt.Errorf("%w: approval mode %q", ErrInvalidEvent, d.ApprovalMode)
	}
	if d.MaxParticipants != nil && *d.MaxParticipants < 0 {
		return fmt.Errorf("%w: max participants must not be negative", ErrInvalidEvent)
	}
	if d.EndDate != nil && !d.StartDate.IsZero() && d.EndDate.Before(d.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidEvent)
	}
	if d.RegistrationStartDate != nil && d.RegistrationEndDate != nil &&
		d.RegistrationEndDate.Before(*d.RegistrationStartDate) {
		return fmt.Errorf("%w: registration ends before it starts", ErrInvalidEvent)
	}
	return nil
}

// missingRequired lists the fields publish needs but ev lacks.
func missingRequired(ev Event) []string {
	var missing []string
	if ev.Name == "" {
		missing = append(missing, "name")
	}
	if ev.Location == "" {
		missing = append(missing, "location")
	}
	if ev.StartDate.IsZero() {
		missing = append(missing, "start_date")
	}
	if ev.Category == "" {
		missing = append(missing, "category")
	}
	if ev.Type == "" {
		missing = append(missing, "type")
	}
	return missing
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
