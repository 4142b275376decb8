package event

import "time"

// IsRegistrationOpen reports whether public sign-up is permitted at now.
// The window defaults to [CreatedAt, StartDate] when explicit registration
// dates are absent. Only published events accept registrations.
func IsRegistrationOpen(e Event, now time.Time) bool {
	if e.Status != StatusPublished {
		return false
	}
	start := e.CreatedAt
	if e.RegistrationStartDate != nil {
		start = *e.RegistrationStartDate
	}
	end := e.StartDate
	if e.RegistrationEndDate != nil {
		end = *e.RegistrationEndDate
	}
	if start.IsZero() || end.IsZero() {
		return false
	}
	return !now.Before(start) && !now.After(end)
}

// IsActive reports whether the event is running.
func IsActive(e Event) bool { return e.Status == StatusOngoing }
