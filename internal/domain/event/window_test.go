package event_test

import (
	"testing"
	"time"

	"github.com/okian/palco/internal/domain/event"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegistrationWindow(t *testing.T) {
	Convey("Given a published event without explicit registration dates", t, func() {
		ev := readyDraft()
		ev.Status = event.StatusPublished

		Convey("Then the window runs from creation to start", func() {
			So(event.IsRegistrationOpen(ev, t0.Add(-time.Second)), ShouldBeFalse)
			So(event.IsRegistrationOpen(ev, t0), ShouldBeTrue)
			So(event.IsRegistrationOpen(ev, ev.StartDate), ShouldBeTrue)
			So(event.IsRegistrationOpen(ev, ev.StartDate.Add(time.Second)), ShouldBeFalse)
		})

		Convey("When explicit dates are set they take precedence", func() {
			from := t0.Add(10 * time.Hour)
			to := t0.Add(20 * time.Hour)
			ev.RegistrationStartDate = &from
			ev.RegistrationEndDate = &to

			So(event.IsRegistrationOpen(ev, t0.Add(5*time.Hour)), ShouldBeFalse)
			So(event.IsRegistrationOpen(ev, t0.Add(15*time.Hour)), ShouldBeTrue)
			So(event.IsRegistrationOpen(ev, t0.Add(30*time.Hour)), ShouldBeFalse)
		})

		Convey("When the start date is unset and no end date exists", func() {
			ev.StartDate = time.Time{}

			So(event.IsRegistrationOpen(ev, t0), ShouldBeFalse)
		})
	})

	Convey("Given every non-published status", t, func() {
		ev := readyDraft()
		from := t0.Add(-time.Hour)
		to := t0.Add(time.Hour)
		ev.RegistrationStartDate = &from
		ev.RegistrationEndDate = &to

		Convey("Then registration is closed regardless of dates", func() {
			for _, s := range []event.Status{event.StatusDraft, event.StatusOngoing, event.StatusCompleted, event.StatusCancelled} {
				ev.Status = s
				So(event.IsRegistrationOpen(ev, t0), ShouldBeFalse)
			}
		})
	})

	Convey("Given the active flag", t, func() {
		ev := readyDraft()

		Convey("Then only ongoing events are active", func() {
			So(event.IsActive(ev), ShouldBeFalse)
			ev.Status = event.StatusOngoing
			So(event.IsActive(ev), ShouldBeTrue)
		})
	})
}
