package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/palco/internal/app"
	"github.com/okian/palco/internal/adapters/repository"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := newTestService(newClock())

		Convey("When starting it twice and stopping", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats(ctx).Started, ShouldBeTrue)
			So(svc.GetStats(ctx).Workers, ShouldEqual, 2)

			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			Convey("Then it stops cleanly and refuses to restart", func() {
				So(svc.Stop(stopCtx), ShouldBeNil)
				So(svc.Stop(stopCtx), ShouldBeNil)
				So(svc.GetStats(ctx).Started, ShouldBeFalse)
				So(svc.Start(ctx), ShouldNotBeNil)
			})
		})

		Convey("When reporting stats", func() {
			stats := svc.GetStats(ctx)

			Convey("Then the configured defaults are visible", func() {
				So(stats.ScoreMode, ShouldEqual, "single")
				So(stats.TieBreak, ShouldEqual, "shared")
				So(stats.QueueCapacity, ShouldEqual, 10_000)
				So(stats.QueueLength, ShouldEqual, 0)
			})
		})
	})
}

func TestService_Events(t *testing.T) {
	Convey("Given a service with a fixed clock", t, func() {
		ctx := context.Background()
		c := newClock()
		svc := newTestService(c)

		Convey("When creating an event without a name", func() {
			_, err := svc.CreateEvent(ctx, event.Details{Location: "x"})

			Convey("Then it is rejected as invalid", func() {
				So(errors.Is(err, event.ErrInvalidEvent), ShouldBeTrue)
			})
		})

		Convey("When creating a complete event", func() {
			ev, err := svc.CreateEvent(ctx, festival())
			So(err, ShouldBeNil)

			Convey("Then it is a draft at version 1 with automatic approval", func() {
				So(ev.Status, ShouldEqual, event.StatusDraft)
				So(ev.Version, ShouldEqual, 1)
				So(ev.ApprovalMode, ShouldEqual, event.ApprovalAutomatic)
				got, err := svc.GetEvent(ctx, ev.ID)
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "Festival de Inverno")
			})

			Convey("And editing the draft bumps the version", func() {
				d := festival()
				d.Name = "Festival de Verão"
				edited, err := svc.EditEvent(ctx, ev.ID, d)
				So(err, ShouldBeNil)
				So(edited.Name, ShouldEqual, "Festival de Verão")
				So(edited.Version, ShouldEqual, 2)
			})

			Convey("And editing after publication is refused", func() {
				_, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionPublish}, "")
				So(err, ShouldBeNil)
				_, err = svc.EditEvent(ctx, ev.ID, festival())
				So(errors.Is(err, event.ErrNotEditable), ShouldBeTrue)
			})

			Convey("And copying it yields a fresh draft", func() {
				_, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionPublish}, "")
				So(err, ShouldBeNil)
				_, err = svc.Register(ctx, ev.ID, "Ana")
				So(err, ShouldBeNil)

				cp, err := svc.CopyEvent(ctx, ev.ID)
				So(err, ShouldBeNil)
				So(cp.ID, ShouldNotEqual, ev.ID)
				So(cp.Status, ShouldEqual, event.StatusDraft)
				So(cp.CopiedFrom, ShouldEqual, ev.ID)
				So(cp.CurrentParticipants, ShouldEqual, 0)
				ps, err := svc.ListParticipants(ctx, cp.ID)
				So(err, ShouldBeNil)
				So(ps, ShouldBeEmpty)
			})
		})

		Convey("When looking up an unknown event", func() {
			_, err := svc.GetEvent(ctx, "missing")
			_, err2 := svc.Transition(ctx, "missing", event.Request{Action: event.ActionPublish}, "")

			Convey("Then NotFound is reported", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(err2, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_Transitions(t *testing.T) {
	Convey("Given a published event", t, func() {
		ctx := context.Background()
		c := newClock()
		svc := newTestService(c, service.WithManualStart(false))
		ev := publishedEvent(ctx, svc, festival())

		Convey("When starting before the start date without override", func() {
			_, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionStart}, "")

			Convey("Then the guard rejects it and the status is unchanged", func() {
				var te *event.TransitionError
				So(errors.As(err, &te), ShouldBeTrue)
				So(te.From, ShouldEqual, event.StatusPublished)
				got, _ := svc.GetEvent(ctx, ev.ID)
				So(got.Status, ShouldEqual, event.StatusPublished)
			})
		})

		Convey("When overriding while manual start is disabled", func() {
			_, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionStart, Override: true}, "")
			So(errors.Is(err, event.ErrInvalidTransition), ShouldBeTrue)
		})

		Convey("When the start date arrives", func() {
			c.Advance(25 * time.Hour)
			started, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionStart}, "")
			So(err, ShouldBeNil)
			So(started.Status, ShouldEqual, event.StatusOngoing)

			Convey("Then the window reports active and closed registration", func() {
				open, active, _, err := svc.Window(ctx, ev.ID)
				So(err, ShouldBeNil)
				So(open, ShouldBeFalse)
				So(active, ShouldBeTrue)
			})

			Convey("Then revert to draft is refused while ongoing", func() {
				_, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionRevertToDraft}, "")
				So(errors.Is(err, event.ErrInvalidTransition), ShouldBeTrue)
			})

			Convey("Then complete finishes it", func() {
				done, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionComplete}, "")
				So(err, ShouldBeNil)
				So(done.Status, ShouldEqual, event.StatusCompleted)
			})
		})

		Convey("When cancelling with a reason", func() {
			cancelled, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionCancel, Reason: "  chuva  "}, "")
			So(err, ShouldBeNil)

			Convey("Then the reason is recorded and revert clears it", func() {
				So(cancelled.Status, ShouldEqual, event.StatusCancelled)
				So(cancelled.CancelReason, ShouldEqual, "chuva")
				draft, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionRevertToDraft}, "")
				So(err, ShouldBeNil)
				So(draft.Status, ShouldEqual, event.StatusDraft)
				So(draft.CancelReason, ShouldBeEmpty)
			})
		})

		Convey("When ten publish requests race", func() {
			draft, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionRevertToDraft}, "")
			So(err, ShouldBeNil)

			var wg sync.WaitGroup
			var mu sync.Mutex
			var ok, rejected int
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.Transition(ctx, draft.ID, event.Request{Action: event.ActionPublish}, "")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case errors.Is(err, event.ErrInvalidTransition):
						rejected++
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one wins and the rest see the new status", func() {
				So(ok, ShouldEqual, 1)
				So(rejected, ShouldEqual, 9)
			})
		})
	})
}

func TestService_IdempotentTransitions(t *testing.T) {
	Convey("Given a draft event", t, func() {
		ctx := context.Background()
		svc := newTestService(newClock())
		ev, err := svc.CreateEvent(ctx, festival())
		So(err, ShouldBeNil)

		Convey("When the same publish request is replayed", func() {
			first, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionPublish}, "req-1")
			So(err, ShouldBeNil)
			second, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionPublish}, "req-1")

			Convey("Then the replay returns the recorded result", func() {
				So(err, ShouldBeNil)
				So(second.Version, ShouldEqual, first.Version)
				So(second.Status, ShouldEqual, event.StatusPublished)
				So(svc.GetStats(ctx).IdempotencyKeys, ShouldEqual, 1)
			})
		})

		Convey("When a keyed request fails", func() {
			_, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionComplete}, "req-2")
			So(errors.Is(err, event.ErrInvalidTransition), ShouldBeTrue)

			Convey("Then the key is released for a retry", func() {
				So(svc.GetStats(ctx).IdempotencyKeys, ShouldEqual, 0)
				_, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionPublish}, "req-2")
				So(err, ShouldBeNil)
			})
		})

		Convey("When the same key is used on another event", func() {
			other, err := svc.CreateEvent(ctx, festival())
			So(err, ShouldBeNil)
			_, err = svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionPublish}, "shared")
			So(err, ShouldBeNil)
			got, err := svc.Transition(ctx, other.ID, event.Request{Action: event.ActionPublish}, "shared")

			Convey("Then keys are scoped per event", func() {
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, other.ID)
			})
		})
	})
}

func TestService_Roster(t *testing.T) {
	Convey("Given a published event with two places", t, func() {
		ctx := context.Background()
		c := newClock()
		svc := newTestService(c)
		d := festival()
		d.MaxParticipants = intPtr(2)
		ev := publishedEvent(ctx, svc, d)

		Convey("When three participants register", func() {
			a, errA := svc.Register(ctx, ev.ID, " Ana ")
			b, errB := svc.Register(ctx, ev.ID, "Bruno")
			_, errC := svc.Register(ctx, ev.ID, "Carla")

			Convey("Then the first two are accepted in order and the third is refused", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a.Name, ShouldEqual, "Ana")
				So(a.Seq, ShouldEqual, 1)
				So(b.Seq, ShouldEqual, 2)
				So(a.Status, ShouldEqual, roster.ParticipantAccepted)
				So(a.ApprovedAt, ShouldNotBeNil)
				So(errors.Is(errC, event.ErrCapacityExceeded), ShouldBeTrue)

				got, _ := svc.GetEvent(ctx, ev.ID)
				So(got.CurrentParticipants, ShouldEqual, 2)
			})
		})

		Convey("When registering a blank name", func() {
			_, err := svc.Register(ctx, ev.ID, "   ")
			So(errors.Is(err, roster.ErrInvalidName), ShouldBeTrue)
		})

		Convey("When registration has closed", func() {
			c.Advance(25 * time.Hour)
			_, err := svc.Register(ctx, ev.ID, "Tarde")
			So(errors.Is(err, event.ErrRegistrationClosed), ShouldBeTrue)
		})

		Convey("When assigning judges", func() {
			j1, err := svc.AddJudge(ctx, ev.ID, "judge-x", "Helena")
			So(err, ShouldBeNil)
			_, err = svc.AddJudge(ctx, ev.ID, "", "Igor")
			So(err, ShouldBeNil)
			_, dup := svc.AddJudge(ctx, ev.ID, "judge-x", "Helena")

			Convey("Then explicit ids are kept, order is preserved and duplicates conflict", func() {
				So(j1.ID, ShouldEqual, "judge-x")
				js, err := svc.ListJudges(ctx, ev.ID)
				So(err, ShouldBeNil)
				So(len(js), ShouldEqual, 2)
				So(js[0].Name, ShouldEqual, "Helena")
				So(js[1].Name, ShouldEqual, "Igor")
				So(errors.Is(dup, repository.ErrConflict), ShouldBeTrue)
			})
		})
	})

	Convey("Given a published event with manual approval and one place", t, func() {
		ctx := context.Background()
		svc := newTestService(newClock())
		d := festival()
		d.ApprovalMode = event.ApprovalManual
		d.MaxParticipants = intPtr(1)
		ev := publishedEvent(ctx, svc, d)

		a, err := svc.Register(ctx, ev.ID, "Ana")
		So(err, ShouldBeNil)
		b, err := svc.Register(ctx, ev.ID, "Bruno")
		So(err, ShouldBeNil)

		Convey("Then registrations wait as pending without taking places", func() {
			So(a.Status, ShouldEqual, roster.ParticipantPending)
			So(b.Status, ShouldEqual, roster.ParticipantPending)
			got, _ := svc.GetEvent(ctx, ev.ID)
			So(got.CurrentParticipants, ShouldEqual, 0)
		})

		Convey("When approving beyond capacity", func() {
			approved, err := svc.Approve(ctx, ev.ID, a.ID)
			So(err, ShouldBeNil)
			_, again := svc.Approve(ctx, ev.ID, a.ID)
			_, full := svc.Approve(ctx, ev.ID, b.ID)
			_, missing := svc.Approve(ctx, ev.ID, "ghost")

			Convey("Then only the first approval takes the place", func() {
				So(approved.Status, ShouldEqual, roster.ParticipantAccepted)
				So(errors.Is(again, roster.ErrAlreadyAccepted), ShouldBeTrue)
				So(errors.Is(full, event.ErrCapacityExceeded), ShouldBeTrue)
				So(errors.Is(missing, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_CompleteRacesCancel(t *testing.T) {
	Convey("Given an ongoing event", t, func() {
		ctx := context.Background()
		svc := newTestService(newClock())
		ev := publishedEvent(ctx, svc, festival())
		_, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionStart, Override: true}, "")
		So(err, ShouldBeNil)

		Convey("When complete and cancel are requested at once", func() {
			actions := []event.Action{event.ActionComplete, event.ActionCancel}
			errs := make([]error, len(actions))
			start := make(chan struct{})
			var wg sync.WaitGroup
			for i, action := range actions {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, errs[i] = svc.Transition(ctx, ev.ID, event.Request{Action: action}, "")
				}()
			}
			close(start)
			wg.Wait()

			Convey("Then exactly one applies and the other sees the final status", func() {
				applied := 0
				for _, err := range errs {
					if err == nil {
						applied++
						continue
					}
					So(errors.Is(err, event.ErrInvalidTransition), ShouldBeTrue)
				}
				So(applied, ShouldEqual, 1)

				got, err := svc.GetEvent(ctx, ev.ID)
				So(err, ShouldBeNil)
				So(got.Status, ShouldBeIn, []event.Status{event.StatusCompleted, event.StatusCancelled})
				if errs[0] == nil {
					So(got.Status, ShouldEqual, event.StatusCompleted)
				} else {
					So(got.Status, ShouldEqual, event.StatusCancelled)
				}
			})
		})
	})
}

var errWriteFailed = errors.New("disk unavailable")

// failingStore rejects event updates while failing is set.
type failingStore struct {
	repository.Store
	failing atomic.Bool
}

func (s *failingStore) UpdateEvent(ctx context.Context, m repository.EventMutation) (event.Event, error) {
	if s.failing.Load() {
		return event.Event{}, errWriteFailed
	}
	return s.Store.UpdateEvent(ctx, m)
}

func TestService_FailedWriteKeepsStatus(t *testing.T) {
	Convey("Given a draft event on a store that stops accepting updates", t, func() {
		ctx := context.Background()
		store := &failingStore{Store: repository.NewMemoryStore()}
		svc := newTestService(newClock(), service.WithStore(store))
		ev, err := svc.CreateEvent(ctx, festival())
		So(err, ShouldBeNil)
		store.failing.Store(true)

		Convey("When publishing it", func() {
			_, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionPublish}, "pub-1")

			Convey("Then the write error is returned and the draft is unchanged", func() {
				So(errors.Is(err, errWriteFailed), ShouldBeTrue)
				got, err := svc.GetEvent(ctx, ev.ID)
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, event.StatusDraft)
				So(got.Version, ShouldEqual, ev.Version)
			})

			Convey("And a retry with the same key applies once the store recovers", func() {
				store.failing.Store(false)
				got, err := svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionPublish}, "pub-1")
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, event.StatusPublished)
			})
		})
	})
}
