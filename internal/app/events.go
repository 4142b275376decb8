package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/palco/internal/adapters/repository"
	"github.com/okian/palco/internal/domain/dedupe"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/pkg/logger"
	"github.com/okian/palco/pkg/metrics"
)

// CreateEvent stores a new draft event.
func (s *Service) CreateEvent(ctx context.Context, d event.Details) (event.Event, error) {
	ev, err := event.New(s.newID(), d, s.now())
	if err != nil {
		return event.Event{}, err
	}
	saved, err := s.store.CreateEvent(ctx, ev)
	if err != nil {
		return event.Event{}, fmt.Errorf("create event: %w", err)
	}
	metrics.RecordEventCreated(false)
	s.logger.Info(ctx, "event created", logger.EventID(saved.ID), logger.String("name", saved.Name))
	return saved, nil
}

// GetEvent returns the current event record.
func (s *Service) GetEvent(ctx context.Context, eventID string) (event.Event, error) {
	return s.store.GetEvent(ctx, eventID)
}

// EditEvent replaces a draft event's details.
func (s *Service) EditEvent(ctx context.Context, eventID string, d event.Details) (event.Event, error) {
	unlock := s.locks.Lock(eventID)
	defer unlock()

	cur, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return event.Event{}, err
	}
	next, err := event.Edit(cur, d, s.now())
	if err != nil {
		return event.Event{}, err
	}
	saved, err := s.store.UpdateEvent(ctx, repository.EventMutation{Event: next})
	if err != nil {
		s.noteConflict(err)
		return event.Event{}, fmt.Errorf("edit event %s: %w", eventID, err)
	}
	return saved, nil
}

// CopyEvent creates a new draft from an existing event's details.
func (s *Service) CopyEvent(ctx context.Context, eventID string) (event.Event, error) {
	src, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return event.Event{}, err
	}
	saved, err := s.store.CreateEvent(ctx, event.Copy(src, s.newID(), s.now()))
	if err != nil {
		return event.Event{}, fmt.Errorf("copy event %s: %w", eventID, err)
	}
	metrics.RecordEventCreated(true)
	s.logger.Info(ctx, "event copied", logger.EventID(saved.ID), logger.String("copied_from", eventID))
	return saved, nil
}

// Transition applies a lifecycle action. A non-empty idempotency key makes
// retries return the first successful result; a retry racing the original
// request fails with repository.ErrConflict.
func (s *Service) Transition(ctx context.Context, eventID string, req event.Request, idempotencyKey string) (event.Event, error) {
	if idempotencyKey == "" {
		return s.transition(ctx, eventID, req)
	}

	key := eventID + ":" + idempotencyKey
	prev, state := s.keys.Reserve(ctx, key)
	switch state {
	case dedupe.StateDone:
		metrics.RecordIdempotentReplay()
		return prev, nil
	case dedupe.StateInFlight:
		return event.Event{}, fmt.Errorf("%w: request %q is still in flight", repository.ErrConflict, idempotencyKey)
	}

	ev, err := s.transition(ctx, eventID, req)
	if err != nil {
		s.keys.Release(ctx, key)
		return event.Event{}, err
	}
	s.keys.Complete(ctx, key, ev)
	return ev, nil
}

func (s *Service) transition(ctx context.Context, eventID string, req event.Request) (event.Event, error) {
	unlock := s.locks.Lock(eventID)
	defer unlock()

	cur, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return event.Event{}, err
	}
	if req.At.IsZero() {
		req.At = s.now()
	}

	next, err := s.machine.Apply(cur, req)
	if err != nil {
		metrics.RecordTransition(string(req.Action), "rejected")
		s.logger.Debug(ctx, "transition rejected",
			logger.EventID(eventID),
			logger.String("action", string(req.Action)),
			logger.Error(err),
		)
		return event.Event{}, err
	}

	m := repository.EventMutation{Event: next, Unpublish: req.Action == event.ActionRevertToDraft}
	saved, err := s.store.UpdateEvent(ctx, m)
	if err != nil {
		s.noteConflict(err)
		metrics.RecordTransition(string(req.Action), "failed")
		return event.Event{}, fmt.Errorf("%s event %s: %w", req.Action, eventID, err)
	}

	metrics.RecordTransition(string(req.Action), "applied")
	metrics.MoveEventStatus(string(cur.Status), string(saved.Status))
	s.logger.Info(ctx, "event transitioned",
		logger.EventID(eventID),
		logger.String("action", string(req.Action)),
		logger.String("from", string(cur.Status)),
		logger.String("to", string(saved.Status)),
	)
	return saved, nil
}

// Window reports the registration-open and active facts at the current time.
func (s *Service) Window(ctx context.Context, eventID string) (open, active bool, ev event.Event, err error) {
	ev, err = s.store.GetEvent(ctx, eventID)
	if err != nil {
		return false, false, event.Event{}, err
	}
	return event.IsRegistrationOpen(ev, s.now()), event.IsActive(ev), ev, nil
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

func (s *Service) noteConflict(err error) {
	if errors.Is(err, repository.ErrConflict) {
		metrics.RecordVersionConflict()
	}
}
