package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/roster"
	"github.com/okian/palco/pkg/logger"
	"github.com/okian/palco/pkg/metrics"
)

// Register signs a participant up for an event. Automatic approval accepts
// the participant at once; manual approval leaves it pending.
func (s *Service) Register(ctx context.Context, eventID, name string) (roster.Participant, error) {
	name, err := roster.NormalizeName(name)
	if err != nil {
		return roster.Participant{}, err
	}

	// Registration bumps the event version, so it queues behind transitions.
	unlock := s.locks.Lock(eventID)
	defer unlock()

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return roster.Participant{}, err
	}
	now := s.now()
	status, err := roster.Admit(ev, now)
	if err != nil {
		metrics.RecordRegistration(registrationOutcome(err))
		return roster.Participant{}, err
	}

	p := roster.Participant{
		ID:           s.newID(),
		EventID:      eventID,
		Name:         name,
		Status:       status,
		RegisteredAt: now,
	}
	if p.Accepted() {
		approvedAt := now
		p.ApprovedAt = &approvedAt
	}
	saved, err := s.store.RegisterParticipant(ctx, p)
	if err != nil {
		metrics.RecordRegistration(registrationOutcome(err))
		return roster.Participant{}, fmt.Errorf("register participant: %w", err)
	}
	metrics.RecordRegistration(string(saved.Status))
	s.logger.Info(ctx, "participant registered",
		logger.EventID(eventID),
		logger.ParticipantID(saved.ID),
		logger.Int("seq", saved.Seq),
		logger.String("status", string(saved.Status)),
	)
	return saved, nil
}

// Approve accepts a pending participant.
func (s *Service) Approve(ctx context.Context, eventID, participantID string) (roster.Participant, error) {
	unlock := s.locks.Lock(eventID)
	defer unlock()

	p, err := s.store.ApproveParticipant(ctx, eventID, participantID, s.now())
	if err != nil {
		return roster.Participant{}, fmt.Errorf("approve participant %s: %w", participantID, err)
	}
	metrics.RecordRegistration("approved")
	s.logger.Info(ctx, "participant approved", logger.EventID(eventID), logger.ParticipantID(participantID))
	return p, nil
}

// ListParticipants returns the event's participants in registration order.
func (s *Service) ListParticipants(ctx context.Context, eventID string) ([]roster.Participant, error) {
	return s.store.ListParticipants(ctx, eventID)
}

// AddJudge assigns a judge to the event. An empty judgeID mints one, so
// callers that issue judge tokens can pick the id up front.
func (s *Service) AddJudge(ctx context.Context, eventID, judgeID, name string) (roster.Judge, error) {
	name, err := roster.NormalizeName(name)
	if err != nil {
		return roster.Judge{}, err
	}
	if judgeID == "" {
		judgeID = s.newID()
	}
	j, err := s.store.AddJudge(ctx, roster.Judge{
		ID:         judgeID,
		EventID:    eventID,
		Name:       name,
		AssignedAt: s.now(),
	})
	if err != nil {
		return roster.Judge{}, fmt.Errorf("assign judge: %w", err)
	}
	metrics.RecordJudgeAssigned()
	s.logger.Info(ctx, "judge assigned", logger.EventID(eventID), logger.JudgeID(j.ID))
	return j, nil
}

// ListJudges returns the event's judges in assignment order.
func (s *Service) ListJudges(ctx context.Context, eventID string) ([]roster.Judge, error) {
	return s.store.ListJudges(ctx, eventID)
}

func registrationOutcome(err error) string {
	switch {
	case errors.Is(err, event.ErrRegistrationClosed):
		return "closed"
	case errors.Is(err, event.ErrCapacityExceeded):
		return "full"
	default:
		return "failed"
	}
}
