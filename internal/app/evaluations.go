package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/palco/internal/adapters/repository"
	"github.com/okian/palco/internal/domain/evaluation"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/model"
	"github.com/okian/palco/internal/domain/roster"
	"github.com/okian/palco/pkg/logger"
	"github.com/okian/palco/pkg/metrics"
)

// Submit records or replaces the judge's evaluation of the participant.
// Scores are validated before anything is written.
func (s *Service) Submit(ctx context.Context, sub evaluation.Submission) (evaluation.Record, error) {
	scores, err := s.scorer.Score(sub.Scores)
	if err != nil {
		metrics.RecordEvaluationRejected("invalid_score")
		return evaluation.Record{}, err
	}

	if _, err := s.store.GetEvent(ctx, sub.EventID); err != nil {
		metrics.RecordEvaluationRejected("unknown_event")
		return evaluation.Record{}, err
	}
	p, err := s.store.GetParticipant(ctx, sub.EventID, sub.ParticipantID)
	if err != nil {
		metrics.RecordEvaluationRejected("unknown_participant")
		return evaluation.Record{}, err
	}
	if !p.Accepted() {
		metrics.RecordEvaluationRejected("unknown_participant")
		return evaluation.Record{}, fmt.Errorf("%w: participant %s is not accepted", repository.ErrNotFound, p.ID)
	}
	j, err := s.store.GetJudge(ctx, sub.EventID, sub.JudgeID)
	if err != nil {
		metrics.RecordEvaluationRejected("unknown_judge")
		return evaluation.Record{}, err
	}

	key := evaluation.Key{EventID: sub.EventID, ParticipantID: p.ID, JudgeID: j.ID}
	rec := evaluation.NewRecord(key, scores, strings.TrimSpace(sub.Feedback), s.now())
	saved, replaced, err := s.store.UpsertEvaluation(ctx, rec)
	if err != nil {
		metrics.RecordEvaluationRejected("store_error")
		return evaluation.Record{}, fmt.Errorf("submit evaluation: %w", err)
	}
	saved.JudgeName = j.Name

	metrics.RecordEvaluation(replaced)
	s.logger.Debug(ctx, "evaluation stored",
		logger.EventID(key.EventID),
		logger.ParticipantID(key.ParticipantID),
		logger.JudgeID(key.JudgeID),
		logger.Float64("total", saved.Total),
		logger.Int64("revision", saved.Revision),
	)
	s.enqueue(ctx, model.ScoreChange{
		EventID:       key.EventID,
		ParticipantID: key.ParticipantID,
		JudgeID:       key.JudgeID,
		At:            saved.EvaluatedAt,
	})
	return saved, nil
}

// ListForParticipant returns the participant's records with judge names.
func (s *Service) ListForParticipant(ctx context.Context, eventID, participantID string) ([]evaluation.Record, error) {
	if _, err := s.store.GetParticipant(ctx, eventID, participantID); err != nil {
		return nil, err
	}
	return s.store.ListParticipantEvaluations(ctx, eventID, participantID)
}

// ListAvailableJudges returns the judges that have not yet evaluated the participant.
func (s *Service) ListAvailableJudges(ctx context.Context, eventID, participantID string) ([]roster.Judge, error) {
	records, err := s.ListForParticipant(ctx, eventID, participantID)
	if err != nil {
		return nil, err
	}
	judges, err := s.store.ListJudges(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return evaluation.AvailableJudges(judges, records), nil
}

// Progress derives the event's completion snapshot.
func (s *Service) Progress(ctx context.Context, eventID string) (evaluation.Snapshot, error) {
	_, snap, err := s.snapshot(ctx, eventID)
	return snap, err
}

// snapshot reads records before the rosters. Records only reference judges
// and accepted participants that already exist, so the rosters read after
// them always cover every record.
func (s *Service) snapshot(ctx context.Context, eventID string) (event.Event, evaluation.Snapshot, error) {
	records, err := s.store.ListEvaluations(ctx, eventID)
	if err != nil {
		return event.Event{}, evaluation.Snapshot{}, err
	}
	participants, err := s.store.ListParticipants(ctx, eventID)
	if err != nil {
		return event.Event{}, evaluation.Snapshot{}, err
	}
	judges, err := s.store.ListJudges(ctx, eventID)
	if err != nil {
		return event.Event{}, evaluation.Snapshot{}, err
	}
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return event.Event{}, evaluation.Snapshot{}, err
	}
	return ev, evaluation.Summarize(eventID, participants, judges, records), nil
}

func isNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }
