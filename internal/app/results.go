package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/palco/internal/adapters/repository"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/model"
	"github.com/okian/palco/internal/domain/ranking"
	"github.com/okian/palco/pkg/logger"
	"github.com/okian/palco/pkg/metrics"
)

const defaultLiveLimit = 10

// Ranking returns the event's board. Operators always get a freshly computed
// board; everyone else gets the frozen published one or ranking.ErrNotPublished.
func (s *Service) Ranking(ctx context.Context, eventID string, operator bool) (ranking.Board, error) {
	if !operator {
		return s.publishedBoard(ctx, eventID)
	}

	start := time.Now()
	ev, snap, err := s.snapshot(ctx, eventID)
	if err != nil {
		return ranking.Board{}, err
	}
	board := ranking.Rank(snap, s.tieBreak, ev.ResultsPublished(), s.now())
	metrics.RecordRanking(float64(time.Since(start).Microseconds()) / 1000)
	return board, nil
}

func (s *Service) publishedBoard(ctx context.Context, eventID string) (ranking.Board, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return ranking.Board{}, err
	}
	if !ev.ResultsPublished() {
		return ranking.Board{}, fmt.Errorf("%w: event %s", ranking.ErrNotPublished, eventID)
	}
	board, err := s.store.GetPublishedBoard(ctx, eventID)
	if isNotFound(err) {
		return ranking.Board{}, fmt.Errorf("%w: event %s", ranking.ErrNotPublished, eventID)
	}
	return board, err
}

// Publish freezes the current board as the public results and marks the
// event's results as published. Unless force is set or the service was
// configured otherwise, every judge must have evaluated every participant.
// Publishing again refreshes the frozen board.
func (s *Service) Publish(ctx context.Context, eventID string, force bool) (event.Event, ranking.Board, error) {
	unlock := s.locks.Lock(eventID)
	defer unlock()

	ev, snap, err := s.snapshot(ctx, eventID)
	if err != nil {
		return event.Event{}, ranking.Board{}, err
	}
	if s.requireComplete && !force && !snap.IsComplete {
		return event.Event{}, ranking.Board{}, fmt.Errorf("%w: %d of %d evaluations recorded",
			ranking.ErrEvaluationsIncomplete, snap.CompletedEvaluations, snap.ExpectedEvaluations)
	}

	now := s.now()
	board := ranking.Rank(snap, s.tieBreak, true, now)
	publishedAt := now
	ev.ResultsPublishedAt = &publishedAt
	ev.UpdatedAt = now

	saved, err := s.store.UpdateEvent(ctx, repository.EventMutation{Event: ev, Publish: &board})
	if err != nil {
		s.noteConflict(err)
		return event.Event{}, ranking.Board{}, fmt.Errorf("publish results for %s: %w", eventID, err)
	}

	metrics.RecordResultsPublished()
	s.logger.Info(ctx, "results published",
		logger.EventID(eventID),
		logger.Int("entries", len(board.Entries)),
		logger.Bool("forced", force),
		logger.String("inputs_hash", board.InputsHash),
	)
	return saved, board, nil
}

// Live returns up to limit rows of the live-scoring board. A non-positive
// limit uses a small default; larger requests are capped.
func (s *Service) Live(ctx context.Context, eventID string, limit int) ([]model.LiveScore, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = min(defaultLiveLimit, s.maxLiveLimit)
	}
	limit = min(limit, s.maxLiveLimit)
	return s.board.Top(ctx, eventID, limit)
}
