// Package liveboard keeps an in-memory, continuously updated standing per
// event for the live-scoring display.
package liveboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/palco/internal/domain/model"
	"github.com/okian/palco/pkg/metrics"
)

// Outcomes reported by Upsert.
const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
	OutcomeStale    = "stale"
)

type board struct {
	root *node
	byID map[string]model.LiveScore
}

// Store holds one treap per event.
type Store struct {
	mu     sync.RWMutex
	boards map[string]*board

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	closeOnce             sync.Once
}

// New constructs a live board store and starts its metrics updater, which
// stops when ctx is done or Close is called.
func New(ctx context.Context, opts ...Option) *Store {
	s := &Store{
		boards:                make(map[string]*board),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops background work.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Upsert places sc on its event's board. A row whose Revision is not newer
// than the current one is ignored, so late workers never regress a row.
func (s *Store) Upsert(_ context.Context, sc model.LiveScore) (string, error) {
	if sc.EventID == "" || sc.ParticipantID == "" {
		return "", fmt.Errorf("%w: event and participant ids are required", ErrInvalidScore)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[sc.EventID]
	if !ok {
		b = &board{byID: make(map[string]model.LiveScore)}
		s.boards[sc.EventID] = b
	}
	outcome := OutcomeInserted
	if old, exists := b.byID[sc.ParticipantID]; exists {
		if sc.Revision <= old.Revision {
			metrics.RecordLiveBoardUpdate(OutcomeStale)
			return OutcomeStale, nil
		}
		b.root = remove(b.root, old)
		outcome = OutcomeUpdated
	}
	b.byID[sc.ParticipantID] = sc
	b.root = insert(b.root, sc)
	metrics.RecordLiveBoardUpdate(outcome)
	return outcome, nil
}

// Top returns up to n rows of the event's board, best first.
func (s *Store) Top(_ context.Context, eventID string, n int) ([]model.LiveScore, error) {
	if n < 1 {
		metrics.RecordError("liveboard", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.LiveScore, 0, min(n, s.countLocked(eventID)))
	if b, ok := s.boards[eventID]; ok {
		collectTop(b.root, n, &out)
	}
	return out, nil
}

// Position returns the participant's 1-based position and current row.
func (s *Store) Position(_ context.Context, eventID, participantID string) (int, model.LiveScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[eventID]
	if !ok {
		return 0, model.LiveScore{}, ErrNotFound
	}
	sc, ok := b.byID[participantID]
	if !ok {
		return 0, model.LiveScore{}, ErrNotFound
	}
	return position(b.root, sc), sc, nil
}

// Count returns the number of rows on the event's board.
func (s *Store) Count(_ context.Context, eventID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(eventID)
}

func (s *Store) countLocked(eventID string) int {
	if b, ok := s.boards[eventID]; ok {
		return len(b.byID)
	}
	return 0
}

// startMetricsUpdater periodically publishes the total row count.
func (s *Store) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *Store) updateMetrics() {
	s.mu.RLock()
	total := 0
	for _, b := range s.boards {
		total += len(b.byID)
	}
	s.mu.RUnlock()
	metrics.UpdateLiveBoardEntries(total)
}
