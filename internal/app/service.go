// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/palco/internal/adapters/liveboard"
	eventqueue "github.com/okian/palco/internal/adapters/mq/queue"
	workerpool "github.com/okian/palco/internal/adapters/mq/worker"
	"github.com/okian/palco/internal/adapters/repository"
	"github.com/okian/palco/internal/domain/dedupe"
	"github.com/okian/palco/internal/domain/evaluation"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/model"
	"github.com/okian/palco/internal/domain/ranking"
	"github.com/okian/palco/pkg/logger"
	"github.com/okian/palco/pkg/metrics"
)

// Service coordinates the event lifecycle, rosters, evaluations and results.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	board   *liveboard.Store
	queue   *eventqueue.InMemoryQueue
	pool    *workerpool.Pool
	keys    *dedupe.Registry[event.Event]
	locks   *keyedMutex
	machine *event.Machine
	scorer  *evaluation.Scorer

	// Configuration
	workerCount      int
	queueSize        int
	idempotencySize  int
	scoreMode        evaluation.Mode
	tieBreak         ranking.Policy
	allowManualStart bool
	requireComplete  bool
	maxLiveLimit     int

	now   func() time.Time
	newID func() string

	// State
	started bool
	stopped bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of live board workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending score changes.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithIdempotencySize bounds the number of remembered transition keys.
func WithIdempotencySize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.idempotencySize = size
		}
	}
}

// WithScoreMode selects how submitted scores become a total.
func WithScoreMode(mode evaluation.Mode) Option {
	return func(s *Service) {
		if m, ok := evaluation.ParseMode(string(mode)); ok {
			s.scoreMode = m
		}
	}
}

// WithTieBreak selects how equal averages are ranked.
func WithTieBreak(policy ranking.Policy) Option {
	return func(s *Service) {
		if p, ok := ranking.ParsePolicy(string(policy)); ok {
			s.tieBreak = p
		}
	}
}

// WithManualStart allows or forbids starting an event before its start date.
func WithManualStart(allowed bool) Option {
	return func(s *Service) {
		s.allowManualStart = allowed
	}
}

// WithRequireComplete makes unforced publication wait for every evaluation.
func WithRequireComplete(required bool) Option {
	return func(s *Service) {
		s.requireComplete = required
	}
}

// WithMaxLiveLimit caps the number of live board rows returned at once.
func WithMaxLiveLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxLiveLimit = limit
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how new identifiers are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Workers do not run until Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        10_000,
		idempotencySize:  10_000,
		scoreMode:        evaluation.ModeSingle,
		tieBreak:         ranking.PolicyShared,
		allowManualStart: true,
		requireComplete:  true,
		maxLiveLimit:     100,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	s.locks = newKeyedMutex()
	s.keys = dedupe.New[event.Event](dedupe.WithMaxSize(s.idempotencySize))
	s.machine = event.NewMachine(event.WithManualStart(s.allowManualStart))
	s.scorer = evaluation.NewScorer(evaluation.WithMode(s.scoreMode))
	s.board = liveboard.New(context.Background())
	s.queue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s, s.board)
	return s
}

// Start launches the live board workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.New("service already stopped")
	}
	if s.started {
		return nil
	}
	s.pool.Start(ctx)
	s.started = true

	s.logger.Info(ctx, "palco service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("idempotencySize", s.idempotencySize),
		logger.String("scoreMode", string(s.scoreMode)),
		logger.String("tieBreak", string(s.tieBreak)),
	)
	return nil
}

// Stop drains pending score changes and releases the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.logger.Info(ctx, "stopping palco service...")

	var errs []error
	if s.started {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	} else {
		_ = s.queue.Close()
	}
	if err := s.board.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "palco service stopped")
	return errors.Join(errs...)
}

// Stats reports runtime figures for monitoring.
type Stats struct {
	Started         bool   `json:"started"`
	Workers         int    `json:"workers"`
	QueueCapacity   int    `json:"queue_capacity"`
	QueueLength     int    `json:"queue_length"`
	IdempotencyKeys int64  `json:"idempotency_keys"`
	ScoreMode       string `json:"score_mode"`
	TieBreak        string `json:"tie_break"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Started:         s.started,
		Workers:         s.pool.Size(),
		QueueCapacity:   s.queueSize,
		QueueLength:     s.queue.Len(ctx),
		IdempotencyKeys: s.keys.Size(),
		ScoreMode:       string(s.scoreMode),
		TieBreak:        string(s.tieBreak),
	}
}

// LiveScore recomputes a participant's live standing from the store. It is
// the worker pool's source; participants not on the accepted roster are skipped.
func (s *Service) LiveScore(ctx context.Context, eventID, participantID string) (model.LiveScore, error) {
	p, err := s.store.GetParticipant(ctx, eventID, participantID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.LiveScore{}, workerpool.ErrSkip
	}
	if err != nil {
		return model.LiveScore{}, err
	}
	if !p.Accepted() {
		return model.LiveScore{}, workerpool.ErrSkip
	}

	records, err := s.store.ListParticipantEvaluations(ctx, eventID, participantID)
	if err != nil {
		return model.LiveScore{}, err
	}
	var rev int64
	for _, r := range records {
		rev += r.Revision
	}
	return model.LiveScore{
		EventID:       eventID,
		ParticipantID: p.ID,
		Name:          p.Name,
		Seq:           p.Seq,
		AvgScore:      evaluation.AverageScore(records),
		Evaluations:   len(records),
		Revision:      rev,
	}, nil
}

func (s *Service) enqueue(ctx context.Context, change model.ScoreChange) {
	if !s.queue.Enqueue(ctx, change) {
		s.logger.Warn(ctx, "score change dropped",
			logger.EventID(change.EventID),
			logger.ParticipantID(change.ParticipantID),
		)
		metrics.RecordError("service", "enqueue_dropped")
	}
}
