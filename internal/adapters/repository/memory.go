package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/palco/internal/domain/evaluation"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/ranking"
	"github.com/okian/palco/internal/domain/roster"
)

// eventState groups everything stored under one event.
type eventState struct {
	event        event.Event
	participants []roster.Participant // registration order
	judges       []roster.Judge       // assignment order
	records      map[string]evaluation.Record
	board        *ranking.Board
}

// MemoryStore implements Store in process memory. A single lock makes every
// write atomic; readers receive copies.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]*eventState
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]*eventState)}
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// CreateEvent implements EventStore.
func (s *MemoryStore) CreateEvent(_ context.Context, ev event.Event) (event.Event, error) {
	defer ObserveLatency("create_event", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; ok {
		return event.Event{}, fmt.Errorf("%w: event %s exists", ErrConflict, ev.ID)
	}
	ev.Version = 1
	s.events[ev.ID] = &eventState{event: ev, records: make(map[string]evaluation.Record)}
	return ev, nil
}

// GetEvent implements EventStore.
func (s *MemoryStore) GetEvent(_ context.Context, id string) (event.Event, error) {
	defer ObserveLatency("get_event", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.events[id]
	if !ok {
		return event.Event{}, fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	return st.event, nil
}

// UpdateEvent implements EventStore.
func (s *MemoryStore) UpdateEvent(_ context.Context, m EventMutation) (event.Event, error) {
	defer ObserveLatency("update_event", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.events[m.Event.ID]
	if !ok {
		return event.Event{}, fmt.Errorf("%w: event %s", ErrNotFound, m.Event.ID)
	}
	if st.event.Version != m.Event.Version {
		return event.Event{}, fmt.Errorf("%w: event %s at version %d, expected %d",
			ErrConflict, m.Event.ID, st.event.Version, m.Event.Version)
	}
	next := m.Event
	next.Version++
	st.event = next
	switch {
	case m.Publish != nil:
		b := cloneBoard(*m.Publish)
		st.board = &b
	case m.Unpublish:
		st.board = nil
	}
	return next, nil
}

// GetPublishedBoard implements EventStore.
func (s *MemoryStore) GetPublishedBoard(_ context.Context, eventID string) (ranking.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.events[eventID]
	if !ok {
		return ranking.Board{}, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	if st.board == nil {
		return ranking.Board{}, fmt.Errorf("%w: no published board for %s", ErrNotFound, eventID)
	}
	return cloneBoard(*st.board), nil
}

// RegisterParticipant implements RosterStore.
func (s *MemoryStore) RegisterParticipant(_ context.Context, p roster.Participant) (roster.Participant, error) {
	defer ObserveLatency("register_participant", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.events[p.EventID]
	if !ok {
		return roster.Participant{}, fmt.Errorf("%w: event %s", ErrNotFound, p.EventID)
	}
	if p.Accepted() {
		if !st.event.HasCapacity() {
			return roster.Participant{}, fmt.Errorf("%w: event %s is full", event.ErrCapacityExceeded, p.EventID)
		}
		st.event.CurrentParticipants++
		st.event.UpdatedAt = p.RegisteredAt
		st.event.Version++
	}
	p.Seq = len(st.participants) + 1
	st.participants = append(st.participants, p)
	return p, nil
}

// ApproveParticipant implements RosterStore.
func (s *MemoryStore) ApproveParticipant(_ context.Context, eventID, participantID string, at time.Time) (roster.Participant, error) {
	defer ObserveLatency("approve_participant", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.events[eventID]
	if !ok {
		return roster.Participant{}, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	for i := range st.participants {
		p := &st.participants[i]
		if p.ID != participantID {
			continue
		}
		if err := roster.Approve(st.event, *p); err != nil {
			return roster.Participant{}, err
		}
		approvedAt := at
		p.Status = roster.ParticipantAccepted
		p.ApprovedAt = &approvedAt
		st.event.CurrentParticipants++
		st.event.UpdatedAt = at
		st.event.Version++
		return *p, nil
	}
	return roster.Participant{}, fmt.Errorf("%w: participant %s", ErrNotFound, participantID)
}

// GetParticipant implements RosterStore.
func (s *MemoryStore) GetParticipant(_ context.Context, eventID, participantID string) (roster.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.events[eventID]; ok {
		for _, p := range st.participants {
			if p.ID == participantID {
				return p, nil
			}
		}
	}
	return roster.Participant{}, fmt.Errorf("%w: participant %s", ErrNotFound, participantID)
}

// ListParticipants implements RosterStore.
func (s *MemoryStore) ListParticipants(_ context.Context, eventID string) ([]roster.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	return append([]roster.Participant(nil), st.participants...), nil
}

// AddJudge implements RosterStore.
func (s *MemoryStore) AddJudge(_ context.Context, j roster.Judge) (roster.Judge, error) {
	defer ObserveLatency("add_judge", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.events[j.EventID]
	if !ok {
		return roster.Judge{}, fmt.Errorf("%w: event %s", ErrNotFound, j.EventID)
	}
	for _, existing := range st.judges {
		if existing.ID == j.ID {
			return roster.Judge{}, fmt.Errorf("%w: judge %s already assigned", ErrConflict, j.ID)
		}
	}
	st.judges = append(st.judges, j)
	return j, nil
}

// GetJudge implements RosterStore.
func (s *MemoryStore) GetJudge(_ context.Context, eventID, judgeID string) (roster.Judge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.events[eventID]; ok {
		for _, j := range st.judges {
			if j.ID == judgeID {
				return j, nil
			}
		}
	}
	return roster.Judge{}, fmt.Errorf("%w: judge %s", ErrNotFound, judgeID)
}

// ListJudges implements RosterStore.
func (s *MemoryStore) ListJudges(_ context.Context, eventID string) ([]roster.Judge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	return append([]roster.Judge(nil), st.judges...), nil
}

// UpsertEvaluation implements EvaluationStore.
func (s *MemoryStore) UpsertEvaluation(_ context.Context, r evaluation.Record) (evaluation.Record, bool, error) {
	defer ObserveLatency("upsert_evaluation", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.events[r.EventID]
	if !ok {
		return evaluation.Record{}, false, fmt.Errorf("%w: event %s", ErrNotFound, r.EventID)
	}
	k := recordKey(r.Key)
	prev, replaced := st.records[k]
	r.Revision = prev.Revision + 1
	r.JudgeName = ""
	st.records[k] = r
	return r, replaced, nil
}

// ListEvaluations implements EvaluationStore.
func (s *MemoryStore) ListEvaluations(_ context.Context, eventID string) ([]evaluation.Record, error) {
	defer ObserveLatency("list_evaluations", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	out := make([]evaluation.Record, 0, len(st.records))
	for _, r := range st.records {
		out = append(out, r)
	}
	sortRecords(out)
	return out, nil
}

// ListParticipantEvaluations implements EvaluationStore.
func (s *MemoryStore) ListParticipantEvaluations(_ context.Context, eventID, participantID string) ([]evaluation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	names := make(map[string]string, len(st.judges))
	for _, j := range st.judges {
		names[j.ID] = j.Name
	}
	out := make([]evaluation.Record, 0, len(st.judges))
	for _, r := range st.records {
		if r.ParticipantID == participantID {
			r.JudgeName = names[r.JudgeID]
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

func recordKey(k evaluation.Key) string {
	return k.ParticipantID + "\x00" + k.JudgeID
}

// sortRecords orders by participant then judge so map iteration never leaks out.
func sortRecords(rs []evaluation.Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].ParticipantID != rs[j].ParticipantID {
			return rs[i].ParticipantID < rs[j].ParticipantID
		}
		return rs[i].JudgeID < rs[j].JudgeID
	})
}

func cloneBoard(b ranking.Board) ranking.Board {
	b.Entries = append([]ranking.Entry(nil), b.Entries...)
	return b
}
