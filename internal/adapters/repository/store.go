// Package repository defines the persistence contracts for events, rosters,
// evaluations and published boards, plus an in-memory implementation.
package repository

import (
	"context"
	"time"

	"github.com/okian/palco/internal/domain/evaluation"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/ranking"
	"github.com/okian/palco/internal/domain/roster"
	"github.com/okian/palco/pkg/metrics"
)

// EventMutation is one atomic write to an event record.
type EventMutation struct {
	// Event is the desired state. Event.Version must equal the stored version.
	Event event.Event
	// Publish, when set, replaces the frozen public board.
	Publish *ranking.Board
	// Unpublish drops the frozen public board.
	Unpublish bool
}

// EventStore persists event records with compare-and-set writes.
type EventStore interface {
	// CreateEvent stores a new event at Version 1.
	CreateEvent(ctx context.Context, ev event.Event) (event.Event, error)
	// GetEvent returns ErrNotFound for unknown ids.
	GetEvent(ctx context.Context, id string) (event.Event, error)
	// UpdateEvent applies m only if the stored version still equals
	// m.Event.Version, returning the stored event with its bumped version.
	// A stale version yields ErrConflict and leaves the record untouched.
	UpdateEvent(ctx context.Context, m EventMutation) (event.Event, error)
	// GetPublishedBoard returns the frozen board or ErrNotFound.
	GetPublishedBoard(ctx context.Context, eventID string) (ranking.Board, error)
}

// RosterStore persists participants and judges.
type RosterStore interface {
	// RegisterParticipant stores p with the next registration Seq. Accepted
	// participants also bump the event's CurrentParticipants, failing with
	// event.ErrCapacityExceeded when the event is full.
	RegisterParticipant(ctx context.Context, p roster.Participant) (roster.Participant, error)
	// ApproveParticipant accepts a pending participant and counts it.
	ApproveParticipant(ctx context.Context, eventID, participantID string, at time.Time) (roster.Participant, error)
	GetParticipant(ctx context.Context, eventID, participantID string) (roster.Participant, error)
	// ListParticipants returns participants in registration order.
	ListParticipants(ctx context.Context, eventID string) ([]roster.Participant, error)
	AddJudge(ctx context.Context, j roster.Judge) (roster.Judge, error)
	GetJudge(ctx context.Context, eventID, judgeID string) (roster.Judge, error)
	// ListJudges returns judges in assignment order.
	ListJudges(ctx context.Context, eventID string) ([]roster.Judge, error)
}

// EvaluationStore persists judge records, one per (event, participant, judge).
type EvaluationStore interface {
	// UpsertEvaluation inserts r or replaces the record with the same key,
	// returning the stored record and whether it replaced an existing one.
	UpsertEvaluation(ctx context.Context, r evaluation.Record) (evaluation.Record, bool, error)
	// ListEvaluations returns every record of the event.
	ListEvaluations(ctx context.Context, eventID string) ([]evaluation.Record, error)
	// ListParticipantEvaluations returns the participant's records annotated with judge names.
	ListParticipantEvaluations(ctx context.Context, eventID, participantID string) ([]evaluation.Record, error)
}

// Store is the full persistence collaborator.
type Store interface {
	EventStore
	RosterStore
	EvaluationStore
	Close() error
}

// ObserveLatency records the duration of a store operation.
func ObserveLatency(operation string, start time.Time) {
	metrics.RecordStoreLatency(operation, float64(time.Since(start).Microseconds())/1000)
}
