// Package model contains messages passed between the service and the live board pipeline.
package model

import (
	"time"

	"github.com/okian/palco/internal/domain/ranking"
)

// ScoreChange announces that a participant's evaluations changed.
// Workers recompute the participant from the store; the change carries no scores.
type ScoreChange struct {
	EventID       string
	ParticipantID string
	JudgeID       string
	At            time.Time
}

// Key identifies the live board row a change affects.
func (c ScoreChange) Key() string { return c.EventID + "/" + c.ParticipantID }

// LiveScore is a participant's current standing on the live board.
type LiveScore struct {
	EventID       string
	ParticipantID string
	Name          string
	Seq           int
	AvgScore      float64
	Evaluations   int
	// Revision is the sum of the participant's record revisions at compute time.
	Revision int64
}

// Before reports whether s ranks ahead of o.
func (s LiveScore) Before(o LiveScore) bool {
	return ranking.Less(s.AvgScore, s.Seq, s.ParticipantID, o.AvgScore, o.Seq, o.ParticipantID)
}
