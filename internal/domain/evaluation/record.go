// Package evaluation holds judge score records and the pure aggregation over them.
package evaluation

import "time"

// Key is the composite identity of a record.
type Key struct {
	EventID       string
	ParticipantID string
	JudgeID       string
}

// Record is one judge's evaluation of one participant. A new submission for
// the same Key replaces the previous record and bumps Revision.
type Record struct {
	Key
	// JudgeName is filled in by readers that join the roster.
	JudgeName    string
	Technical    float64
	Artistic     float64
	Presentation float64
	Total        float64
	Feedback     string
	EvaluatedAt  time.Time
	Revision     int64
}

// NewRecord builds an unsaved record for key from validated scores.
func NewRecord(key Key, s Scores, feedback string, at time.Time) Record {
	return Record{
		Key:          key,
		Technical:    s.Technical,
		Artistic:     s.Artistic,
		Presentation: s.Presentation,
		Total:        s.Total,
		Feedback:     feedback,
		EvaluatedAt:  at,
	}
}

// Submission is one judge's scores for one participant, before validation.
type Submission struct {
	Key
	Scores   Input
	Feedback string
}
