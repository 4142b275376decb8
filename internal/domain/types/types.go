// Package types contains the JSON shapes exchanged over the HTTP API.
package types

import (
	"time"

	"github.com/okian/palco/internal/domain/evaluation"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/model"
	"github.com/okian/palco/internal/domain/ranking"
	"github.com/okian/palco/internal/domain/roster"
)

// EventRequest creates or edits an event.
type EventRequest struct {
	Name                  string     `json:"name"`
	Description           string     `json:"description,omitempty"`
	Location              string     `json:"location,omitempty"`
	Category              string     `json:"category,omitempty"`
	Type                  string     `json:"type,omitempty"`
	StartDate             time.Time  `json:"start_date,omitempty"`
	EndDate               *time.Time `json:"end_date,omitempty"`
	RegistrationStartDate *time.Time `json:"registration_start_date,omitempty"`
	RegistrationEndDate   *time.Time `json:"registration_end_date,omitempty"`
	MaxParticipants       *int       `json:"max_participants,omitempty"`
	ApprovalMode          string     `json:"approval_mode,omitempty"`
}

// Details converts the request into domain details.
func (r EventRequest) Details() (event.Details, bool) {
	mode, ok := event.ParseApprovalMode(r.ApprovalMode)
	if !ok {
		return event.Details{}, false
	}
	return event.Details{
		Name:                  r.Name,
		Description:           r.Description,
		Location:              r.Location,
		Category:              r.Category,
		Type:                  r.Type,
		StartDate:             r.StartDate,
		EndDate:               r.EndDate,
		RegistrationStartDate: r.RegistrationStartDate,
		RegistrationEndDate:   r.RegistrationEndDate,
		MaxParticipants:       r.MaxParticipants,
		ApprovalMode:          mode,
	}, true
}

// Event is the public representation of an event record.
type Event struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	Description           string     `json:"description,omitempty"`
	Location              string     `json:"location,omitempty"`
	Category              string     `json:"category,omitempty"`
	Type                  string     `json:"type,omitempty"`
	Status                string     `json:"status"`
	StartDate             *time.Time `json:"start_date,omitempty"`
	EndDate               *time.Time `json:"end_date,omitempty"`
	RegistrationStartDate *time.Time `json:"registration_start_date,omitempty"`
	RegistrationEndDate   *time.Time `json:"registration_end_date,omitempty"`
	MaxParticipants       *int       `json:"max_participants"`
	CurrentParticipants   int        `json:"current_participants"`
	ApprovalMode          string     `json:"approval_mode"`
	CancelReason          string     `json:"cancel_reason,omitempty"`
	ResultsPublishedAt    *time.Time `json:"results_published_at,omitempty"`
	CopiedFrom            string     `json:"copied_from,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	Version               int64      `json:"version"`
}

// FromEvent renders a domain event.
func FromEvent(e event.Event) Event {
	out := Event{
		ID:                    e.ID,
		Name:                  e.Name,
		Description:           e.Description,
		Location:              e.Location,
		Category:              e.Category,
		Type:                  e.Type,
		Status:                string(e.Status),
		EndDate:               e.EndDate,
		RegistrationStartDate: e.RegistrationStartDate,
		RegistrationEndDate:   e.RegistrationEndDate,
		MaxParticipants:       e.MaxParticipants,
		CurrentParticipants:   e.CurrentParticipants,
		ApprovalMode:          string(e.ApprovalMode),
		CancelReason:          e.CancelReason,
		ResultsPublishedAt:    e.ResultsPublishedAt,
		CopiedFrom:            e.CopiedFrom,
		CreatedAt:             e.CreatedAt,
		UpdatedAt:             e.UpdatedAt,
		Version:               e.Version,
	}
	if !e.StartDate.IsZero() {
		start := e.StartDate
		out.StartDate = &start
	}
	return out
}

// TransitionRequest asks for a lifecycle transition.
type TransitionRequest struct {
	Action   string `json:"action"`
	Reason   string `json:"reason,omitempty"`
	Override bool   `json:"override,omitempty"`
}

// Window reports the derived registration and activity flags.
type Window struct {
	RegistrationOpen bool      `json:"registration_open"`
	Active           bool      `json:"active"`
	Status           string    `json:"status"`
	At               time.Time `json:"at"`
}

// NameRequest registers a participant or assigns a judge.
type NameRequest struct {
	Name string `json:"name"`
}

// JudgeRequest assigns a judge. A missing ID is generated.
type JudgeRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Participant is a registration link.
type Participant struct {
	ID           string     `json:"id"`
	EventID      string     `json:"event_id"`
	Name         string     `json:"name"`
	Seq          int        `json:"seq"`
	Status       string     `json:"status"`
	RegisteredAt time.Time  `json:"registered_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
}

// FromParticipant renders a roster participant.
func FromParticipant(p roster.Participant) Participant {
	return Participant{
		ID:           p.ID,
		EventID:      p.EventID,
		Name:         p.Name,
		Seq:          p.Seq,
		Status:       string(p.Status),
		RegisteredAt: p.RegisteredAt,
		ApprovedAt:   p.ApprovedAt,
	}
}

// Judge is a roster judge.
type Judge struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	Name       string    `json:"name"`
	AssignedAt time.Time `json:"assigned_at"`
}

// FromJudge renders a roster judge.
func FromJudge(j roster.Judge) Judge {
	return Judge{ID: j.ID, EventID: j.EventID, Name: j.Name, AssignedAt: j.AssignedAt}
}

// FromJudges renders a judge list, never nil.
func FromJudges(js []roster.Judge) []Judge {
	out := make([]Judge, 0, len(js))
	for _, j := range js {
		out = append(out, FromJudge(j))
	}
	return out
}

// EvaluationRequest is a judge submission. Note is used in single mode, the
// three sub-scores in average mode.
type EvaluationRequest struct {
	ParticipantID string   `json:"participant_id"`
	JudgeID       string   `json:"judge_id"`
	Note          *float64 `json:"note,omitempty"`
	Technical     *float64 `json:"technical,omitempty"`
	Artistic      *float64 `json:"artistic,omitempty"`
	Presentation  *float64 `json:"presentation,omitempty"`
	Feedback      string   `json:"feedback,omitempty"`
}

// Input extracts the score fields.
func (r EvaluationRequest) Input() evaluation.Input {
	return evaluation.Input{Note: r.Note, Technical: r.Technical, Artistic: r.Artistic, Presentation: r.Presentation}
}

// Submission binds the request to an event.
func (r EvaluationRequest) Submission(eventID string) evaluation.Submission {
	return evaluation.Submission{
		Key:      evaluation.Key{EventID: eventID, ParticipantID: r.ParticipantID, JudgeID: r.JudgeID},
		Scores:   r.Input(),
		Feedback: r.Feedback,
	}
}

// Evaluation is a stored judge record.
type Evaluation struct {
	EventID       string    `json:"event_id"`
	ParticipantID string    `json:"participant_id"`
	JudgeID       string    `json:"judge_id"`
	JudgeName     string    `json:"judge_name,omitempty"`
	Technical     float64   `json:"technical"`
	Artistic      float64   `json:"artistic"`
	Presentation  float64   `json:"presentation"`
	Total         float64   `json:"total"`
	Feedback      string    `json:"feedback,omitempty"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
	Revision      int64     `json:"revision"`
}

// FromRecord renders an evaluation record.
func FromRecord(r evaluation.Record) Evaluation {
	return Evaluation{
		EventID:       r.EventID,
		ParticipantID: r.ParticipantID,
		JudgeID:       r.JudgeID,
		JudgeName:     r.JudgeName,
		Technical:     r.Technical,
		Artistic:      r.Artistic,
		Presentation:  r.Presentation,
		Total:         r.Total,
		Feedback:      r.Feedback,
		EvaluatedAt:   r.EvaluatedAt,
		Revision:      r.Revision,
	}
}

// FromRecords renders a record list, never nil.
func FromRecords(rs []evaluation.Record) []Evaluation {
	out := make([]Evaluation, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromRecord(r))
	}
	return out
}

// JudgeProgress is one judge's completion flag for a participant.
type JudgeProgress struct {
	JudgeID   string `json:"judge_id"`
	JudgeName string `json:"judge_name"`
	Evaluated bool   `json:"evaluated"`
}

// ParticipantProgress summarizes one participant.
type ParticipantProgress struct {
	ParticipantID string          `json:"participant_id"`
	Name          string          `json:"name"`
	Seq           int             `json:"seq"`
	AvgScore      float64         `json:"avg_score"`
	Evaluations   int             `json:"evaluations"`
	Judges        []JudgeProgress `json:"judges"`
}

// Progress is the event-wide evaluation snapshot.
type Progress struct {
	EventID              string                `json:"event_id"`
	TotalJudges          int                   `json:"total_judges"`
	TotalParticipants    int                   `json:"total_participants"`
	CompletedEvaluations int                   `json:"completed_evaluations"`
	ExpectedEvaluations  int                   `json:"expected_evaluations"`
	ProgressPercentage   int                   `json:"progress_percentage"`
	IsComplete           bool                  `json:"is_complete"`
	Participants         []ParticipantProgress `json:"participants"`
}

// FromSnapshot renders an aggregation snapshot.
func FromSnapshot(s evaluation.Snapshot) Progress {
	out := Progress{
		EventID:              s.EventID,
		TotalJudges:          s.TotalJudges,
		TotalParticipants:    s.TotalParticipants,
		CompletedEvaluations: s.CompletedEvaluations,
		ExpectedEvaluations:  s.ExpectedEvaluations,
		ProgressPercentage:   s.ProgressPercentage,
		IsComplete:           s.IsComplete,
		Participants:         make([]ParticipantProgress, 0, len(s.Participants)),
	}
	for _, p := range s.Participants {
		judges := make([]JudgeProgress, 0, len(p.Judges))
		for _, j := range p.Judges {
			judges = append(judges, JudgeProgress{JudgeID: j.JudgeID, JudgeName: j.JudgeName, Evaluated: j.Evaluated})
		}
		out.Participants = append(out.Participants, ParticipantProgress{
			ParticipantID: p.ParticipantID,
			Name:          p.Name,
			Seq:           p.Seq,
			AvgScore:      p.AvgScore,
			Evaluations:   len(p.Evaluations),
			Judges:        judges,
		})
	}
	return out
}

// Entry is one ranked participant.
type Entry struct {
	Rank          int     `json:"rank"`
	ParticipantID string  `json:"participant_id"`
	Name          string  `json:"name"`
	Seq           int     `json:"seq"`
	AvgScore      float64 `json:"avg_score"`
	Evaluations   int     `json:"evaluations"`
	Published     bool    `json:"published"`
}

// Ranking is a rendered board.
type Ranking struct {
	EventID    string    `json:"event_id"`
	Policy     string    `json:"policy"`
	Published  bool      `json:"published"`
	ComputedAt time.Time `json:"computed_at"`
	InputsHash string    `json:"inputs_hash"`
	Entries    []Entry   `json:"entries"`
}

// FromBoard renders a ranking board.
func FromBoard(b ranking.Board, published bool) Ranking {
	out := Ranking{
		EventID:    b.EventID,
		Policy:     string(b.Policy),
		Published:  published,
		ComputedAt: b.ComputedAt,
		InputsHash: b.InputsHash,
		Entries:    make([]Entry, 0, len(b.Entries)),
	}
	for _, e := range b.Entries {
		out.Entries = append(out.Entries, Entry{
			Rank:          e.Rank,
			ParticipantID: e.ParticipantID,
			Name:          e.Name,
			Seq:           e.Seq,
			AvgScore:      e.AvgScore,
			Evaluations:   e.Evaluations,
			Published:     e.Published,
		})
	}
	return out
}

// PublishRequest asks to publish results.
type PublishRequest struct {
	Force bool `json:"force,omitempty"`
}

// LiveEntry is a live board row.
type LiveEntry struct {
	Rank          int     `json:"rank"`
	ParticipantID string  `json:"participant_id"`
	Name          string  `json:"name"`
	AvgScore      float64 `json:"avg_score"`
	Evaluations   int     `json:"evaluations"`
}

// FromLiveScores renders live board rows with positional ranks starting at 1.
func FromLiveScores(scores []model.LiveScore) []LiveEntry {
	out := make([]LiveEntry, 0, len(scores))
	for i, s := range scores {
		out = append(out, LiveEntry{
			Rank:          i + 1,
			ParticipantID: s.ParticipantID,
			Name:          s.Name,
			AvgScore:      s.AvgScore,
			Evaluations:   s.Evaluations,
		})
	}
	return out
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
