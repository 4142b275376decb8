// Package simulation drives a full festival round over the HTTP API: an
// event is created and published, participants register, judges score
// everyone concurrently, and the resulting progress, ranking and live board
// are checked against the scores that were sent.
package simulation

import "time"

// Config holds configuration for a simulated round.
type Config struct {
	BaseURL      string        // Base URL of the service
	Participants int           // Number of participants to register
	Judges       int           // Number of judges scoring every participant
	Workers      int           // Concurrent HTTP submitters
	Timeout      time.Duration // HTTP request timeout
	Secret       string        // Token signing secret; empty when auth is disabled
	LiveWait     time.Duration // How long to wait for the live board to converge
	Verbose      bool          // Enable verbose logging
}

// Stats holds figures collected during a round.
type Stats struct {
	EventID              string
	ParticipantsCreated  int
	JudgesAssigned       int
	EvaluationsSubmitted int
	EvaluationsReplaced  int
	EvaluationsFailed    int
	RankingEntries       int
	LiveRows             int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
