// Package ranking orders participants by aggregated score and describes the
// published results board.
package ranking

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/palco/internal/domain/evaluation"
)

// Policy decides how equal average scores are numbered.
type Policy string

const (
	// PolicyShared gives equal scores the same rank (1, 1, 3).
	PolicyShared Policy = "shared"
	// PolicyRegistration breaks ties by registration order (1, 2, 3).
	PolicyRegistration Policy = "registration"
)

// ParsePolicy canonicalizes a tie-break policy label.
func ParsePolicy(value string) (Policy, bool) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case PolicyShared:
		return PolicyShared, true
	case PolicyRegistration:
		return PolicyRegistration, true
	default:
		return "", false
	}
}

// Entry is one ranked participant.
type Entry struct {
	Rank          int
	ParticipantID string
	Name          string
	Seq           int
	AvgScore      float64
	Evaluations   int
	// Published mirrors the event's results-published marker.
	Published bool
}

// Board is a computed ranking together with the inputs it was derived from.
type Board struct {
	EventID    string
	Policy     Policy
	Entries    []Entry
	ComputedAt time.Time
	// InputsHash fingerprints the evaluation identities and revisions behind Entries.
	InputsHash string
}

// Less orders two participants: higher average first, then earlier
// registration, then participant id.
func Less(aScore float64, aSeq int, aID string, bScore float64, bSeq int, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	if aSeq != bSeq {
		return aSeq < bSeq
	}
	return aID < bID
}

// Rank orders the snapshot's participants and numbers them under policy.
func Rank(snap evaluation.Snapshot, policy Policy, published bool, now time.Time) Board {
	entries := make([]Entry, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		entries = append(entries, Entry{
			ParticipantID: p.ParticipantID,
			Name:          p.Name,
			Seq:           p.Seq,
			AvgScore:      p.AvgScore,
			Evaluations:   len(p.Evaluations),
			Published:     published,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		return Less(a.AvgScore, a.Seq, a.ParticipantID, b.AvgScore, b.Seq, b.ParticipantID)
	})
	AssignRanks(entries, policy)

	return Board{
		EventID:    snap.EventID,
		Policy:     policy,
		Entries:    entries,
		ComputedAt: now,
		InputsHash: InputsHash(snap),
	}
}

// AssignRanks numbers already-sorted entries in place.
func AssignRanks(entries []Entry, policy Policy) {
	for i := range entries {
		switch {
		case i == 0:
			entries[i].Rank = 1
		case policy == PolicyShared && entries[i].AvgScore == entries[i-1].AvgScore:
			entries[i].Rank = entries[i-1].Rank
		default:
			entries[i].Rank = i + 1
		}
	}
}

// InputsHash fingerprints the records a snapshot was built from. Two
// snapshots over the same record revisions hash equally.
func InputsHash(snap evaluation.Snapshot) string {
	keys := make([]string, 0, snap.CompletedEvaluations)
	for _, p := range snap.Participants {
		for _, r := range p.Evaluations {
			keys = append(keys, r.ParticipantID+"|"+r.JudgeID+"|"+strconv.FormatInt(r.Revision, 10))
		}
	}
	sort.Strings(keys)
	h := sha256.New()
	h.Write([]byte(snap.EventID))
	for _, k := range keys {
		h.Write([]byte{'\n'})
		h.Write([]byte(k))
	}
	return hex.EncodeToString(h.Sum(nil))
}
