package simulation

import (
	"fmt"
	"math"

	"github.com/okian/palco/internal/domain/types"
)

// scoreTolerance absorbs the two-decimal rounding of averages.
const scoreTolerance = 0.01

// expectedAverages computes each participant's mean of the final notes.
func expectedAverages(plan []submission) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range plan {
		sums[s.participantID] += s.note
		counts[s.participantID]++
	}
	out := make(map[string]float64, len(sums))
	for pid, sum := range sums {
		out[pid] = sum / float64(counts[pid])
	}
	return out
}

// verifyProgress checks that every judge scored every participant.
func verifyProgress(p types.Progress, participants, judges int) error {
	switch {
	case p.TotalParticipants != participants:
		return fmt.Errorf("%w: progress counts %d participants, registered %d", ErrVerification, p.TotalParticipants, participants)
	case p.TotalJudges != judges:
		return fmt.Errorf("%w: progress counts %d judges, assigned %d", ErrVerification, p.TotalJudges, judges)
	case p.ExpectedEvaluations != participants*judges:
		return fmt.Errorf("%w: expected %d evaluations, progress says %d", ErrVerification, participants*judges, p.ExpectedEvaluations)
	case p.CompletedEvaluations != p.ExpectedEvaluations:
		return fmt.Errorf("%w: %d of %d evaluations completed", ErrVerification, p.CompletedEvaluations, p.ExpectedEvaluations)
	case !p.IsComplete || p.ProgressPercentage != 100:
		return fmt.Errorf("%w: progress %d%% not complete", ErrVerification, p.ProgressPercentage)
	}
	return nil
}

// verifyRanking checks averages against the notes that were sent, the
// ordering, and rank numbering for the board's tie policy.
func verifyRanking(board types.Ranking, expected map[string]float64) error {
	if len(board.Entries) != len(expected) {
		return fmt.Errorf("%w: ranking has %d entries, expected %d", ErrVerification, len(board.Entries), len(expected))
	}
	for i, e := range board.Entries {
		want, ok := expected[e.ParticipantID]
		if !ok {
			return fmt.Errorf("%w: unknown participant %s in ranking", ErrVerification, e.ParticipantID)
		}
		if math.Abs(e.AvgScore-want) > scoreTolerance {
			return fmt.Errorf("%w: participant %s averages %.2f, expected %.2f", ErrVerification, e.ParticipantID, e.AvgScore, want)
		}
		if i == 0 {
			if e.Rank != 1 {
				return fmt.Errorf("%w: first entry has rank %d", ErrVerification, e.Rank)
			}
			continue
		}
		prev := board.Entries[i-1]
		if e.AvgScore > prev.AvgScore {
			return fmt.Errorf("%w: entry %d scores above entry %d", ErrVerification, i, i-1)
		}
		if e.AvgScore == prev.AvgScore && e.Seq < prev.Seq {
			return fmt.Errorf("%w: tied entry %d registered before entry %d", ErrVerification, i, i-1)
		}
		wantRank := i + 1
		if board.Policy == "shared" && e.AvgScore == prev.AvgScore {
			wantRank = prev.Rank
		}
		if e.Rank != wantRank {
			return fmt.Errorf("%w: entry %d has rank %d, expected %d", ErrVerification, i, e.Rank, wantRank)
		}
	}
	return nil
}

// verifyPublished checks that publication froze the operator's board and
// that the public view serves it.
func verifyPublished(operator, published, public types.Ranking) error {
	switch {
	case !published.Published || !public.Published:
		return fmt.Errorf("%w: results not marked published", ErrVerification)
	case published.InputsHash != operator.InputsHash:
		return fmt.Errorf("%w: published hash %s differs from the verified board %s", ErrVerification, published.InputsHash, operator.InputsHash)
	case public.InputsHash != published.InputsHash:
		return fmt.Errorf("%w: public hash %s differs from published %s", ErrVerification, public.InputsHash, published.InputsHash)
	}
	return nil
}

// verifyLive checks that the live board lists the ranking's leaders in order.
func verifyLive(rows []types.LiveEntry, board types.Ranking) error {
	want := min(len(board.Entries), liveLimit)
	if len(rows) != want {
		return fmt.Errorf("%w: live board has %d rows, expected %d", ErrVerification, len(rows), want)
	}
	for i, row := range rows {
		e := board.Entries[i]
		if row.ParticipantID != e.ParticipantID {
			return fmt.Errorf("%w: live row %d is %s, ranking has %s", ErrVerification, i, row.ParticipantID, e.ParticipantID)
		}
		if math.Abs(row.AvgScore-e.AvgScore) > scoreTolerance {
			return fmt.Errorf("%w: live row %d averages %.2f, ranking has %.2f", ErrVerification, i, row.AvgScore, e.AvgScore)
		}
	}
	return nil
}
