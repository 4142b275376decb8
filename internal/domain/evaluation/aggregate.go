package evaluation

import (
	"math"
	"sort"

	"github.com/okian/palco/internal/domain/roster"
)

// JudgeStatus marks whether one judge has evaluated a participant.
type JudgeStatus struct {
	JudgeID   string
	JudgeName string
	Evaluated bool
}

// ParticipantSummary aggregates the records of one participant.
type ParticipantSummary struct {
	ParticipantID string
	Name          string
	Seq           int
	Evaluations   []Record
	Judges        []JudgeStatus
	AvgScore      float64
	// Revision is the sum of the participant's record revisions. It grows
	// with every submission and serves as a freshness watermark.
	Revision int64
}

// Snapshot is the derived completion and score state of an event.
type Snapshot struct {
	EventID              string
	TotalJudges          int
	TotalParticipants    int
	CompletedEvaluations int
	ExpectedEvaluations  int
	ProgressPercentage   int
	IsComplete           bool
	Participants         []ParticipantSummary
}

// AverageScore returns round2(mean of totals), or 0 without records.
func AverageScore(records []Record) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += r.Total
	}
	return Round2(sum / float64(len(records)))
}

// Progress computes completion figures for completed of expected evaluations.
func Progress(completed, expected int) (percentage int, complete bool) {
	if expected == 0 {
		return 0, false
	}
	percentage = int(math.Round(100 * float64(completed) / float64(expected)))
	return percentage, completed == expected
}

// Summarize derives the event snapshot from accepted participants, assigned
// judges and the stored records. Pending participants are ignored. The result
// depends only on its inputs; participants come out in registration order and
// each participant's evaluations in judge order.
func Summarize(eventID string, participants []roster.Participant, judges []roster.Judge, records []Record) Snapshot {
	accepted := make([]roster.Participant, 0, len(participants))
	for _, p := range participants {
		if p.Accepted() {
			accepted = append(accepted, p)
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].Seq != accepted[j].Seq {
			return accepted[i].Seq < accepted[j].Seq
		}
		return accepted[i].ID < accepted[j].ID
	})

	judgeNames := make(map[string]string, len(judges))
	judgeOrder := make(map[string]int, len(judges))
	for i, j := range judges {
		judgeNames[j.ID] = j.Name
		judgeOrder[j.ID] = i
	}

	byParticipant := make(map[string][]Record, len(accepted))
	for _, r := range records {
		if r.JudgeName == "" {
			r.JudgeName = judgeNames[r.JudgeID]
		}
		byParticipant[r.ParticipantID] = append(byParticipant[r.ParticipantID], r)
	}

	snap := Snapshot{
		EventID:              eventID,
		TotalJudges:          len(judges),
		TotalParticipants:    len(accepted),
		CompletedEvaluations: len(records),
		ExpectedEvaluations:  len(judges) * len(accepted),
		Participants:         make([]ParticipantSummary, 0, len(accepted)),
	}
	snap.ProgressPercentage, snap.IsComplete = Progress(snap.CompletedEvaluations, snap.ExpectedEvaluations)

	for _, p := range accepted {
		recs := byParticipant[p.ID]
		sort.SliceStable(recs, func(i, j int) bool {
			oi, iok := judgeOrder[recs[i].JudgeID]
			oj, jok := judgeOrder[recs[j].JudgeID]
			if iok != jok {
				return iok
			}
			if oi != oj {
				return oi < oj
			}
			return recs[i].JudgeID < recs[j].JudgeID
		})

		evaluated := make(map[string]bool, len(recs))
		var rev int64
		for _, r := range recs {
			evaluated[r.JudgeID] = true
			rev += r.Revision
		}
		statuses := make([]JudgeStatus, 0, len(judges))
		for _, j := range judges {
			statuses = append(statuses, JudgeStatus{JudgeID: j.ID, JudgeName: j.Name, Evaluated: evaluated[j.ID]})
		}

		snap.Participants = append(snap.Participants, ParticipantSummary{
			ParticipantID: p.ID,
			Name:          p.Name,
			Seq:           p.Seq,
			Evaluations:   recs,
			Judges:        statuses,
			AvgScore:      AverageScore(recs),
			Revision:      rev,
		})
	}
	return snap
}

// AvailableJudges returns the judges without a record among records, in roster order.
func AvailableJudges(judges []roster.Judge, records []Record) []roster.Judge {
	done := make(map[string]bool, len(records))
	for _, r := range records {
		done[r.JudgeID] = true
	}
	out := make([]roster.Judge, 0, len(judges))
	for _, j := range judges {
		if !done[j.ID] {
			out = append(out, j)
		}
	}
	return out
}
