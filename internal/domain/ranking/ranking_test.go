package ranking_test

import (
	"testing"
	"time"

	"github.com/okian/palco/internal/domain/evaluation"
	"github.com/okian/palco/internal/domain/ranking"
	"github.com/okian/palco/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

func rec(p, j string, total float64, rev int64) evaluation.Record {
	return evaluation.Record{
		Key:      evaluation.Key{EventID: "ev-1", ParticipantID: p, JudgeID: j},
		Total:    total,
		Revision: rev,
	}
}

func participants() []roster.Participant {
	return []roster.Participant{
		{ID: "pa", Name: "A", Seq: 1, Status: roster.ParticipantAccepted},
		{ID: "pb", Name: "B", Seq: 2, Status: roster.ParticipantAccepted},
		{ID: "pc", Name: "C", Seq: 3, Status: roster.ParticipantAccepted},
	}
}

var judges = []roster.Judge{{ID: "j1"}, {ID: "j2"}}

func TestRank(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given A scored [80, 90], B scored [85] and C scored [60]", t, func() {
		records := []evaluation.Record{rec("pa", "j1", 80, 1), rec("pa", "j2", 90, 1), rec("pb", "j1", 85, 1), rec("pc", "j1", 60, 1)}
		snap := evaluation.Summarize("ev-1", participants(), judges, records)

		Convey("When ranked with the shared policy", func() {
			board := ranking.Rank(snap, ranking.PolicyShared, false, now)

			Convey("Then A and B tie for rank 1 and C is third", func() {
				So(board.Entries, ShouldHaveLength, 3)
				So(board.Entries[0].ParticipantID, ShouldEqual, "pa")
				So(board.Entries[0].AvgScore, ShouldEqual, 85.0)
				So(board.Entries[0].Rank, ShouldEqual, 1)
				So(board.Entries[1].ParticipantID, ShouldEqual, "pb")
				So(board.Entries[1].AvgScore, ShouldEqual, 85.0)
				So(board.Entries[1].Rank, ShouldEqual, 1)
				So(board.Entries[2].Rank, ShouldEqual, 3)
				So(board.Entries[0].Evaluations, ShouldEqual, 2)
				So(board.Entries[0].Published, ShouldBeFalse)
			})
		})

		Convey("When ranked with the registration policy", func() {
			board := ranking.Rank(snap, ranking.PolicyRegistration, true, now)

			Convey("Then the earlier registrant wins the tie", func() {
				So(board.Entries[0].ParticipantID, ShouldEqual, "pa")
				So(board.Entries[0].Rank, ShouldEqual, 1)
				So(board.Entries[1].Rank, ShouldEqual, 2)
				So(board.Entries[2].Rank, ShouldEqual, 3)
				So(board.Entries[2].Published, ShouldBeTrue)
				So(board.Policy, ShouldEqual, ranking.PolicyRegistration)
			})
		})

		Convey("When the same records are ranked twice", func() {
			b1 := ranking.Rank(snap, ranking.PolicyShared, false, now)
			b2 := ranking.Rank(evaluation.Summarize("ev-1", participants(), judges, records), ranking.PolicyShared, false, now)

			Convey("Then boards and hashes match", func() {
				So(b2, ShouldResemble, b1)
				So(b1.InputsHash, ShouldHaveLength, 64)
			})
		})

		Convey("When one record is replaced", func() {
			before := ranking.InputsHash(snap)
			records[3] = rec("pc", "j1", 99, 2)
			after := ranking.InputsHash(evaluation.Summarize("ev-1", participants(), judges, records))

			Convey("Then the inputs hash changes", func() {
				So(after, ShouldNotEqual, before)
			})
		})
	})

	Convey("Given participants without evaluations", t, func() {
		snap := evaluation.Summarize("ev-1", participants(), judges, nil)
		board := ranking.Rank(snap, ranking.PolicyShared, false, now)

		Convey("Then all share rank 1 at score 0 in registration order", func() {
			for i, e := range board.Entries {
				So(e.Rank, ShouldEqual, 1)
				So(e.Seq, ShouldEqual, i+1)
			}
		})
	})

	Convey("Given policy labels", t, func() {
		p, ok := ranking.ParsePolicy(" Shared ")
		So(ok, ShouldBeTrue)
		So(p, ShouldEqual, ranking.PolicyShared)
		_, ok = ranking.ParsePolicy("random")
		So(ok, ShouldBeFalse)
	})
}
