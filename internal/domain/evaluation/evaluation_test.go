package evaluation_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/okian/palco/internal/domain/evaluation"
	"github.com/okian/palco/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

func f(v float64) *float64 { return &v }

func TestScorer(t *testing.T) {
	Convey("Given a scorer in the default single mode", t, func() {
		s := evaluation.NewScorer()

		Convey("When a note is submitted", func() {
			got, err := s.Score(evaluation.Input{Note: f(87.5)})

			Convey("Then every sub-score and the total equal the note", func() {
				So(err, ShouldBeNil)
				So(s.Mode(), ShouldEqual, evaluation.ModeSingle)
				So(got, ShouldResemble, evaluation.Scores{Technical: 87.5, Artistic: 87.5, Presentation: 87.5, Total: 87.5})
			})
		})

		Convey("When the note is out of range", func() {
			for _, v := range []float64{-0.01, 100.01, math.NaN(), math.Inf(1)} {
				_, err := s.Score(evaluation.Input{Note: f(v)})
				So(errors.Is(err, evaluation.ErrInvalidScore), ShouldBeTrue)
			}
		})

		Convey("When the bounds are submitted", func() {
			_, err0 := s.Score(evaluation.Input{Note: f(0)})
			_, err100 := s.Score(evaluation.Input{Note: f(100)})

			Convey("Then both are accepted", func() {
				So(err0, ShouldBeNil)
				So(err100, ShouldBeNil)
			})
		})

		Convey("When nothing is submitted", func() {
			_, err := s.Score(evaluation.Input{})

			Convey("Then the score is invalid", func() {
				So(errors.Is(err, evaluation.ErrInvalidScore), ShouldBeTrue)
			})
		})
	})

	Convey("Given a scorer in average mode", t, func() {
		s := evaluation.NewScorer(evaluation.WithMode(evaluation.ModeAverage))

		Convey("When three sub-scores are submitted", func() {
			got, err := s.Score(evaluation.Input{Technical: f(80), Artistic: f(90), Presentation: f(75)})

			Convey("Then the total is their rounded mean", func() {
				So(err, ShouldBeNil)
				So(got.Total, ShouldEqual, 81.67)
				So(got.Artistic, ShouldEqual, 90)
			})
		})

		Convey("When one sub-score is out of range", func() {
			_, err := s.Score(evaluation.Input{Technical: f(80), Artistic: f(190), Presentation: f(75)})

			Convey("Then it names the offending field", func() {
				So(errors.Is(err, evaluation.ErrInvalidScore), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "artistic")
			})
		})

		Convey("When only a note is submitted", func() {
			got, err := s.Score(evaluation.Input{Note: f(70)})

			Convey("Then it is spread across the sub-scores", func() {
				So(err, ShouldBeNil)
				So(got.Total, ShouldEqual, 70)
			})
		})

		Convey("When a sub-score is missing", func() {
			_, err := s.Score(evaluation.Input{Technical: f(80), Artistic: f(90)})
			So(errors.Is(err, evaluation.ErrInvalidScore), ShouldBeTrue)
		})
	})

	Convey("Given an unknown mode option", t, func() {
		s := evaluation.NewScorer(evaluation.WithMode("weighted"))
		So(s.Mode(), ShouldEqual, evaluation.ModeSingle)
	})
}

func rec(p, j string, total float64, rev int64) evaluation.Record {
	return evaluation.Record{
		Key:      evaluation.Key{EventID: "ev-1", ParticipantID: p, JudgeID: j},
		Total:    total,
		Revision: rev,
	}
}

func TestSummarize(t *testing.T) {
	Convey("Given three judges and two accepted participants", t, func() {
		judges := []roster.Judge{{ID: "j1", Name: "Ana"}, {ID: "j2", Name: "Bia"}, {ID: "j3", Name: "Caio"}}
		participants := []roster.Participant{
			{ID: "p2", Name: "Duo", Seq: 2, Status: roster.ParticipantAccepted},
			{ID: "p1", Name: "Solo", Seq: 1, Status: roster.ParticipantAccepted},
			{ID: "p3", Name: "Late", Seq: 3, Status: roster.ParticipantPending},
		}

		Convey("When no evaluation exists", func() {
			snap := evaluation.Summarize("ev-1", participants, judges, nil)

			Convey("Then six evaluations are expected and none completed", func() {
				So(snap.TotalJudges, ShouldEqual, 3)
				So(snap.TotalParticipants, ShouldEqual, 2)
				So(snap.ExpectedEvaluations, ShouldEqual, 6)
				So(snap.CompletedEvaluations, ShouldEqual, 0)
				So(snap.ProgressPercentage, ShouldEqual, 0)
				So(snap.IsComplete, ShouldBeFalse)
				So(snap.Participants[0].AvgScore, ShouldEqual, 0)
			})

			Convey("And participants come out in registration order", func() {
				So(snap.Participants[0].ParticipantID, ShouldEqual, "p1")
				So(snap.Participants[1].ParticipantID, ShouldEqual, "p2")
			})
		})

		Convey("When four of six evaluations exist", func() {
			records := []evaluation.Record{
				rec("p1", "j2", 90, 1), rec("p1", "j1", 80, 2), rec("p2", "j3", 70, 1), rec("p2", "j1", 71, 1),
			}
			snap := evaluation.Summarize("ev-1", participants, judges, records)

			Convey("Then progress rounds to 67 percent", func() {
				So(snap.CompletedEvaluations, ShouldEqual, 4)
				So(snap.ProgressPercentage, ShouldEqual, 67)
				So(snap.IsComplete, ShouldBeFalse)
			})

			Convey("And each participant has per-judge flags in roster order", func() {
				p1 := snap.Participants[0]
				So(p1.AvgScore, ShouldEqual, 85)
				So(p1.Revision, ShouldEqual, 3)
				So(p1.Evaluations[0].JudgeID, ShouldEqual, "j1")
				So(p1.Evaluations[0].JudgeName, ShouldEqual, "Ana")
				So(p1.Judges, ShouldResemble, []evaluation.JudgeStatus{
					{JudgeID: "j1", JudgeName: "Ana", Evaluated: true},
					{JudgeID: "j2", JudgeName: "Bia", Evaluated: true},
					{JudgeID: "j3", JudgeName: "Caio", Evaluated: false},
				})
			})
		})

		Convey("When all six distinct pairs are evaluated", func() {
			var records []evaluation.Record
			for _, p := range []string{"p1", "p2"} {
				for _, j := range []string{"j1", "j2", "j3"} {
					records = append(records, rec(p, j, 50, 1))
				}
			}
			snap := evaluation.Summarize("ev-1", participants, judges, records)

			Convey("Then the event is complete", func() {
				So(snap.IsComplete, ShouldBeTrue)
				So(snap.ProgressPercentage, ShouldEqual, 100)
			})

			Convey("And a second call yields the same snapshot", func() {
				reversed := make([]evaluation.Record, len(records))
				for i := range records {
					reversed[len(records)-1-i] = records[i]
				}
				So(evaluation.Summarize("ev-1", participants, judges, reversed), ShouldResemble, snap)
			})
		})
	})

	Convey("Given an event without judges", t, func() {
		participants := []roster.Participant{{ID: "p1", Seq: 1, Status: roster.ParticipantAccepted}}
		snap := evaluation.Summarize("ev-1", participants, nil, nil)

		Convey("Then it is never complete", func() {
			So(snap.ExpectedEvaluations, ShouldEqual, 0)
			So(snap.ProgressPercentage, ShouldEqual, 0)
			So(snap.IsComplete, ShouldBeFalse)
		})
	})
}

func TestAverageScore(t *testing.T) {
	Convey("Given records for one participant", t, func() {
		Convey("Then the average is rounded to two decimals", func() {
			So(evaluation.AverageScore([]evaluation.Record{rec("p", "a", 80, 1), rec("p", "b", 90, 1)}), ShouldEqual, 85)
			So(evaluation.AverageScore([]evaluation.Record{rec("p", "a", 70, 1), rec("p", "b", 70, 1), rec("p", "c", 71, 1)}), ShouldEqual, 70.33)
			So(evaluation.AverageScore(nil), ShouldEqual, 0)
		})

		Convey("Then progress rounds half up", func() {
			for _, tc := range []struct{ c, e, want int }{{1, 8, 13}, {1, 3, 33}, {2, 3, 67}, {0, 0, 0}, {5, 5, 100}} {
				got, _ := evaluation.Progress(tc.c, tc.e)
				So(got, ShouldEqual, tc.want)
			}
		})
	})
}

func TestAvailableJudges(t *testing.T) {
	Convey("Given judges and one participant's records", t, func() {
		judges := []roster.Judge{{ID: "j1"}, {ID: "j2"}, {ID: "j3"}}
		records := []evaluation.Record{rec("p1", "j2", 60, 1)}

		Convey("Then judges who already scored are left out", func() {
			got := evaluation.AvailableJudges(judges, records)
			ids := make([]string, 0, len(got))
			for _, j := range got {
				ids = append(ids, j.ID)
			}
			So(fmt.Sprint(ids), ShouldEqual, "[j1 j3]")
		})
	})
}
