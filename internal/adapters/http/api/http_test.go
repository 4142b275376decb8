package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/palco/internal/adapters/http/api"
	service "github.com/okian/palco/internal/app"
	"github.com/okian/palco/internal/domain/types"
	"github.com/okian/palco/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const secret = "festival-secret"

var t0 = time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)

func init() {
	_ = logger.Init(logger.WithWriter(io.Discard))
}

type harness struct {
	svc *service.Service
	srv *httptest.Server
}

func newHarness(opts ...api.Option) *harness {
	n := 0
	svc := service.New(
		service.WithClock(func() time.Time { return t0 }),
		service.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
		service.WithWorkerCount(1),
	)
	mux := http.NewServeMux()
	api.NewServer(svc, opts...).Register(context.Background(), mux)
	return &harness{svc: svc, srv: httptest.NewServer(mux)}
}

func (h *harness) close() {
	h.srv.Close()
	_ = h.svc.Stop(context.Background())
}

// do sends body as JSON and decodes the response into out when given.
func (h *harness) do(method, path, token string, body any, out any, headers ...string) int {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req, _ := http.NewRequest(method, h.srv.URL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func festivalRequest() types.EventRequest {
	return types.EventRequest{
		Name:      "Festival de Verão",
		Location:  "Anfiteatro",
		Category:  "dance",
		Type:      "competition",
		StartDate: t0.Add(48 * time.Hour),
	}
}

func note(v float64) *float64 { return &v }

func TestAPI_Lifecycle(t *testing.T) {
	Convey("Given an API without an auth secret", t, func() {
		h := newHarness()
		defer h.close()

		var ev types.Event
		So(h.do(http.MethodPost, "/events", "", festivalRequest(), &ev), ShouldEqual, http.StatusCreated)
		So(ev.Status, ShouldEqual, "draft")

		Convey("When the event is edited and published with an idempotency key", func() {
			edit := festivalRequest()
			edit.Description = "Mostra anual"
			var edited types.Event
			So(h.do(http.MethodPut, "/events/"+ev.ID, "", edit, &edited), ShouldEqual, http.StatusOK)
			So(edited.Description, ShouldEqual, "Mostra anual")

			var first, replay types.Event
			body := types.TransitionRequest{Action: "publish"}
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/transitions", "", body, &first, api.IdempotencyHeader, "k1"), ShouldEqual, http.StatusOK)
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/transitions", "", body, &replay, api.IdempotencyHeader, "k1"), ShouldEqual, http.StatusOK)

			Convey("Then the replay returns the recorded event", func() {
				So(first.Status, ShouldEqual, "published")
				So(replay.Version, ShouldEqual, first.Version)

				var window types.Window
				So(h.do(http.MethodGet, "/events/"+ev.ID+"/window", "", nil, &window), ShouldEqual, http.StatusOK)
				So(window.RegistrationOpen, ShouldBeTrue)
				So(window.Active, ShouldBeFalse)
			})

			Convey("Then editing is refused and publishing again is invalid", func() {
				var e types.ErrorResponse
				So(h.do(http.MethodPut, "/events/"+ev.ID, "", edit, &e), ShouldEqual, http.StatusConflict)
				So(e.Code, ShouldEqual, "not_editable")
				So(h.do(http.MethodPost, "/events/"+ev.ID+"/transitions", "", body, &e), ShouldEqual, http.StatusConflict)
				So(e.Code, ShouldEqual, "invalid_transition")
			})
		})

		Convey("When a full evaluation round runs", func() {
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/transitions", "", types.TransitionRequest{Action: "publish"}, nil), ShouldEqual, http.StatusOK)

			var ana, bruno types.Participant
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/participants", "", types.NameRequest{Name: "Ana"}, &ana), ShouldEqual, http.StatusCreated)
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/participants", "", types.NameRequest{Name: "Bruno"}, &bruno), ShouldEqual, http.StatusCreated)
			var judge types.Judge
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/judges", "", types.JudgeRequest{ID: "j-helena", Name: "Helena"}, &judge), ShouldEqual, http.StatusCreated)
			So(judge.ID, ShouldEqual, "j-helena")

			submit := func(pid string, v float64) int {
				return h.do(http.MethodPost, "/events/"+ev.ID+"/evaluations", "", types.EvaluationRequest{
					ParticipantID: pid, JudgeID: judge.ID, Note: note(v),
				}, nil)
			}
			So(submit(ana.ID, 70), ShouldEqual, http.StatusCreated)
			So(submit(ana.ID, 88), ShouldEqual, http.StatusOK)

			Convey("Then an out-of-range note is unprocessable", func() {
				var e types.ErrorResponse
				code := h.do(http.MethodPost, "/events/"+ev.ID+"/evaluations", "", types.EvaluationRequest{
					ParticipantID: bruno.ID, JudgeID: judge.ID, Note: note(101),
				}, &e)
				So(code, ShouldEqual, http.StatusUnprocessableEntity)
				So(e.Code, ShouldEqual, "invalid_score")
			})

			Convey("Then progress and available judges reflect the single record", func() {
				var progress types.Progress
				So(h.do(http.MethodGet, "/events/"+ev.ID+"/progress", "", nil, &progress), ShouldEqual, http.StatusOK)
				So(progress.CompletedEvaluations, ShouldEqual, 1)
				So(progress.ExpectedEvaluations, ShouldEqual, 2)
				So(progress.ProgressPercentage, ShouldEqual, 50)

				var available []types.Judge
				So(h.do(http.MethodGet, "/events/"+ev.ID+"/participants/"+bruno.ID+"/available-judges", "", nil, &available), ShouldEqual, http.StatusOK)
				So(len(available), ShouldEqual, 1)

				var recs []types.Evaluation
				So(h.do(http.MethodGet, "/events/"+ev.ID+"/participants/"+ana.ID+"/evaluations", "", nil, &recs), ShouldEqual, http.StatusOK)
				So(len(recs), ShouldEqual, 1)
				So(recs[0].Total, ShouldEqual, 88)
				So(recs[0].Revision, ShouldEqual, 2)
			})

			Convey("Then publishing waits for completeness unless forced", func() {
				var e types.ErrorResponse
				So(h.do(http.MethodPost, "/events/"+ev.ID+"/results/publish", "", nil, &e), ShouldEqual, http.StatusConflict)
				So(e.Code, ShouldEqual, "evaluations_incomplete")

				var board types.Ranking
				So(h.do(http.MethodPost, "/events/"+ev.ID+"/results/publish", "", types.PublishRequest{Force: true}, &board), ShouldEqual, http.StatusOK)
				So(board.Published, ShouldBeTrue)
				So(board.Entries[0].ParticipantID, ShouldEqual, ana.ID)
				So(board.Entries[0].Rank, ShouldEqual, 1)

				var public types.Ranking
				So(h.do(http.MethodGet, "/events/"+ev.ID+"/ranking?view=public", "", nil, &public), ShouldEqual, http.StatusOK)
				So(public.InputsHash, ShouldEqual, board.InputsHash)
			})

			Convey("Then the operator ranking is fresh and marked unpublished", func() {
				var board types.Ranking
				So(h.do(http.MethodGet, "/events/"+ev.ID+"/ranking", "", nil, &board), ShouldEqual, http.StatusOK)
				So(board.Published, ShouldBeFalse)
				So(len(board.Entries), ShouldEqual, 2)
				So(board.Entries[0].AvgScore, ShouldEqual, 88)
			})
		})

		Convey("When requests are malformed or point nowhere", func() {
			var e types.ErrorResponse
			So(h.do(http.MethodGet, "/events/missing", "", nil, &e), ShouldEqual, http.StatusNotFound)
			So(e.Code, ShouldEqual, "not_found")
			So(h.do(http.MethodPost, "/events", "", "{not json", &e), ShouldEqual, http.StatusBadRequest)
			So(e.Code, ShouldEqual, "bad_request")
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/transitions", "", types.TransitionRequest{Action: "archive"}, &e), ShouldEqual, http.StatusBadRequest)
			So(e.Code, ShouldEqual, "bad_request")
			So(e.Message, ShouldContainSubstring, `unknown action "archive"`)
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/transitions", "", types.TransitionRequest{Action: "complete"}, &e), ShouldEqual, http.StatusConflict)
			So(e.Code, ShouldEqual, "invalid_transition")
			So(h.do(http.MethodGet, "/events/"+ev.ID+"/live?limit=abc", "", nil, &e), ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading the live board and stats", func() {
			var rows []types.LiveEntry
			So(h.do(http.MethodGet, "/events/"+ev.ID+"/live?limit=5", "", nil, &rows), ShouldEqual, http.StatusOK)
			So(rows, ShouldBeEmpty)

			So(h.do(http.MethodGet, "/stats", "", nil, nil), ShouldEqual, http.StatusOK)
			So(h.do(http.MethodGet, "/healthz", "", nil, nil), ShouldEqual, http.StatusOK)
		})
	})
}

func TestAPI_Auth(t *testing.T) {
	Convey("Given an API with an auth secret", t, func() {
		h := newHarness(api.WithAuthSecret(secret))
		defer h.close()

		operator, err := api.IssueToken(secret, api.RoleOperator, "ops", time.Hour, time.Now())
		So(err, ShouldBeNil)
		judgeToken, err := api.IssueToken(secret, api.RoleJudge, "j-1", time.Hour, time.Now())
		So(err, ShouldBeNil)

		Convey("When mutating without or with the wrong credentials", func() {
			var e types.ErrorResponse
			So(h.do(http.MethodPost, "/events", "", festivalRequest(), &e), ShouldEqual, http.StatusUnauthorized)
			So(e.Code, ShouldEqual, "unauthorized")
			So(h.do(http.MethodPost, "/events", judgeToken, festivalRequest(), &e), ShouldEqual, http.StatusForbidden)
			So(e.Code, ShouldEqual, "forbidden")
			So(h.do(http.MethodPost, "/events", "garbage", festivalRequest(), &e), ShouldEqual, http.StatusUnauthorized)

			forged, _ := api.IssueToken("other-secret", api.RoleOperator, "ops", time.Hour, time.Now())
			So(h.do(http.MethodPost, "/events", forged, festivalRequest(), &e), ShouldEqual, http.StatusUnauthorized)

			expired, _ := api.IssueToken(secret, api.RoleOperator, "ops", time.Minute, time.Now().Add(-time.Hour))
			So(h.do(http.MethodPost, "/events", expired, festivalRequest(), &e), ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When an operator prepares an event", func() {
			var ev types.Event
			So(h.do(http.MethodPost, "/events", operator, festivalRequest(), &ev), ShouldEqual, http.StatusCreated)
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/transitions", operator, types.TransitionRequest{Action: "publish"}, nil), ShouldEqual, http.StatusOK)

			var p types.Participant
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/participants", "", types.NameRequest{Name: "Ana"}, &p), ShouldEqual, http.StatusCreated)
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/judges", operator, types.JudgeRequest{ID: "j-1", Name: "Helena"}, nil), ShouldEqual, http.StatusCreated)
			So(h.do(http.MethodPost, "/events/"+ev.ID+"/judges", operator, types.JudgeRequest{ID: "j-2", Name: "Igor"}, nil), ShouldEqual, http.StatusCreated)

			Convey("Then a judge submits only under its own subject", func() {
				var e types.ErrorResponse
				So(h.do(http.MethodPost, "/events/"+ev.ID+"/evaluations", judgeToken, types.EvaluationRequest{
					ParticipantID: p.ID, JudgeID: "j-2", Note: note(60),
				}, &e), ShouldEqual, http.StatusForbidden)
				So(e.Code, ShouldEqual, "forbidden")

				So(h.do(http.MethodPost, "/events/"+ev.ID+"/evaluations", judgeToken, types.EvaluationRequest{
					ParticipantID: p.ID, JudgeID: "j-1", Note: note(60),
				}, nil), ShouldEqual, http.StatusCreated)

				So(h.do(http.MethodPost, "/events/"+ev.ID+"/evaluations", "", types.EvaluationRequest{
					ParticipantID: p.ID, JudgeID: "j-1", Note: note(60),
				}, nil), ShouldEqual, http.StatusUnauthorized)
			})

			Convey("Then the public sees results only once published", func() {
				var e types.ErrorResponse
				So(h.do(http.MethodGet, "/events/"+ev.ID+"/ranking", "", nil, &e), ShouldEqual, http.StatusForbidden)
				So(e.Code, ShouldEqual, "not_published")

				So(h.do(http.MethodPost, "/events/"+ev.ID+"/results/publish", operator, types.PublishRequest{Force: true}, nil), ShouldEqual, http.StatusOK)
				var board types.Ranking
				So(h.do(http.MethodGet, "/events/"+ev.ID+"/ranking", "", nil, &board), ShouldEqual, http.StatusOK)
				So(board.Published, ShouldBeTrue)
				So(len(board.Entries), ShouldEqual, 1)
			})
		})
	})
}

func TestAuthenticator(t *testing.T) {
	Convey("Given an authenticator", t, func() {
		a := api.NewAuthenticator(secret)

		Convey("When a judge token lacks a subject", func() {
			token, err := api.IssueToken(secret, api.RoleJudge, "", time.Hour, time.Now())
			So(err, ShouldBeNil)
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Bearer "+token)
			_, err = a.Authenticate(r)
			So(errors.Is(err, api.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When the role is unknown", func() {
			token, _ := api.IssueToken(secret, "admin", "x", time.Hour, time.Now())
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Bearer "+token)
			_, err := a.Authenticate(r)
			So(errors.Is(err, api.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When no header is sent", func() {
			p, err := a.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
			So(err, ShouldBeNil)
			So(p.Role, ShouldEqual, api.RolePublic)
		})

		Convey("When no secret is configured", func() {
			p, err := api.NewAuthenticator("").Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
			So(err, ShouldBeNil)
			So(p.Role, ShouldEqual, api.RoleOperator)
		})
	})
}
