// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/palco/internal/domain/evaluation"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/model"
	"github.com/okian/palco/internal/domain/ranking"
	"github.com/okian/palco/internal/domain/roster"
	"github.com/okian/palco/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	CreateEvent(ctx context.Context, d event.Details) (event.Event, error)
	GetEvent(ctx context.Context, eventID string) (event.Event, error)
	EditEvent(ctx context.Context, eventID string, d event.Details) (event.Event, error)
	CopyEvent(ctx context.Context, eventID string) (event.Event, error)
	Transition(ctx context.Context, eventID string, req event.Request, idempotencyKey string) (event.Event, error)
	Window(ctx context.Context, eventID string) (open, active bool, ev event.Event, err error)
	Now() time.Time

	Register(ctx context.Context, eventID, name string) (roster.Participant, error)
	Approve(ctx context.Context, eventID, participantID string) (roster.Participant, error)
	ListParticipants(ctx context.Context, eventID string) ([]roster.Participant, error)
	AddJudge(ctx context.Context, eventID, judgeID, name string) (roster.Judge, error)
	ListJudges(ctx context.Context, eventID string) ([]roster.Judge, error)

	Submit(ctx context.Context, sub evaluation.Submission) (evaluation.Record, error)
	ListForParticipant(ctx context.Context, eventID, participantID string) ([]evaluation.Record, error)
	ListAvailableJudges(ctx context.Context, eventID, participantID string) ([]roster.Judge, error)
	Progress(ctx context.Context, eventID string) (evaluation.Snapshot, error)

	Ranking(ctx context.Context, eventID string, operator bool) (ranking.Board, error)
	Publish(ctx context.Context, eventID string, force bool) (event.Event, ranking.Board, error)
	Live(ctx context.Context, eventID string, limit int) ([]model.LiveScore, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	auth               *Authenticator
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	rosterHandler      *RosterHandler
	evaluationsHandler *EvaluationsHandler
	resultsHandler     *ResultsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := serverConfig{stats: func(context.Context) any { return map[string]any{} }}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logger.Named("api")
	}
	return &Server{
		auth:               NewAuthenticator(cfg.secret),
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(cfg.stats),
		eventsHandler:      &EventsHandler{deps: deps, log: cfg.log},
		rosterHandler:      &RosterHandler{deps: deps, log: cfg.log},
		evaluationsHandler: &EvaluationsHandler{deps: deps, log: cfg.log},
		resultsHandler:     &ResultsHandler{deps: deps, log: cfg.log},
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	operator := s.auth.Require(RoleOperator)
	staff := s.auth.Require(RoleOperator, RoleJudge)
	anyone := s.auth.Require()

	handle := func(pattern, endpoint string, guard func(http.HandlerFunc) http.HandlerFunc, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(guard(h), endpoint))
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	e := s.eventsHandler
	handle("POST /events", "events_create", operator, e.HandleCreate)
	handle("GET /events/{id}", "events_get", anyone, e.HandleGet)
	handle("PUT /events/{id}", "events_edit", operator, e.HandleEdit)
	handle("POST /events/{id}/copy", "events_copy", operator, e.HandleCopy)
	handle("POST /events/{id}/transitions", "events_transition", operator, e.HandleTransition)
	handle("GET /events/{id}/window", "events_window", anyone, e.HandleWindow)

	ro := s.rosterHandler
	handle("POST /events/{id}/participants", "participants_register", anyone, ro.HandleRegister)
	handle("GET /events/{id}/participants", "participants_list", anyone, ro.HandleListParticipants)
	handle("POST /events/{id}/participants/{pid}/approve", "participants_approve", operator, ro.HandleApprove)
	handle("POST /events/{id}/judges", "judges_add", operator, ro.HandleAddJudge)
	handle("GET /events/{id}/judges", "judges_list", anyone, ro.HandleListJudges)

	ev := s.evaluationsHandler
	handle("POST /events/{id}/evaluations", "evaluations_submit", staff, ev.HandleSubmit)
	handle("GET /events/{id}/participants/{pid}/evaluations", "evaluations_list", staff, ev.HandleList)
	handle("GET /events/{id}/participants/{pid}/available-judges", "evaluations_available_judges", staff, ev.HandleAvailableJudges)
	handle("GET /events/{id}/progress", "progress", staff, ev.HandleProgress)

	rs := s.resultsHandler
	handle("GET /events/{id}/ranking", "ranking", anyone, rs.HandleRanking)
	handle("POST /events/{id}/results/publish", "results_publish", operator, rs.HandlePublish)
	handle("GET /events/{id}/live", "live", anyone, rs.HandleLive)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into v. An empty body is accepted only when
// allowEmpty is set, leaving v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrBadRequest, err.Error())
	}
	return nil
}
