package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/palco/internal/adapters/http/api"
	"github.com/okian/palco/internal/domain/types"
	"github.com/okian/palco/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	tokenTTL       = time.Hour
	minNote        = 40
	noteSpread     = 61
	replaceEvery   = 7
	livePollPeriod = 50 * time.Millisecond
	liveLimit      = 10
)

// submission is one judge's final note for one participant.
type submission struct {
	participantID string
	judgeID       string
	note          float64
	// draft, when set, is sent first and then replaced by note.
	draft *float64
}

// runner carries the state of one round.
type runner struct {
	cfg    *Config
	client *Client
	log    logger.Logger
	stats  *Stats

	operator string
	judges   map[string]string // judge id -> token
}

// Run executes a complete round and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	r := &runner{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL, cfg.Timeout),
		log:    logger.Named("judge-sim"),
		stats:  &Stats{StartTime: time.Now()},
		judges: make(map[string]string, cfg.Judges),
	}

	r.log.Info(ctx, "starting judge simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("participants", cfg.Participants),
		logger.Int("judges", cfg.Judges),
		logger.Int("workers", cfg.Workers),
		logger.Bool("auth", cfg.Secret != ""))

	if err := r.run(ctx); err != nil {
		return r.stats, err
	}

	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	r.report(ctx)
	return r.stats, nil
}

func (r *runner) run(ctx context.Context) error {
	if err := r.checkHealth(ctx); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}
	if err := r.issueOperatorToken(); err != nil {
		return err
	}

	eventID, err := r.openEvent(ctx)
	if err != nil {
		return fmt.Errorf("event setup failed: %w", err)
	}
	r.stats.EventID = eventID

	participants, err := r.registerParticipants(ctx, eventID)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	if err := r.assignJudges(ctx, eventID); err != nil {
		return fmt.Errorf("judge assignment failed: %w", err)
	}

	plan := r.plan(participants)
	if err := r.submitAll(ctx, eventID, plan); err != nil {
		return fmt.Errorf("evaluation submission failed: %w", err)
	}
	expected := expectedAverages(plan)

	var progress types.Progress
	if _, err := r.client.do(ctx, request{method: http.MethodGet, path: "/events/" + eventID + "/progress", token: r.operator}, &progress, http.StatusOK); err != nil {
		return err
	}
	if err := verifyProgress(progress, len(participants), len(r.judges)); err != nil {
		return err
	}

	var board types.Ranking
	if _, err := r.client.do(ctx, request{method: http.MethodGet, path: "/events/" + eventID + "/ranking", token: r.operator}, &board, http.StatusOK); err != nil {
		return err
	}
	if err := verifyRanking(board, expected); err != nil {
		return err
	}
	r.stats.RankingEntries = len(board.Entries)

	if err := r.publish(ctx, eventID, board); err != nil {
		return err
	}
	return r.awaitLive(ctx, eventID, board)
}

// checkHealth verifies the service is running.
func (r *runner) checkHealth(ctx context.Context) error {
	_, err := r.client.do(ctx, request{method: http.MethodGet, path: "/healthz"}, nil, http.StatusOK)
	return err
}

func (r *runner) issueOperatorToken() error {
	if r.cfg.Secret == "" {
		return nil
	}
	token, err := api.IssueToken(r.cfg.Secret, api.RoleOperator, "judge-sim", tokenTTL, time.Now())
	if err != nil {
		return err
	}
	r.operator = token
	return nil
}

// openEvent creates an event starting in an hour and publishes it.
func (r *runner) openEvent(ctx context.Context) (string, error) {
	var ev types.Event
	_, err := r.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/events",
		token:  r.operator,
		body: types.EventRequest{
			Name:      "Simulated festival " + time.Now().Format(time.DateTime),
			Location:  "Simulation stage",
			Category:  "simulation",
			Type:      "competition",
			StartDate: time.Now().Add(time.Hour),
		},
	}, &ev, http.StatusCreated)
	if err != nil {
		return "", err
	}

	_, err = r.client.do(ctx, request{
		method:  http.MethodPost,
		path:    "/events/" + ev.ID + "/transitions",
		token:   r.operator,
		body:    types.TransitionRequest{Action: "publish"},
		headers: map[string]string{api.IdempotencyHeader: uuid.NewString()},
	}, &ev, http.StatusOK)
	if err != nil {
		return "", err
	}
	r.log.Info(ctx, "event published", logger.EventID(ev.ID))
	return ev.ID, nil
}

// registerParticipants signs up participants concurrently and returns their ids.
func (r *runner) registerParticipants(ctx context.Context, eventID string) ([]string, error) {
	ids := make([]string, r.cfg.Participants)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range ids {
		g.Go(func() error {
			var p types.Participant
			_, err := r.client.do(gctx, request{
				method: http.MethodPost,
				path:   "/events/" + eventID + "/participants",
				body:   types.NameRequest{Name: fmt.Sprintf("Participant %03d", i+1)},
			}, &p, http.StatusCreated)
			if err != nil {
				return err
			}
			ids[i] = p.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.stats.ParticipantsCreated = len(ids)
	return ids, nil
}

// assignJudges adds the judges and issues each a token bound to its id.
func (r *runner) assignJudges(ctx context.Context, eventID string) error {
	for i := 0; i < r.cfg.Judges; i++ {
		id := "judge-" + uuid.NewString()
		_, err := r.client.do(ctx, request{
			method: http.MethodPost,
			path:   "/events/" + eventID + "/judges",
			token:  r.operator,
			body:   types.JudgeRequest{ID: id, Name: fmt.Sprintf("Judge %d", i+1)},
		}, nil, http.StatusCreated)
		if err != nil {
			return err
		}
		token := ""
		if r.cfg.Secret != "" {
			token, err = api.IssueToken(r.cfg.Secret, api.RoleJudge, id, tokenTTL, time.Now())
			if err != nil {
				return err
			}
		}
		r.judges[id] = token
	}
	r.stats.JudgesAssigned = len(r.judges)
	return nil
}

// plan draws a note for every participant and judge pair. Every
// replaceEvery-th pair first sends a draft note that is later replaced.
func (r *runner) plan(participants []string) []submission {
	out := make([]submission, 0, len(participants)*len(r.judges))
	n := 0
	for judgeID := range r.judges {
		for _, pid := range participants {
			s := submission{participantID: pid, judgeID: judgeID, note: float64(minNote + rand.IntN(noteSpread))}
			if n%replaceEvery == 0 {
				draft := float64(minNote + rand.IntN(noteSpread))
				s.draft = &draft
			}
			out = append(out, s)
			n++
		}
	}
	return out
}

// submitAll sends the plan with bounded concurrency.
func (r *runner) submitAll(ctx context.Context, eventID string, plan []submission) error {
	var submitted, replaced, failed atomic.Int64

	send := func(ctx context.Context, s submission, note float64) (int, error) {
		return r.client.do(ctx, request{
			method: http.MethodPost,
			path:   "/events/" + eventID + "/evaluations",
			token:  r.judges[s.judgeID],
			body: types.EvaluationRequest{
				ParticipantID: s.participantID,
				JudgeID:       s.judgeID,
				Note:          &note,
			},
		}, nil, http.StatusCreated, http.StatusOK)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, s := range plan {
		g.Go(func() error {
			if s.draft != nil {
				if _, err := send(gctx, s, *s.draft); err != nil {
					failed.Add(1)
					return err
				}
			}
			status, err := send(gctx, s, s.note)
			if err != nil {
				failed.Add(1)
				return err
			}
			submitted.Add(1)
			if status == http.StatusOK {
				replaced.Add(1)
			}
			if r.cfg.Verbose {
				r.log.Debug(gctx, "evaluation submitted",
					logger.ParticipantID(s.participantID),
					logger.JudgeID(s.judgeID),
					logger.Float64("note", s.note))
			}
			return nil
		})
	}
	err := g.Wait()

	r.stats.EvaluationsSubmitted = int(submitted.Load())
	r.stats.EvaluationsReplaced = int(replaced.Load())
	r.stats.EvaluationsFailed = int(failed.Load())
	return err
}

// publish freezes the ranking and checks the public view serves the same board.
func (r *runner) publish(ctx context.Context, eventID string, board types.Ranking) error {
	var published types.Ranking
	if _, err := r.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/events/" + eventID + "/results/publish",
		token:  r.operator,
	}, &published, http.StatusOK); err != nil {
		return err
	}

	var public types.Ranking
	if _, err := r.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/events/" + eventID + "/ranking?view=public",
		token:  r.operator,
	}, &public, http.StatusOK); err != nil {
		return err
	}
	return verifyPublished(board, published, public)
}

// awaitLive polls the live board until it agrees with the ranking.
func (r *runner) awaitLive(ctx context.Context, eventID string, board types.Ranking) error {
	deadline := time.Now().Add(r.cfg.LiveWait)
	path := fmt.Sprintf("/events/%s/live?limit=%d", eventID, liveLimit)
	for {
		var rows []types.LiveEntry
		if _, err := r.client.do(ctx, request{method: http.MethodGet, path: path}, &rows, http.StatusOK); err != nil {
			return err
		}
		err := verifyLive(rows, board)
		if err == nil {
			r.stats.LiveRows = len(rows)
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(livePollPeriod):
		}
	}
}

// report logs the final statistics.
func (r *runner) report(ctx context.Context) {
	var perSecond float64
	if r.stats.Duration > 0 {
		perSecond = float64(r.stats.EvaluationsSubmitted) / r.stats.Duration.Seconds()
	}
	r.log.Info(ctx, "final statistics",
		logger.EventID(r.stats.EventID),
		logger.Int("participants", r.stats.ParticipantsCreated),
		logger.Int("judges", r.stats.JudgesAssigned),
		logger.Int("evaluationsSubmitted", r.stats.EvaluationsSubmitted),
		logger.Int("evaluationsReplaced", r.stats.EvaluationsReplaced),
		logger.Int("evaluationsFailed", r.stats.EvaluationsFailed),
		logger.Int("rankingEntries", r.stats.RankingEntries),
		logger.Int("liveRows", r.stats.LiveRows),
		logger.String("duration", r.stats.Duration.String()),
		logger.Float64("evaluationsPerSecond", perSecond))
}
