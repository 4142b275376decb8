// Package sqlite provides a SQLite-backed repository.Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/palco/internal/adapters/repository"
	"github.com/okian/palco/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/palco/internal/domain/evaluation"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/internal/domain/ranking"
	"github.com/okian/palco/internal/domain/roster"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists palco state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ repository.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil || value.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func timePtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps upserts and version checks strictly serialized.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// mapErr translates driver errors into repository kinds.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED,
			sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%s: %w: %v", op, repository.ErrConflict, err)
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w: %v", op, repository.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// withTx runs fn inside one transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr(op, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const eventColumns = `id, name, description, location, category, type, status,
	start_date, end_date, registration_start, registration_end,
	max_participants, current_participants, approval_mode, cancel_reason,
	results_published_at, copied_from, created_at, updated_at, version`

func scanEvent(row *sql.Row) (event.Event, error) {
	var (
		ev                                 event.Event
		status, mode                       string
		start, end, regStart, regEnd, pubd sql.NullInt64
		maxParticipants                    sql.NullInt64
		createdAt, updatedAt               int64
	)
	if err := row.Scan(
		&ev.ID, &ev.Name, &ev.Description, &ev.Location, &ev.Category, &ev.Type, &status,
		&start, &end, &regStart, &regEnd,
		&maxParticipants, &ev.CurrentParticipants, &mode, &ev.CancelReason,
		&pubd, &ev.CopiedFrom, &createdAt, &updatedAt, &ev.Version,
	); err != nil {
		return event.Event{}, err
	}
	ev.Status = event.Status(status)
	ev.ApprovalMode = event.ApprovalMode(mode)
	if start.Valid {
		ev.StartDate = fromMillis(start.Int64)
	}
	ev.EndDate = timePtr(end)
	ev.RegistrationStartDate = timePtr(regStart)
	ev.RegistrationEndDate = timePtr(regEnd)
	ev.ResultsPublishedAt = timePtr(pubd)
	if maxParticipants.Valid {
		n := int(maxParticipants.Int64)
		ev.MaxParticipants = &n
	}
	ev.CreatedAt = fromMillis(createdAt)
	ev.UpdatedAt = fromMillis(updatedAt)
	return ev, nil
}

func getEvent(ctx context.Context, q queryer, id string) (event.Event, error) {
	ev, err := scanEvent(q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		return event.Event{}, mapErr("get event "+id, err)
	}
	return ev, nil
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

// CreateEvent implements repository.EventStore.
func (s *Store) CreateEvent(ctx context.Context, ev event.Event) (event.Event, error) {
	defer repository.ObserveLatency("create_event", time.Now())

	ev.Version = 1
	start := ev.StartDate
	_, err := s.sqlDB.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Name, ev.Description, ev.Location, ev.Category, ev.Type, string(ev.Status),
		nullMillis(&start), nullMillis(ev.EndDate), nullMillis(ev.RegistrationStartDate), nullMillis(ev.RegistrationEndDate),
		nullInt(ev.MaxParticipants), ev.CurrentParticipants, string(ev.ApprovalMode), ev.CancelReason,
		nullMillis(ev.ResultsPublishedAt), ev.CopiedFrom, toMillis(ev.CreatedAt), toMillis(ev.UpdatedAt), ev.Version,
	)
	if err != nil {
		return event.Event{}, mapErr("create event", err)
	}
	return ev, nil
}

// GetEvent implements repository.EventStore.
func (s *Store) GetEvent(ctx context.Context, id string) (event.Event, error) {
	defer repository.ObserveLatency("get_event", time.Now())
	return getEvent(ctx, s.sqlDB, id)
}

// UpdateEvent implements repository.EventStore.
func (s *Store) UpdateEvent(ctx context.Context, m repository.EventMutation) (event.Event, error) {
	defer repository.ObserveLatency("update_event", time.Now())

	ev := m.Event
	next := ev
	next.Version = ev.Version + 1
	err := s.withTx(ctx, "update event", func(tx *sql.Tx) error {
		start := ev.StartDate
		res, err := tx.ExecContext(ctx, `UPDATE events SET
			name = ?, description = ?, location = ?, category = ?, type = ?, status = ?,
			start_date = ?, end_date = ?, registration_start = ?, registration_end = ?,
			max_participants = ?, current_participants = ?, approval_mode = ?, cancel_reason = ?,
			results_published_at = ?, copied_from = ?, updated_at = ?, version = ?
			WHERE id = ? AND version = ?`,
			ev.Name, ev.Description, ev.Location, ev.Category, ev.Type, string(ev.Status),
			nullMillis(&start), nullMillis(ev.EndDate), nullMillis(ev.RegistrationStartDate), nullMillis(ev.RegistrationEndDate),
			nullInt(ev.MaxParticipants), ev.CurrentParticipants, string(ev.ApprovalMode), ev.CancelReason,
			nullMillis(ev.ResultsPublishedAt), ev.CopiedFrom, toMillis(ev.UpdatedAt), next.Version,
			ev.ID, ev.Version,
		)
		if err != nil {
			return mapErr("update event", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return mapErr("update event", err)
		} else if n == 0 {
			if _, err := getEvent(ctx, tx, ev.ID); err != nil {
				return err
			}
			return fmt.Errorf("update event %s at version %d: %w", ev.ID, ev.Version, repository.ErrConflict)
		}

		switch {
		case m.Publish != nil:
			entries, err := json.Marshal(m.Publish.Entries)
			if err != nil {
				return fmt.Errorf("encode board: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO published_boards (event_id, policy, computed_at, inputs_hash, entries)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(event_id) DO UPDATE SET
				  policy = excluded.policy,
				  computed_at = excluded.computed_at,
				  inputs_hash = excluded.inputs_hash,
				  entries = excluded.entries`,
				ev.ID, string(m.Publish.Policy), toMillis(m.Publish.ComputedAt), m.Publish.InputsHash, string(entries),
			); err != nil {
				return mapErr("publish board", err)
			}
		case m.Unpublish:
			if _, err := tx.ExecContext(ctx, `DELETE FROM published_boards WHERE event_id = ?`, ev.ID); err != nil {
				return mapErr("unpublish board", err)
			}
		}
		return nil
	})
	if err != nil {
		return event.Event{}, err
	}
	// Millisecond storage precision is what readers observe.
	return s.GetEvent(ctx, next.ID)
}

// GetPublishedBoard implements repository.EventStore.
func (s *Store) GetPublishedBoard(ctx context.Context, eventID string) (ranking.Board, error) {
	var (
		b          ranking.Board
		policy     string
		computedAt int64
		entries    string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT policy, computed_at, inputs_hash, entries FROM published_boards WHERE event_id = ?`, eventID,
	).Scan(&policy, &computedAt, &b.InputsHash, &entries)
	if err != nil {
		return ranking.Board{}, mapErr("get published board "+eventID, err)
	}
	if err := json.Unmarshal([]byte(entries), &b.Entries); err != nil {
		return ranking.Board{}, fmt.Errorf("decode board: %w", err)
	}
	b.EventID = eventID
	b.Policy = ranking.Policy(policy)
	b.ComputedAt = fromMillis(computedAt)
	return b, nil
}

// RegisterParticipant implements repository.RosterStore.
func (s *Store) RegisterParticipant(ctx context.Context, p roster.Participant) (roster.Participant, error) {
	defer repository.ObserveLatency("register_participant", time.Now())

	err := s.withTx(ctx, "register participant", func(tx *sql.Tx) error {
		ev, err := getEvent(ctx, tx, p.EventID)
		if err != nil {
			return err
		}
		if p.Accepted() {
			if !ev.HasCapacity() {
				return fmt.Errorf("%w: event %s is full", event.ErrCapacityExceeded, p.EventID)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE events SET current_participants = current_participants + 1, updated_at = ?, version = version + 1 WHERE id = ?`,
				toMillis(p.RegisteredAt), p.EventID,
			); err != nil {
				return mapErr("count participant", err)
			}
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM participants WHERE event_id = ?`, p.EventID,
		).Scan(&p.Seq); err != nil {
			return mapErr("next seq", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO participants (event_id, id, name, seq, status, registered_at, approved_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.EventID, p.ID, p.Name, p.Seq, string(p.Status), toMillis(p.RegisteredAt), nullMillis(p.ApprovedAt),
		)
		return mapErr("insert participant", err)
	})
	if err != nil {
		return roster.Participant{}, err
	}
	p.RegisteredAt = fromMillis(toMillis(p.RegisteredAt))
	return p, nil
}

// ApproveParticipant implements repository.RosterStore.
func (s *Store) ApproveParticipant(ctx context.Context, eventID, participantID string, at time.Time) (roster.Participant, error) {
	defer repository.ObserveLatency("approve_participant", time.Now())

	var out roster.Participant
	err := s.withTx(ctx, "approve participant", func(tx *sql.Tx) error {
		ev, err := getEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		p, err := getParticipant(ctx, tx, eventID, participantID)
		if err != nil {
			return err
		}
		if err := roster.Approve(ev, p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE participants SET status = ?, approved_at = ? WHERE event_id = ? AND id = ?`,
			string(roster.ParticipantAccepted), toMillis(at), eventID, participantID,
		); err != nil {
			return mapErr("approve participant", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE events SET current_participants = current_participants + 1, updated_at = ?, version = version + 1 WHERE id = ?`,
			toMillis(at), eventID,
		); err != nil {
			return mapErr("count participant", err)
		}
		approvedAt := fromMillis(toMillis(at))
		p.Status = roster.ParticipantAccepted
		p.ApprovedAt = &approvedAt
		out = p
		return nil
	})
	return out, err
}

func getParticipant(ctx context.Context, q queryer, eventID, participantID string) (roster.Participant, error) {
	var (
		p            roster.Participant
		status       string
		registeredAt int64
		approvedAt   sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT event_id, id, name, seq, status, registered_at, approved_at FROM participants WHERE event_id = ? AND id = ?`,
		eventID, participantID,
	).Scan(&p.EventID, &p.ID, &p.Name, &p.Seq, &status, &registeredAt, &approvedAt)
	if err != nil {
		return roster.Participant{}, mapErr("get participant "+participantID, err)
	}
	p.Status = roster.ParticipantStatus(status)
	p.RegisteredAt = fromMillis(registeredAt)
	p.ApprovedAt = timePtr(approvedAt)
	return p, nil
}

// GetParticipant implements repository.RosterStore.
func (s *Store) GetParticipant(ctx context.Context, eventID, participantID string) (roster.Participant, error) {
	return getParticipant(ctx, s.sqlDB, eventID, participantID)
}

// ListParticipants implements repository.RosterStore.
func (s *Store) ListParticipants(ctx context.Context, eventID string) ([]roster.Participant, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT event_id, id, name, seq, status, registered_at, approved_at FROM participants WHERE event_id = ? ORDER BY seq`,
		eventID,
	)
	if err != nil {
		return nil, mapErr("list participants", err)
	}
	defer rows.Close()

	out := make([]roster.Participant, 0)
	for rows.Next() {
		var (
			p            roster.Participant
			status       string
			registeredAt int64
			approvedAt   sql.NullInt64
		)
		if err := rows.Scan(&p.EventID, &p.ID, &p.Name, &p.Seq, &status, &registeredAt, &approvedAt); err != nil {
			return nil, mapErr("scan participant", err)
		}
		p.Status = roster.ParticipantStatus(status)
		p.RegisteredAt = fromMillis(registeredAt)
		p.ApprovedAt = timePtr(approvedAt)
		out = append(out, p)
	}
	return out, mapErr("list participants", rows.Err())
}

// AddJudge implements repository.RosterStore.
func (s *Store) AddJudge(ctx context.Context, j roster.Judge) (roster.Judge, error) {
	defer repository.ObserveLatency("add_judge", time.Now())

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO judges (event_id, id, name, position, assigned_at)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM judges WHERE event_id = ?), ?)`,
		j.EventID, j.ID, j.Name, j.EventID, toMillis(j.AssignedAt),
	)
	if err != nil {
		return roster.Judge{}, mapErr("add judge", err)
	}
	j.AssignedAt = fromMillis(toMillis(j.AssignedAt))
	return j, nil
}

// GetJudge implements repository.RosterStore.
func (s *Store) GetJudge(ctx context.Context, eventID, judgeID string) (roster.Judge, error) {
	var (
		j          roster.Judge
		assignedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT event_id, id, name, assigned_at FROM judges WHERE event_id = ? AND id = ?`, eventID, judgeID,
	).Scan(&j.EventID, &j.ID, &j.Name, &assignedAt)
	if err != nil {
		return roster.Judge{}, mapErr("get judge "+judgeID, err)
	}
	j.AssignedAt = fromMillis(assignedAt)
	return j, nil
}

// ListJudges implements repository.RosterStore.
func (s *Store) ListJudges(ctx context.Context, eventID string) ([]roster.Judge, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT event_id, id, name, assigned_at FROM judges WHERE event_id = ? ORDER BY position`, eventID,
	)
	if err != nil {
		return nil, mapErr("list judges", err)
	}
	defer rows.Close()

	out := make([]roster.Judge, 0)
	for rows.Next() {
		var (
			j          roster.Judge
			assignedAt int64
		)
		if err := rows.Scan(&j.EventID, &j.ID, &j.Name, &assignedAt); err != nil {
			return nil, mapErr("scan judge", err)
		}
		j.AssignedAt = fromMillis(assignedAt)
		out = append(out, j)
	}
	return out, mapErr("list judges", rows.Err())
}

// UpsertEvaluation implements repository.EvaluationStore.
func (s *Store) UpsertEvaluation(ctx context.Context, r evaluation.Record) (evaluation.Record, bool, error) {
	defer repository.ObserveLatency("upsert_evaluation", time.Now())

	err := s.withTx(ctx, "upsert evaluation", func(tx *sql.Tx) error {
		return mapErr("upsert evaluation", tx.QueryRowContext(ctx,
			`INSERT INTO evaluations (event_id, participant_id, judge_id, technical, artistic, presentation, total, feedback, evaluated_at, revision)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			 ON CONFLICT(event_id, participant_id, judge_id) DO UPDATE SET
			   technical = excluded.technical,
			   artistic = excluded.artistic,
			   presentation = excluded.presentation,
			   total = excluded.total,
			   feedback = excluded.feedback,
			   evaluated_at = excluded.evaluated_at,
			   revision = evaluations.revision + 1
			 RETURNING revision`,
			r.EventID, r.ParticipantID, r.JudgeID, r.Technical, r.Artistic, r.Presentation, r.Total,
			r.Feedback, toMillis(r.EvaluatedAt),
		).Scan(&r.Revision))
	})
	if err != nil {
		return evaluation.Record{}, false, err
	}
	r.JudgeName = ""
	r.EvaluatedAt = fromMillis(toMillis(r.EvaluatedAt))
	return r, r.Revision > 1, nil
}

const evaluationQuery = `SELECT e.event_id, e.participant_id, e.judge_id, COALESCE(j.name, ''),
	e.technical, e.artistic, e.presentation, e.total, e.feedback, e.evaluated_at, e.revision
	FROM evaluations e
	LEFT JOIN judges j ON j.event_id = e.event_id AND j.id = e.judge_id
	WHERE e.event_id = ?`

func (s *Store) queryEvaluations(ctx context.Context, query string, args ...any) ([]evaluation.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("list evaluations", err)
	}
	defer rows.Close()

	out := make([]evaluation.Record, 0)
	for rows.Next() {
		var (
			r           evaluation.Record
			evaluatedAt int64
		)
		if err := rows.Scan(&r.EventID, &r.ParticipantID, &r.JudgeID, &r.JudgeName,
			&r.Technical, &r.Artistic, &r.Presentation, &r.Total, &r.Feedback, &evaluatedAt, &r.Revision,
		); err != nil {
			return nil, mapErr("scan evaluation", err)
		}
		r.EvaluatedAt = fromMillis(evaluatedAt)
		out = append(out, r)
	}
	return out, mapErr("list evaluations", rows.Err())
}

// ListEvaluations implements repository.EvaluationStore.
func (s *Store) ListEvaluations(ctx context.Context, eventID string) ([]evaluation.Record, error) {
	defer repository.ObserveLatency("list_evaluations", time.Now())

	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.queryEvaluations(ctx, evaluationQuery+` ORDER BY e.participant_id, e.judge_id`, eventID)
}

// ListParticipantEvaluations implements repository.EvaluationStore.
func (s *Store) ListParticipantEvaluations(ctx context.Context, eventID, participantID string) ([]evaluation.Record, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.queryEvaluations(ctx, evaluationQuery+` AND e.participant_id = ? ORDER BY e.judge_id`, eventID, participantID)
}
