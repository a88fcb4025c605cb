package history

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store records launch runs and per-process lifecycle events in SQLite for
// later inspection with `tripstack history`.
type Store struct {
	db *sql.DB
}

// Run is one orchestrator invocation.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	FinalState string
	Degraded   bool
}

// Event is one process or provisioning transition inside a run.
type Event struct {
	RunID      int64
	OccurredAt time.Time
	Name       string
	PID        int
	Status     string
	Detail     string
}

// Open creates the store. DSN accepts "sqlite:///path", a bare path, or
// ":memory:".
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty history DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS launch_runs(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			final_state TEXT,
			degraded INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS launch_events(
			run_id INTEGER NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			name TEXT NOT NULL,
			pid INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			detail TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// BeginRun inserts a new run row and returns its id.
func (s *Store) BeginRun(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO launch_runs(started_at) VALUES(?);`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun stamps the run's terminal state.
func (s *Store) FinishRun(ctx context.Context, runID int64, finalState string, degraded bool) error {
	d := 0
	if degraded {
		d = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE launch_runs SET finished_at = ?, final_state = ?, degraded = ? WHERE id = ?;`,
		time.Now().UTC(), finalState, d, runID)
	return err
}

// RecordEvent appends one lifecycle event to the run's audit trail.
func (s *Store) RecordEvent(ctx context.Context, e Event) error {
	occur := e.OccurredAt
	if occur.IsZero() {
		occur = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO launch_events(run_id, occurred_at, name, pid, status, detail)
		 VALUES(?, ?, ?, ?, ?, ?);`,
		e.RunID, occur.UTC(), e.Name, e.PID, e.Status, e.Detail)
	return err
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, COALESCE(finished_at, started_at),
		        COALESCE(final_state, ''), degraded
		 FROM launch_runs ORDER BY id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Run
	for rows.Next() {
		var r Run
		var degraded int
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.FinalState, &degraded); err != nil {
			return nil, err
		}
		r.Degraded = degraded != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Events returns a run's events in insertion order.
func (s *Store) Events(ctx context.Context, runID int64) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, occurred_at, name, pid, status, COALESCE(detail, '')
		 FROM launch_events WHERE run_id = ? ORDER BY rowid;`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.RunID, &e.OccurredAt, &e.Name, &e.PID, &e.Status, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
