package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ballpark/internal/domain"
)

// RunStore implements domain.RunStore on the state database.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

var _ domain.RunStore = (*RunStore)(nil)

// ── Runs ───────────────────────────────────────────────────

// CreateRun inserts run with a fresh id and status running.
func (s *RunStore) CreateRun(run *domain.RunLog) error {
	run.ID = uuid.New().String()
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = domain.RunRunning

	_, err := s.db.conn.Exec(
		`INSERT INTO runs (id, pipeline, started_at, status) VALUES (?, ?, ?, ?)`,
		run.ID, run.Pipeline, run.StartedAt, run.Status,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the final status and counts of run.
func (s *RunStore) FinishRun(run *domain.RunLog) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	res, err := s.db.conn.Exec(
		`UPDATE runs SET finished_at=?, status=?, requested=?, fetched=?, empty=?, failed=?,
		 defaulted=?, written=?, error=? WHERE id=?`,
		run.FinishedAt, run.Status, run.Requested, run.Fetched, run.Empty, run.Failed,
		run.Defaulted, run.Written, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. An empty pipeline
// lists every pipeline.
func (s *RunStore) ListRuns(pipeline string, limit int) ([]domain.RunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.conn.Query(
		`SELECT id, pipeline, started_at, finished_at, status, requested, fetched, empty,
		 failed, defaulted, written, error
		 FROM runs WHERE (? = '' OR pipeline = ?) ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		pipeline, pipeline, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.RunLog
	for rows.Next() {
		var r domain.RunLog
		var finished sql.NullTime
		if err := rows.Scan(
			&r.ID, &r.Pipeline, &r.StartedAt, &finished, &r.Status,
			&r.Requested, &r.Fetched, &r.Empty, &r.Failed, &r.Defaulted, &r.Written, &r.Error,
		); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ── Skips ──────────────────────────────────────────────────

// CreateSkips stores skips in one transaction.
func (s *RunStore) CreateSkips(skips []domain.SkipRecord) error {
	if len(skips) == 0 {
		return nil
	}
	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO skips (run_id, identifier, reason, attempts, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sk := range skips {
		created := sk.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := stmt.Exec(sk.RunID, sk.Identifier, sk.Reason, sk.Attempts, sk.Error, created); err != nil {
			return fmt.Errorf("insert skip %s: %w", sk.Identifier, err)
		}
	}
	return tx.Commit()
}

// ListSkips returns the skips of one run in insertion order.
func (s *RunStore) ListSkips(runID string) ([]domain.SkipRecord, error) {
	rows, err := s.db.conn.Query(
		`SELECT run_id, identifier, reason, attempts, error, created_at
		 FROM skips WHERE run_id = ? ORDER BY rowid ASC`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skips []domain.SkipRecord
	for rows.Next() {
		var sk domain.SkipRecord
		if err := rows.Scan(&sk.RunID, &sk.Identifier, &sk.Reason, &sk.Attempts, &sk.Error, &sk.CreatedAt); err != nil {
			return nil, err
		}
		skips = append(skips, sk)
	}
	return skips, rows.Err()
}
