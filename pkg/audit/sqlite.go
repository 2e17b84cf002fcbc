// SPDX-License-Identifier: Apache-2.0
package audit

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists runs in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite-backed store at the given DSN.
// Use ":memory:" for an ephemeral store.
func Open(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an existing database handle and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRun stores a run and its steps in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run, steps []Step) error {
	output, err := encodeOutput(run.Output)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO composition_runs (
			run_id, module, pattern, ok, error_code, confidence, risk, output_json, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID,
		run.Module,
		run.Pattern,
		run.OK,
		run.ErrorCode,
		run.Confidence,
		run.Risk,
		string(output),
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return err
	}

	for _, step := range steps {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO composition_steps (
				run_id, module, status, reason, started_at, finished_at
			) VALUES (?, ?, ?, ?, ?, ?)
		`,
			step.RunID,
			step.Module,
			step.Status,
			step.Reason,
			step.StartedAt,
			step.FinishedAt,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRuns returns runs matching the filter, oldest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter Filter) ([]Run, error) {
	query := `
		SELECT run_id, module, pattern, ok, error_code, confidence, risk, output_json, started_at, finished_at
		FROM composition_runs
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Module != "" {
		addFilter("module = ?", filter.Module)
	}
	if filter.OK != nil {
		addFilter("ok = ?", *filter.OK)
	}
	query += where + " ORDER BY started_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			outputJSON string
			started    sql.NullTime
			finished   sql.NullTime
		)
		if err := rows.Scan(
			&run.RunID,
			&run.Module,
			&run.Pattern,
			&run.OK,
			&run.ErrorCode,
			&run.Confidence,
			&run.Risk,
			&outputJSON,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		if outputJSON != "" {
			if out, err := decodeOutput([]byte(outputJSON)); err == nil {
				run.Output = out
			}
		}
		if started.Valid {
			run.StartedAt = started.Time
		}
		if finished.Valid {
			run.FinishedAt = finished.Time
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListSteps returns the steps of a run in trace order.
func (s *SQLiteStore) ListSteps(ctx context.Context, runID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, module, status, reason, started_at, finished_at
		FROM composition_steps
		WHERE run_id = ?
		ORDER BY rowid ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var (
			step     Step
			started  sql.NullTime
			finished sql.NullTime
		)
		if err := rows.Scan(
			&step.RunID,
			&step.Module,
			&step.Status,
			&step.Reason,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		if started.Valid {
			step.StartedAt = started.Time
		}
		if finished.Valid {
			step.FinishedAt = finished.Time
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS composition_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			module TEXT NOT NULL,
			pattern TEXT,
			ok BOOLEAN NOT NULL,
			error_code TEXT,
			confidence REAL,
			risk TEXT,
			output_json TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS composition_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			module TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_runs_module ON composition_runs(module);
		CREATE INDEX IF NOT EXISTS idx_steps_run ON composition_steps(run_id);
	`)
	return err
}
