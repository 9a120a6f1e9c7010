// Package journal keeps an append-only record of migration runs in a local
// SQLite file. Nothing in a migration reads it back.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mouradhm/mongo-migrate/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source_db   TEXT NOT NULL,
	target_db   TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	successful  INTEGER NOT NULL,
	total_source INTEGER NOT NULL,
	total_target INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	collection      TEXT NOT NULL,
	status          TEXT NOT NULL,
	source_count    INTEGER NOT NULL,
	target_count    INTEGER NOT NULL,
	documents_count INTEGER NOT NULL,
	indexes_copied  INTEGER NOT NULL,
	error_message   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);
`

// timeLayout sorts lexicographically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Journal stores finished runs.
type Journal struct {
	db *sql.DB
	l  *zap.Logger
}

// Run is a journal entry.
type Run struct {
	ID          string
	SourceDB    string
	TargetDB    string
	StartedAt   time.Time
	FinishedAt  time.Time
	Successful  bool
	TotalSource int64
	TotalTarget int64
	Outcomes    []models.CollectionOutcome
}

// Open opens (creating if needed) the journal at path.
func Open(ctx context.Context, path string, l *zap.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	l.Debug("Journal opened", zap.String("path", path))
	return &Journal{db: db, l: l}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends res and its outcomes and returns the new run id.
func (j *Journal) Record(ctx context.Context, res *models.RunResult) (string, error) {
	id := uuid.NewString()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source_db, target_db, started_at, finished_at, successful, total_source, total_target)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, res.SourceDB, res.TargetDB,
		res.StartedAt.UTC().Format(timeLayout), res.FinishedAt.UTC().Format(timeLayout),
		res.Report.Successful(), res.Report.TotalSource, res.Report.TotalTarget,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, o := range res.Outcomes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outcomes (run_id, position, collection, status, source_count, target_count,
			 documents_count, indexes_copied, error_message)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, o.CollectionName, string(o.Status), o.SourceCount, o.TargetCount,
			o.DocumentsCount, o.IndexesCopied, o.ErrorMessage,
		)
		if err != nil {
			return "", fmt.Errorf("insert outcome %s: %w", o.CollectionName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}

	j.l.Info("Run recorded in journal", zap.String("run_id", id))
	return id, nil
}

// Recent returns up to limit runs, newest first, with their outcomes.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, source_db, target_db, started_at, finished_at, successful, total_source, total_target
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt, finishedAt string
		if err := rows.Scan(&r.ID, &r.SourceDB, &r.TargetDB, &startedAt, &finishedAt,
			&r.Successful, &r.TotalSource, &r.TotalTarget); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(timeLayout, finishedAt); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		outcomes, err := j.outcomes(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Outcomes = outcomes
	}

	return runs, nil
}

func (j *Journal) outcomes(ctx context.Context, runID string) ([]models.CollectionOutcome, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT collection, status, source_count, target_count, documents_count, indexes_copied, error_message
		 FROM outcomes WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.CollectionOutcome
	for rows.Next() {
		var o models.CollectionOutcome
		var status string
		if err := rows.Scan(&o.CollectionName, &status, &o.SourceCount, &o.TargetCount,
			&o.DocumentsCount, &o.IndexesCopied, &o.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = models.OutcomeStatus(status)
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}
