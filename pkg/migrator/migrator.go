// Package migrator copies a fixed list of collections from one database to
// another and verifies the result by counting documents on both sides.
//
// A run is strictly sequential: collections are processed one at a time, in
// the configured order, over a single store connection. Destructive steps are
// gated by a confirm.Confirmer.
package migrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/mouradhm/mongo-migrate/pkg/confirm"
	"github.com/mouradhm/mongo-migrate/pkg/models"
)

var (
	// ErrSourceNotFound is returned when the source database is not visible on the connection.
	ErrSourceNotFound = errors.New("source database not found")

	// ErrDeclined is returned when the operator declines to start the migration.
	ErrDeclined = errors.New("migration cancelled by operator")
)

// Store is the subset of database operations a migration needs.
// Databases are addressed by name; a missing collection behaves as an empty one.
type Store interface {
	ListDatabaseNames(ctx context.Context) ([]string, error)
	CountDocuments(ctx context.Context, db, coll string) (int64, error)
	DeleteAll(ctx context.Context, db, coll string) (int64, error)
	ForEachBatch(ctx context.Context, db, coll string, batchSize int, fn func(batch []bson.Raw) error) error
	InsertMany(ctx context.Context, db, coll string, docs []bson.Raw) error
	ListIndexes(ctx context.Context, db, coll string) ([]models.IndexSpec, error)
	CreateIndex(ctx context.Context, db, coll string, spec models.IndexSpec) error
}

// Migrator runs a single migration.
type Migrator struct {
	store   Store
	params  models.MigrationParams
	confirm confirm.Confirmer
	out     io.Writer
	styles  Styles
	l       *zap.Logger
	now     func() time.Time
}

// NewParams represents the parameters of New function.
type NewParams struct {
	Store     Store
	Params    models.MigrationParams
	Confirmer confirm.Confirmer
	Out       io.Writer
	L         *zap.Logger
}

// New creates a new Migrator.
func New(p *NewParams) *Migrator {
	params := p.Params
	if params.BatchSize <= 0 {
		params.BatchSize = models.DefaultBatchSize
	}

	l := p.L
	if l == nil {
		l = zap.NewNop()
	}

	out := p.Out
	if out == nil {
		out = io.Discard
	}

	return &Migrator{
		store:   p.Store,
		params:  params,
		confirm: p.Confirmer,
		out:     out,
		styles:  NewStyles(out),
		l:       l,
		now:     time.Now,
	}
}

// CheckSource prints the databases visible on the connection and verifies
// that the source database is among them.
func (m *Migrator) CheckSource(ctx context.Context) error {
	names, err := m.store.ListDatabaseNames(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Available databases: %s\n", strings.Join(names, ", "))

	if !slices.Contains(names, m.params.SourceDB) {
		return fmt.Errorf("%w: %q", ErrSourceNotFound, m.params.SourceDB)
	}

	return nil
}

// ConfirmStart asks the operator whether to proceed with the whole run.
func (m *Migrator) ConfirmStart(ctx context.Context) error {
	fmt.Fprintf(m.out, "\nThis will migrate data from '%s' to '%s'\n", m.params.SourceDB, m.params.TargetDB)

	ok, err := m.confirm.Confirm(ctx, "Continue?")
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}

	return nil
}

// MigrateCollection copies every document of collection name from the source
// database to the target database.
//
// An empty source is skipped without touching the target. A non-empty target is
// only cleared after the operator agrees; declining leaves it untouched. Both
// skips are successful outcomes. Errors and count mismatches produce a failed
// outcome; they never stop the run.
func (m *Migrator) MigrateCollection(ctx context.Context, name string) models.CollectionOutcome {
	l := m.l.With(zap.String("collection", name))
	outcome := models.CollectionOutcome{CollectionName: name}

	fail := func(err error) models.CollectionOutcome {
		outcome.Status = models.StatusFailed
		outcome.ErrorMessage = err.Error()
		l.Error("Error migrating collection", zap.Error(err))
		return outcome
	}

	sourceCount, err := m.store.CountDocuments(ctx, m.params.SourceDB, name)
	if err != nil {
		return fail(err)
	}
	outcome.SourceCount = sourceCount

	if sourceCount == 0 {
		l.Warn("No documents found, skipping")
		outcome.Status = models.StatusSkippedEmpty
		return outcome
	}

	l.Info("Migrating collection", zap.Int64("documents", sourceCount))

	targetCount, err := m.store.CountDocuments(ctx, m.params.TargetDB, name)
	if err != nil {
		return fail(err)
	}

	if targetCount > 0 {
		question := fmt.Sprintf("Target collection '%s' already has %d documents. Overwrite?", name, targetCount)
		ok, err := m.confirm.Confirm(ctx, question)
		if err != nil {
			return fail(err)
		}
		if !ok {
			l.Info("Skipping collection, overwrite declined", zap.Int64("target_documents", targetCount))
			outcome.Status = models.StatusDeclined
			outcome.TargetCount = targetCount
			return outcome
		}
	}

	deleted, err := m.store.DeleteAll(ctx, m.params.TargetDB, name)
	if err != nil {
		return fail(err)
	}
	if deleted > 0 {
		l.Info("Cleared existing data", zap.Int64("deleted", deleted))
	}

	var copied int64
	err = m.store.ForEachBatch(ctx, m.params.SourceDB, name, m.params.BatchSize, func(batch []bson.Raw) error {
		if err := m.store.InsertMany(ctx, m.params.TargetDB, name, batch); err != nil {
			return err
		}
		copied += int64(len(batch))
		l.Info("Migrated batch", zap.Int64("migrated", copied), zap.Int64("total", sourceCount))
		return nil
	})
	outcome.DocumentsCount = copied
	if err != nil {
		return fail(err)
	}

	finalCount, err := m.store.CountDocuments(ctx, m.params.TargetDB, name)
	if err != nil {
		return fail(err)
	}
	outcome.TargetCount = finalCount

	if finalCount != sourceCount {
		return fail(fmt.Errorf("migration error: expected %d documents, got %d", sourceCount, finalCount))
	}

	l.Info("Successfully migrated collection", zap.Int64("documents", finalCount))
	outcome.Status = models.StatusMigrated
	return outcome
}

// CopyIndexes recreates every secondary index of the source collection on the
// target collection and returns how many were created. Failures are logged as
// warnings only.
func (m *Migrator) CopyIndexes(ctx context.Context, name string) int {
	l := m.l.With(zap.String("collection", name))

	indexes, err := m.store.ListIndexes(ctx, m.params.SourceDB, name)
	if err != nil {
		l.Warn("Could not copy indexes", zap.Error(err))
		return 0
	}

	var copied int
	for _, index := range indexes {
		if index.Name == "_id_" {
			continue
		}

		if err := m.store.CreateIndex(ctx, m.params.TargetDB, name, index); err != nil {
			l.Warn("Could not copy index", zap.String("index", index.Name), zap.Error(err))
			continue
		}

		l.Info("Copied index", zap.String("index", index.Name))
		copied++
	}

	return copied
}

// GenerateReport recounts every configured collection on both sides.
// It does not look at any outcome of MigrateCollection.
func (m *Migrator) GenerateReport(ctx context.Context) models.Report {
	var report models.Report

	for _, name := range m.params.Collections {
		row := models.ReportRow{CollectionName: name}

		sourceCount, err := m.store.CountDocuments(ctx, m.params.SourceDB, name)
		if err == nil {
			var targetCount int64
			targetCount, err = m.store.CountDocuments(ctx, m.params.TargetDB, name)
			row.SourceCount, row.TargetCount = sourceCount, targetCount
		}

		if err != nil {
			row.SourceCount, row.TargetCount = 0, 0
			row.Err = err.Error()
		} else {
			report.TotalSource += row.SourceCount
			report.TotalTarget += row.TargetCount
		}

		report.Rows = append(report.Rows, row)
	}

	return report
}

// Run performs the whole migration: source check, confirmation, every
// collection in order, then the report. Errors returned by Run abort the run
// before the report is printed.
func (m *Migrator) Run(ctx context.Context) (*models.RunResult, error) {
	res := &models.RunResult{
		SourceDB:  m.params.SourceDB,
		TargetDB:  m.params.TargetDB,
		StartedAt: m.now(),
	}

	if err := m.CheckSource(ctx); err != nil {
		return nil, err
	}

	if err := m.ConfirmStart(ctx); err != nil {
		return nil, err
	}

	m.l.Info("Starting migration",
		zap.String("source_db", m.params.SourceDB),
		zap.String("target_db", m.params.TargetDB),
		zap.Int("collections", len(m.params.Collections)),
	)

	for _, name := range m.params.Collections {
		m.l.Info("Processing collection", zap.String("collection", name))

		outcome := m.MigrateCollection(ctx, name)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch {
		case !outcome.Success():
			m.l.Error("Failed to migrate collection", zap.String("collection", name))
		case outcome.Status == models.StatusDeclined:
			// the operator asked to leave the target alone
		case m.params.CopyIndexes:
			outcome.IndexesCopied = m.CopyIndexes(ctx, name)
		}

		res.Outcomes = append(res.Outcomes, outcome)
	}

	res.Report = m.GenerateReport(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.PrintReport(res.Report)
	m.PrintSummary(res)

	res.FinishedAt = m.now()
	return res, nil
}
