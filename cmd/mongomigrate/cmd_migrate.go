package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mouradhm/mongo-migrate/pkg/activities"
	"github.com/mouradhm/mongo-migrate/pkg/config"
	"github.com/mouradhm/mongo-migrate/pkg/journal"
	"github.com/mouradhm/mongo-migrate/pkg/migrator"
	"github.com/mouradhm/mongo-migrate/pkg/models"
)

// migrateCmd runs the migration
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every configured collection from the source to the target database",
	Long: `Connects to MongoDB, checks that the source database exists, asks for
confirmation and then copies each configured collection in order.

A collection whose target already holds documents is only overwritten after
a second confirmation. Use --yes for unattended runs.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	confirmer, err := newConfirmer(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "MongoDB Data Migration Tool")
	fmt.Fprintf(out, "Source Database: %s\n", cfg.SourceDB)
	fmt.Fprintf(out, "Target Database: %s\n", cfg.TargetDB)
	fmt.Fprintf(out, "MongoDB URI: %s\n\n", cfg.RedactedURI())

	ctx := cmd.Context()

	store, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(ctx, store)

	m := migrator.New(&migrator.NewParams{
		Store:     store,
		Params:    cfg.Params(),
		Confirmer: confirmer,
		Out:       out,
		L:         logger.Named("migrator"),
	})

	res, err := m.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.JournalPath != "" {
		recordRun(ctx, cfg.JournalPath, res)
	}

	return nil
}

func connect(ctx context.Context, cfg *config.Config) (*activities.MongoStore, error) {
	store, err := activities.Connect(ctx, cfg.URI, cfg.ConnectTimeout, logger.Named("mongo"))
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return store, nil
}

func closeStore(ctx context.Context, store *activities.MongoStore) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := store.Close(ctx); err != nil {
		logger.Warn("Error disconnecting from MongoDB", zap.Error(err))
	}
}

// recordRun appends res to the journal. Journal errors never fail a run.
func recordRun(ctx context.Context, path string, res *models.RunResult) {
	j, err := journal.Open(ctx, path, logger.Named("journal"))
	if err != nil {
		logger.Warn("Could not open journal", zap.String("path", path), zap.Error(err))
		return
	}
	defer j.Close()

	if _, err := j.Record(ctx, res); err != nil {
		logger.Warn("Could not record run", zap.String("path", path), zap.Error(err))
	}
}
