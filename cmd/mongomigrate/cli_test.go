package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mouradhm/mongo-migrate/pkg/config"
	"github.com/mouradhm/mongo-migrate/pkg/confirm"
	"github.com/mouradhm/mongo-migrate/pkg/journal"
	"github.com/mouradhm/mongo-migrate/pkg/models"
)

// newTestCmd returns a command carrying the same flag set as rootCmd,
// bound to the package globals, with args parsed and output captured.
func newTestCmd(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()

	logger = zap.NewNop()
	for _, env := range []string{config.EnvURI, config.EnvSourceDB, config.EnvTargetDB, config.EnvJournal} {
		t.Setenv(env, "")
	}

	cmd := &cobra.Command{}
	flags := cmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "")
	flags.StringVar(&uri, "uri", "", "")
	flags.StringVar(&sourceDB, "source-db", "", "")
	flags.StringVar(&targetDB, "target-db", "", "")
	flags.StringSliceVar(&collections, "collections", nil, "")
	flags.IntVar(&batchSize, "batch-size", 0, "")
	flags.BoolVar(&noIndexes, "no-indexes", false, "")
	flags.StringVar(&journalPath, "journal", "", "")
	flags.BoolVarP(&verbose, "verbose", "v", false, "")
	flags.BoolVarP(&assumeYes, "yes", "y", false, "")
	flags.BoolVar(&assumeNo, "assume-no", false, "")
	flags.IntVarP(&historyLimit, "limit", "n", 10, "")
	require.NoError(t, cmd.ParseFlags(args))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetContext(context.Background())

	return cmd, &out
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd, _ := newTestCmd(t)

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source_db: from_file\nbatch_size: 50\n"), 0o600))

	cmd, _ := newTestCmd(t,
		"--config", path,
		"--uri", "mongodb://localhost:27017",
		"--target-db", "archive",
		"--collections", "users,tasks",
		"--no-indexes",
		"-v",
	)

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.URI)
	assert.Equal(t, "from_file", cfg.SourceDB)
	assert.Equal(t, "archive", cfg.TargetDB)
	assert.Equal(t, []string{"users", "tasks"}, cfg.Collections)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.False(t, cfg.CopyIndexes)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigFlagBeatsEnv(t *testing.T) {
	cmd, _ := newTestCmd(t, "--source-db", "flag_db")
	t.Setenv(config.EnvSourceDB, "env_db")
	t.Setenv(config.EnvTargetDB, "env_target")

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "flag_db", cfg.SourceDB)
	assert.Equal(t, "env_target", cfg.TargetDB)
}

func TestRunMigrateRequiresURI(t *testing.T) {
	cmd, out := newTestCmd(t, "--yes")

	err := runMigrate(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection URI is required")
	assert.Empty(t, out.String())
}

func TestRunReportValidates(t *testing.T) {
	cmd, _ := newTestCmd(t, "--uri", "mongodb://localhost", "--source-db", "same", "--target-db", "same")

	err := runReport(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `both "same"`)
}

func TestNewConfirmer(t *testing.T) {
	t.Run("Prompt", func(t *testing.T) {
		cmd, _ := newTestCmd(t)
		c, err := newConfirmer(cmd)
		require.NoError(t, err)
		assert.IsType(t, &confirm.Prompt{}, c)
	})

	t.Run("Yes", func(t *testing.T) {
		cmd, _ := newTestCmd(t, "--yes")
		c, err := newConfirmer(cmd)
		require.NoError(t, err)
		assert.Equal(t, confirm.Static{Answer: true}, c)
	})

	t.Run("No", func(t *testing.T) {
		cmd, _ := newTestCmd(t, "--assume-no")
		c, err := newConfirmer(cmd)
		require.NoError(t, err)
		assert.Equal(t, confirm.Static{Answer: false}, c)
	})

	t.Run("Both", func(t *testing.T) {
		cmd, _ := newTestCmd(t, "-y", "--assume-no")
		_, err := newConfirmer(cmd)
		assert.ErrorContains(t, err, "mutually exclusive")
	})
}

func TestBuildLogger(t *testing.T) {
	for _, c := range []config.LoggingConfig{
		{},
		{Level: "debug", Format: "console"},
		{Level: "warn", Format: "json"},
	} {
		l, err := buildLogger(c)
		require.NoError(t, err, "%+v", c)
		require.NotNil(t, l)
	}

	_, err := buildLogger(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = buildLogger(config.LoggingConfig{Format: "xml"})
	assert.ErrorContains(t, err, `unknown log format "xml"`)
}

func TestRunHistoryRequiresJournal(t *testing.T) {
	cmd, _ := newTestCmd(t)

	err := runHistory(cmd, nil)
	assert.ErrorContains(t, err, "no journal configured")
}

func TestRunHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	cmd, out := newTestCmd(t, "--limit", "5")
	t.Setenv(config.EnvJournal, path)

	ctx := context.Background()
	j, err := journal.Open(ctx, path, zap.NewNop())
	require.NoError(t, err)

	started := time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)
	_, err = j.Record(ctx, &models.RunResult{
		SourceDB:   "test",
		TargetDB:   "khub_production",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Outcomes: []models.CollectionOutcome{
			{CollectionName: "tasks", Status: models.StatusMigrated, SourceCount: 7, TargetCount: 7, DocumentsCount: 7},
			{CollectionName: "quizzes", Status: models.StatusFailed, SourceCount: 3, ErrorMessage: "insert failed"},
		},
		Report: models.Report{TotalSource: 10, TotalTarget: 7},
	})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	require.NoError(t, runHistory(cmd, nil))

	got := out.String()
	assert.Contains(t, got, "test -> khub_production  10/7  INCOMPLETE (42s)")
	assert.Contains(t, got, "tasks")
	assert.Contains(t, got, "migrated")
	assert.Contains(t, got, "quizzes")
	assert.Contains(t, got, "insert failed")
}

func TestPrintHistoryEmpty(t *testing.T) {
	var out bytes.Buffer
	printHistory(&out, nil)
	assert.Equal(t, "No runs recorded\n", out.String())
}
