package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mouradhm/mongo-migrate/pkg/config"
	"github.com/mouradhm/mongo-migrate/pkg/confirm"
)

var (
	// Global flags
	configPath  string
	uri         string
	sourceDB    string
	targetDB    string
	collections []string
	batchSize   int
	noIndexes   bool
	journalPath string
	assumeYes   bool
	assumeNo    bool
	verbose     bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mongomigrate",
	Short: "Copy a fixed list of MongoDB collections from one database to another",
	Long: `mongomigrate performs a one-time bulk copy of named collections from a
source database to a target database on the same MongoDB deployment.

Every collection is copied in batches, its secondary indexes are recreated,
and document counts are verified. A report comparing both databases is
printed at the end.

The connection URI is never stored in the binary. Pass it with --uri, the
MONGOMIGRATE_URI environment variable, or the uri key of a config file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logger, err = buildLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runMigrate,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	flags.StringVar(&uri, "uri", "", "MongoDB connection URI (or "+config.EnvURI+")")
	flags.StringVar(&sourceDB, "source-db", "", "Source database name (default \"test\")")
	flags.StringVar(&targetDB, "target-db", "", "Target database name (default \"khub_production\")")
	flags.StringSliceVar(&collections, "collections", nil, "Comma-separated, ordered list of collections to migrate")
	flags.IntVar(&batchSize, "batch-size", 0, "Number of documents copied per batch (default 1000)")
	flags.BoolVar(&noIndexes, "no-indexes", false, "Do not copy secondary indexes")
	flags.StringVar(&journalPath, "journal", "", "Path to a SQLite journal that records every run (or "+config.EnvJournal+")")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	migrateCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to every confirmation prompt")
	migrateCmd.Flags().BoolVar(&assumeNo, "assume-no", false, "Answer no to every confirmation prompt")
	rootCmd.Flags().AddFlagSet(migrateCmd.Flags())

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")

	rootCmd.AddCommand(migrateCmd, reportCmd, historyCmd)
}

// loadConfig merges the config file, the environment and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	changed := func(name string) bool {
		f := cmd.Flag(name)
		return f != nil && f.Changed
	}

	if changed("uri") {
		cfg.URI = uri
	}
	if changed("source-db") {
		cfg.SourceDB = sourceDB
	}
	if changed("target-db") {
		cfg.TargetDB = targetDB
	}
	if changed("collections") {
		cfg.Collections = collections
	}
	if changed("batch-size") {
		cfg.BatchSize = batchSize
	}
	if changed("no-indexes") {
		cfg.CopyIndexes = !noIndexes
	}
	if changed("journal") {
		cfg.JournalPath = journalPath
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

// buildLogger creates the process logger on stderr.
func buildLogger(c config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.DisableStacktrace = true

	if c.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}

	switch c.Format {
	case "", "console":
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zc.Encoding = "json"
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}

	return zc.Build()
}

// newConfirmer picks the confirmation strategy for the flags given.
func newConfirmer(cmd *cobra.Command) (confirm.Confirmer, error) {
	switch {
	case assumeYes && assumeNo:
		return nil, errors.New("--yes and --assume-no are mutually exclusive")
	case assumeYes:
		return confirm.Static{Answer: true}, nil
	case assumeNo:
		return confirm.Static{Answer: false}, nil
	default:
		return confirm.NewPrompt(cmd.InOrStdin(), cmd.OutOrStdout()), nil
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nMigration cancelled by user")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
