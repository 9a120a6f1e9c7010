// Package config loads the migration settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mouradhm/mongo-migrate/pkg/models"
)

// Environment variables read by applyEnvOverrides.
const (
	EnvURI      = "MONGOMIGRATE_URI"
	EnvSourceDB = "MONGOMIGRATE_SOURCE_DB"
	EnvTargetDB = "MONGOMIGRATE_TARGET_DB"
	EnvJournal  = "MONGOMIGRATE_JOURNAL"
)

// Config holds everything a run needs.
// The connection URI carries credentials and has no default.
type Config struct {
	URI            string        `yaml:"uri"`
	SourceDB       string        `yaml:"source_db"`
	TargetDB       string        `yaml:"target_db"`
	Collections    []string      `yaml:"collections"`
	BatchSize      int           `yaml:"batch_size"`
	CopyIndexes    bool          `yaml:"copy_indexes"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	JournalPath    string        `yaml:"journal_path"`
	Logging        LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Default returns the configuration used when nothing else is supplied.
func Default() *Config {
	return &Config{
		SourceDB:       "test",
		TargetDB:       "khub_production",
		Collections:    append([]string(nil), models.DefaultCollections...),
		BatchSize:      models.DefaultBatchSize,
		CopyIndexes:    true,
		ConnectTimeout: 10 * time.Second,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any)
// and then with environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides replaces file values with non-empty environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvURI); v != "" {
		c.URI = v
	}
	if v := os.Getenv(EnvSourceDB); v != "" {
		c.SourceDB = v
	}
	if v := os.Getenv(EnvTargetDB); v != "" {
		c.TargetDB = v
	}
	if v := os.Getenv(EnvJournal); v != "" {
		c.JournalPath = v
	}
}

// Validate checks the configuration for a migration run.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.URI) == "" {
		errs = append(errs, fmt.Errorf("connection URI is required (set --uri or %s)", EnvURI))
	}
	if c.SourceDB == "" || c.TargetDB == "" {
		errs = append(errs, errors.New("source and target databases are required"))
	} else if c.SourceDB == c.TargetDB {
		errs = append(errs, fmt.Errorf("source and target database are both %q", c.SourceDB))
	}
	if len(c.Collections) == 0 {
		errs = append(errs, errors.New("at least one collection is required"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}

	return errors.Join(errs...)
}

// Params returns the migration parameters described by c.
func (c *Config) Params() models.MigrationParams {
	return models.MigrationParams{
		SourceDB:    c.SourceDB,
		TargetDB:    c.TargetDB,
		Collections: append([]string(nil), c.Collections...),
		BatchSize:   c.BatchSize,
		CopyIndexes: c.CopyIndexes,
	}
}

// RedactedURI returns the URI with any password replaced, for display.
func (c *Config) RedactedURI() string {
	return redactURI(c.URI)
}

func redactURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}

	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return uri
	}

	creds := rest[:at]
	user, _, hasPassword := strings.Cut(creds, ":")
	if !hasPassword {
		return uri
	}

	return scheme + "://" + user + ":xxxxx" + rest[at:]
}
