package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix      = "PALCO_"
	envConfigFile  = "PALCO_CONFIG"
	envDotenvFile  = "PALCO_ENV_FILE"
	defaultDotenv  = ".env"
	minWorkerCount = 1
)

// Load builds a Config by layering defaults, dotenv, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. dotenv file (PALCO_ENV_FILE, or ./.env when present); never overrides real env
//  3. YAML file if PALCO_CONFIG is set
//  4. env (prefix PALCO_)
func Load(_ context.Context) (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	base := New()
	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// PALCO_QUEUE_SIZE -> queue_size; underscores are kept to match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotenv() error {
	if path := os.Getenv(envDotenvFile); path != "" {
		return godotenv.Load(path)
	}
	if _, err := os.Stat(defaultDotenv); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(defaultDotenv)
}

// Validate checks values that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Storage != StorageMemory && c.Storage != StorageSQLite:
		return fmt.Errorf("%w: storage must be %q or %q, got %q", ErrInvalidConfig, StorageMemory, StorageSQLite, c.Storage)
	case c.Storage == StorageSQLite && strings.TrimSpace(c.SQLitePath) == "":
		return fmt.Errorf("%w: sqlite_path is required for sqlite storage", ErrInvalidConfig)
	case c.ScoreMode != "single" && c.ScoreMode != "average":
		return fmt.Errorf("%w: score_mode must be single or average, got %q", ErrInvalidConfig, c.ScoreMode)
	case c.TieBreak != "shared" && c.TieBreak != "registration":
		return fmt.Errorf("%w: tie_break must be shared or registration, got %q", ErrInvalidConfig, c.TieBreak)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < minWorkerCount:
		return fmt.Errorf("%w: worker_count must be at least %d", ErrInvalidConfig, minWorkerCount)
	case c.MaxLiveLimit < 1:
		return fmt.Errorf("%w: max_live_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
