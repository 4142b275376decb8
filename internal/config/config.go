// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers dotenv, YAML file and environment on top.
// - Validation errors wrap ErrInvalidConfig so callers can errors.Is them.
package config

import (
	"runtime"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`
	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Storage selects the persistence backend: memory or sqlite.
	Storage string `koanf:"storage"`
	// SQLitePath is the database file used when Storage is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// QueueSize bounds the live board score-change queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of live board workers.
	WorkerCount int `koanf:"worker_count"`
	// IdempotencySize bounds the number of remembered transition keys.
	IdempotencySize int `koanf:"idempotency_size"`

	// ScoreMode is single (one note copied to all sub-scores) or average.
	ScoreMode string `koanf:"score_mode"`
	// TieBreak is shared (equal scores share a rank) or registration.
	TieBreak string `koanf:"tie_break"`
	// AllowManualStart lets operators start an event before its start date.
	AllowManualStart bool `koanf:"allow_manual_start"`
	// RequireCompleteToPublish refuses unforced publication until every judge scored everyone.
	RequireCompleteToPublish bool `koanf:"require_complete_to_publish"`
	// MaxLiveLimit caps GET /events/{id}/live?limit.
	MaxLiveLimit int `koanf:"max_live_limit"`

	// AuthSecret signs operator/judge bearer tokens; empty disables auth.
	AuthSecret string `koanf:"auth_secret"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "text",
		Addr:                     ":9080",
		Storage:                  StorageMemory,
		SQLitePath:               "palco.db",
		QueueSize:                10_000,
		WorkerCount:              runtime.NumCPU(),
		IdempotencySize:          10_000,
		ScoreMode:                "single",
		TieBreak:                 "shared",
		AllowManualStart:         true,
		RequireCompleteToPublish: true,
		MaxLiveLimit:             100,
	}
}
