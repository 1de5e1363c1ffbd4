// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

// Package config loads PhishSync configuration from built-in defaults, an
// optional YAML file and environment variables, in that order of precedence.
//
// Upstream API base URL and the incremental cursor are not configuration in
// the usual sense: they live in the settings table of the record store and
// are only seeded from here when the table does not have them yet.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	API        APIConfig        `koanf:"api"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Tenants    []TenantConfig   `koanf:"tenants"`
	Server     ServerConfig     `koanf:"server"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// Supported record store drivers.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

// DatabaseConfig selects and tunes the record store.
type DatabaseConfig struct {
	Driver    string `koanf:"driver"` // duckdb (default) or postgres
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()

	PostgresURL string `koanf:"postgres_url"`
	MaxConns    int32  `koanf:"max_conns"`

	// ReadyAttempts and ReadyInterval bound the startup wait for the store.
	ReadyAttempts int           `koanf:"ready_attempts"`
	ReadyInterval time.Duration `koanf:"ready_interval"`
}

// APIConfig tunes the upstream transport.
type APIConfig struct {
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`

	// PerPage enables paginated scenario discovery when > 0.
	PerPage int `koanf:"per_page"`

	BreakerMinRequests   uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio  float64       `koanf:"breaker_failure_ratio"`
	BreakerTimeout       time.Duration `koanf:"breaker_timeout"`
	BreakerResetInterval time.Duration `koanf:"breaker_reset_interval"`
}

// IngestConfig controls the ingestion pipeline.
type IngestConfig struct {
	BatchSize      int           `koanf:"batch_size"`
	MaxAttempts    int           `koanf:"max_attempts"`
	CooldownBuffer time.Duration `koanf:"cooldown_buffer"`

	// Full-data downloads are followed by a pause of
	// max(SelfThrottleMin, rows*SelfThrottlePerRow).
	SelfThrottleMin    time.Duration `koanf:"self_throttle_min"`
	SelfThrottlePerRow time.Duration `koanf:"self_throttle_per_row"`

	ResumePending bool `koanf:"resume_pending"`

	// Interval between passes in daemon mode. Zero runs a single pass and exits.
	Interval time.Duration `koanf:"interval"`

	SeedAPIURL  string `koanf:"seed_api_url"`
	SeedLastRun string `koanf:"seed_last_run"`
}

// TenantConfig seeds one company into the record store.
type TenantConfig struct {
	Name      string `koanf:"name" validate:"required,max=255"`
	GroupName string `koanf:"group_name" validate:"max=255"`
	APIKey    string `koanf:"api_key" validate:"required"`
}

// ServerConfig holds the optional operator HTTP surface used in daemon mode.
type ServerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Host             string        `koanf:"host"`
	Port             int           `koanf:"port"`
	Timeout          time.Duration `koanf:"timeout"`
	MetricsRateLimit int           `koanf:"metrics_rate_limit"` // requests per minute per IP, 0 disables
}

// SupervisorConfig mirrors the suture failure parameters.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	Caller bool `koanf:"caller"`
}

// Daemon reports whether the process should keep running passes on an interval.
func (c *Config) Daemon() bool {
	return c.Ingest.Interval > 0
}
