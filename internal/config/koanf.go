// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/phishsync/config.yaml",
	"/etc/phishsync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:        DriverDuckDB,
			Path:          "/data/phishsync.duckdb",
			MaxMemory:     "1GB",
			Threads:       0,
			PostgresURL:   "",
			MaxConns:      4,
			ReadyAttempts: 12,
			ReadyInterval: 10 * time.Second,
		},
		API: APIConfig{
			Timeout:              30 * time.Second,
			RequestsPerSecond:    2,
			Burst:                1,
			PerPage:              0, // single request, as the upstream returns all scenarios by default
			BreakerMinRequests:   10,
			BreakerFailureRatio:  0.6,
			BreakerTimeout:       2 * time.Minute,
			BreakerResetInterval: time.Minute,
		},
		Ingest: IngestConfig{
			BatchSize:          100,
			MaxAttempts:        3,
			CooldownBuffer:     60 * time.Second,
			SelfThrottleMin:    2 * time.Second,
			SelfThrottlePerRow: time.Millisecond,
			ResumePending:      true,
			Interval:           0,
		},
		Server: ServerConfig{
			Enabled:          false,
			Host:             "127.0.0.1",
			Port:             9464,
			Timeout:          30 * time.Second,
			MetricsRateLimit: 120,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration from three layers:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// INGEST_BATCH_SIZE -> ingest.batch_size, DUCKDB_PATH -> database.path
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	"database_driver":         "database.driver",
	"duckdb_path":             "database.path",
	"duckdb_max_memory":       "database.max_memory",
	"duckdb_threads":          "database.threads",
	"postgres_url":            "database.postgres_url",
	"postgres_max_conns":      "database.max_conns",
	"database_ready_attempts": "database.ready_attempts",
	"database_ready_interval": "database.ready_interval",

	"api_timeout":                "api.timeout",
	"api_requests_per_second":    "api.requests_per_second",
	"api_burst":                  "api.burst",
	"api_per_page":               "api.per_page",
	"api_breaker_min_requests":   "api.breaker_min_requests",
	"api_breaker_failure_ratio":  "api.breaker_failure_ratio",
	"api_breaker_timeout":        "api.breaker_timeout",
	"api_breaker_reset_interval": "api.breaker_reset_interval",

	"ingest_batch_size":            "ingest.batch_size",
	"ingest_max_attempts":          "ingest.max_attempts",
	"ingest_cooldown_buffer":       "ingest.cooldown_buffer",
	"ingest_self_throttle_min":     "ingest.self_throttle_min",
	"ingest_self_throttle_per_row": "ingest.self_throttle_per_row",
	"ingest_resume_pending":        "ingest.resume_pending",
	"ingest_interval":              "ingest.interval",
	"seed_api_url":                 "ingest.seed_api_url",
	"seed_last_run":                "ingest.seed_last_run",

	"http_enabled":       "server.enabled",
	"http_host":          "server.host",
	"http_port":          "server.port",
	"http_timeout":       "server.timeout",
	"metrics_rate_limit": "server.metrics_rate_limit",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// It returns "" for variables that are not part of the configuration.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
