// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/phishsync/internal/validation"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateAPI(); err != nil {
		return err
	}

	if err := c.validateIngest(); err != nil {
		return err
	}

	if err := c.validateTenants(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSupervisor(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverDuckDB:
		if c.Database.Path == "" {
			return fmt.Errorf("DUCKDB_PATH is required when DATABASE_DRIVER=duckdb")
		}
		if c.Database.Threads < 0 {
			return fmt.Errorf("DUCKDB_THREADS must be non-negative, got: %d", c.Database.Threads)
		}
	case DriverPostgres:
		if c.Database.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required when DATABASE_DRIVER=postgres")
		}
		if err := validatePostgresURL(c.Database.PostgresURL); err != nil {
			return fmt.Errorf("POSTGRES_URL is invalid: %w", err)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("POSTGRES_MAX_CONNS must be at least 1, got: %d", c.Database.MaxConns)
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be duckdb or postgres, got: %q", c.Database.Driver)
	}

	if c.Database.ReadyAttempts < 1 {
		return fmt.Errorf("DATABASE_READY_ATTEMPTS must be at least 1, got: %d", c.Database.ReadyAttempts)
	}
	if c.Database.ReadyInterval < 0 {
		return fmt.Errorf("DATABASE_READY_INTERVAL must be non-negative, got: %v", c.Database.ReadyInterval)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got: %v", c.API.Timeout)
	}
	if c.API.RequestsPerSecond <= 0 {
		return fmt.Errorf("API_REQUESTS_PER_SECOND must be positive, got: %v", c.API.RequestsPerSecond)
	}
	if c.API.Burst < 1 {
		return fmt.Errorf("API_BURST must be at least 1, got: %d", c.API.Burst)
	}
	if c.API.PerPage < 0 {
		return fmt.Errorf("API_PER_PAGE must be non-negative, got: %d", c.API.PerPage)
	}
	if c.API.BreakerFailureRatio <= 0 || c.API.BreakerFailureRatio > 1 {
		return fmt.Errorf("API_BREAKER_FAILURE_RATIO must be in (0, 1], got: %v", c.API.BreakerFailureRatio)
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be at least 1, got: %d", c.Ingest.BatchSize)
	}
	if c.Ingest.MaxAttempts < 1 {
		return fmt.Errorf("INGEST_MAX_ATTEMPTS must be at least 1, got: %d", c.Ingest.MaxAttempts)
	}
	if c.Ingest.CooldownBuffer < 0 {
		return fmt.Errorf("INGEST_COOLDOWN_BUFFER must be non-negative, got: %v", c.Ingest.CooldownBuffer)
	}
	if c.Ingest.SelfThrottleMin < 0 || c.Ingest.SelfThrottlePerRow < 0 {
		return fmt.Errorf("INGEST_SELF_THROTTLE_MIN and INGEST_SELF_THROTTLE_PER_ROW must be non-negative")
	}
	if c.Ingest.Interval < 0 {
		return fmt.Errorf("INGEST_INTERVAL must be non-negative, got: %v", c.Ingest.Interval)
	}
	if c.Ingest.SeedAPIURL != "" {
		if err := validateHTTPURL(c.Ingest.SeedAPIURL, "SEED_API_URL"); err != nil {
			return fmt.Errorf("SEED_API_URL is invalid: %w", err)
		}
	}
	if c.Ingest.SeedLastRun != "" {
		if err := validation.Var(c.Ingest.SeedLastRun, "cursor"); err != nil {
			return fmt.Errorf("SEED_LAST_RUN must be formatted as %s, got: %q", validation.CursorLayout, c.Ingest.SeedLastRun)
		}
	}
	return nil
}

func (c *Config) validateTenants() error {
	seen := make(map[string]struct{}, len(c.Tenants))
	for i := range c.Tenants {
		tenant := &c.Tenants[i]
		if verr := validation.ValidateStruct(tenant); verr != nil {
			return fmt.Errorf("tenants[%d]: %w", i, verr)
		}
		if _, dup := seen[tenant.Name]; dup {
			return fmt.Errorf("tenants[%d]: duplicate tenant name %q", i, tenant.Name)
		}
		seen[tenant.Name] = struct{}{}
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got: %v", c.Server.Timeout)
	}
	if c.Server.MetricsRateLimit < 0 {
		return fmt.Errorf("METRICS_RATE_LIMIT must be non-negative, got: %d", c.Server.MetricsRateLimit)
	}
	return nil
}

func (c *Config) validateSupervisor() error {
	if c.Supervisor.FailureThreshold <= 0 {
		return fmt.Errorf("SUPERVISOR_FAILURE_THRESHOLD must be positive, got: %v", c.Supervisor.FailureThreshold)
	}
	if c.Supervisor.FailureBackoff < 0 || c.Supervisor.ShutdownTimeout < 0 {
		return fmt.Errorf("SUPERVISOR_FAILURE_BACKOFF and SUPERVISOR_SHUTDOWN_TIMEOUT must be non-negative")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if !validLogLevels[level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error (got: %s)", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if !validLogFormats[format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console (got: %s)", c.Logging.Format)
	}
	return nil
}
