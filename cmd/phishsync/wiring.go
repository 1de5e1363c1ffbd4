// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/phishsync/internal/api"
	"github.com/tomtom215/phishsync/internal/config"
	"github.com/tomtom215/phishsync/internal/database"
	"github.com/tomtom215/phishsync/internal/database/postgres"
	"github.com/tomtom215/phishsync/internal/ingest"
	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/phishapi"
)

var (
	_ backingStore = (*database.DB)(nil)
	_ backingStore = (*postgres.Store)(nil)
)

// backingStore is what main needs from either record store.
type backingStore interface {
	ingest.Store
	ingest.Seeder
	api.RecordStats
	Ping(ctx context.Context) error
	Close() error
}

// openStore opens the configured record store and waits for it to answer.
func openStore(ctx context.Context, cfg *config.DatabaseConfig) (backingStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := database.WaitReady(ctx, store, cfg.ReadyAttempts, cfg.ReadyInterval); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("postgres not ready: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply postgres schema: %w", err)
		}
		logging.Info().Msg("PostgreSQL record store ready")
		return store, nil

	case config.DriverDuckDB, "":
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("open duckdb: %w", err)
		}
		logging.Info().Str("path", cfg.Path).Msg("DuckDB record store ready")
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// newAPIFactory shares one rate limiter and one circuit breaker across all
// tenants, since they all talk to the same upstream host.
func newAPIFactory(cfg *config.APIConfig, breaker *phishapi.Breaker) ingest.APIFactory {
	limiter := phishapi.NewLimiter(cfg)
	return func(baseURL, apiKey string) ingest.API {
		return breaker.Wrap(phishapi.NewClient(baseURL, apiKey, cfg, phishapi.WithLimiter(limiter)))
	}
}
