// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

// Package postgres implements the record store on PostgreSQL 15 or newer
// using a pgx connection pool. It shares column lists and row mapping with
// the DuckDB store in the parent package.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/phishsync/internal/config"
	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/metrics"
)

// schemaSQL is applied on every start; every statement is idempotent.
//
//go:embed schema.sql
var schemaSQL string

// Store is the PostgreSQL record store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates the connection pool. It does not contact the server; call
// database.WaitReady and then EnsureSchema.
func New(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	logging.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Str("database", poolCfg.ConnConfig.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Msg("PostgreSQL pool created")

	return &Store{pool: pool}, nil
}

// EnsureSchema applies the embedded schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close shuts down the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// RecordCounts returns row counts for the ingested tables.
func (s *Store) RecordCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 5)
	for _, table := range []string{"companies", "scenarios", "timeline", "scenario_data", "ingestion_errors"} {
		var n int64
		if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

func observe(operation, table string, start time.Time, err error) {
	metrics.RecordDBQuery(operation, table, time.Since(start), err)
}

// placeholders returns "$start, $start+1, ..." for n parameters.
func placeholders(n, start int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(start + i))
	}
	return b.String()
}
