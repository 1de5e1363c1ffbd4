// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/phishsync/internal/models"
)

var (
	scenarioSelect = `SELECT ` + strings.Join(ScenarioColumns, ", ") + ` FROM scenarios`

	scenarioUpsert = func() string {
		updates := make([]string, 0, len(ScenarioColumns))
		for _, col := range ScenarioColumns[1:] {
			updates = append(updates, col+" = EXCLUDED."+col)
		}
		updates = append(updates, "updated_at = EXCLUDED.updated_at")
		return `INSERT INTO scenarios (` + strings.Join(ScenarioColumns, ", ") + `, updated_at)
			VALUES (` + placeholders(len(ScenarioColumns)+1) + `)
			ON CONFLICT (id) DO UPDATE SET ` + strings.Join(updates, ", ")
	}()
)

// GetScenario returns the stored scenario, or nil when it does not exist.
func (db *DB) GetScenario(ctx context.Context, id string) (_ *models.Scenario, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { observe("SELECT", "scenarios", start, err) }(time.Now())

	var row ScenarioRow
	err = db.conn.QueryRowContext(ctx, scenarioSelect+` WHERE id = ?`, id).Scan(row.Dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario %s: %w", id, err)
	}

	s := row.Value()
	return &s, nil
}

// UpsertScenario inserts or fully replaces a scenario row.
func (db *DB) UpsertScenario(ctx context.Context, s *models.Scenario) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { observe("UPSERT", "scenarios", start, err) }(time.Now())

	args := append(ScenarioArgs(s), time.Now().UTC())
	if _, err = db.conn.ExecContext(ctx, scenarioUpsert, args...); err != nil {
		return fmt.Errorf("failed to upsert scenario %s: %w", s.ID, err)
	}
	return nil
}

// FindScenarios returns scenarios matching filter, oldest start first.
func (db *DB) FindScenarios(ctx context.Context, filter models.ScenarioFilter) (scenarios []models.Scenario, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { observe("SELECT", "scenarios", start, err) }(time.Now())

	var conditions []string
	var args []any
	if filter.CompanyID != "" {
		conditions = append(conditions, "company_id = ?")
		args = append(args, filter.CompanyID)
	}
	if filter.FullyDownloaded != nil {
		conditions = append(conditions, "fully_downloaded = ?")
		args = append(args, *filter.FullyDownloaded)
	}
	if filter.StartedAfter != nil {
		conditions = append(conditions, "date_started > ?")
		args = append(args, filter.StartedAfter.UTC())
	}

	query := scenarioSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date_started NULLS LAST, id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find scenarios: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row ScenarioRow
		if err := rows.Scan(row.Dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		scenarios = append(scenarios, row.Value())
	}
	return scenarios, rows.Err()
}
