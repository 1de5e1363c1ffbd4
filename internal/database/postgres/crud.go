// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/phishsync/internal/database"
	"github.com/tomtom215/phishsync/internal/models"
)

var (
	scenarioSelect = `SELECT ` + strings.Join(database.ScenarioColumns, ", ") + ` FROM scenarios`

	scenarioUpsert = func() string {
		updates := make([]string, 0, len(database.ScenarioColumns))
		for _, col := range database.ScenarioColumns[1:] {
			updates = append(updates, col+" = EXCLUDED."+col)
		}
		updates = append(updates, "updated_at = EXCLUDED.updated_at")
		return `INSERT INTO scenarios (` + strings.Join(database.ScenarioColumns, ", ") + `, updated_at)
			VALUES (` + placeholders(len(database.ScenarioColumns)+1, 1) + `)
			ON CONFLICT (id) DO UPDATE SET ` + strings.Join(updates, ", ")
	}()

	timelineInsert = `INSERT INTO timeline (` + strings.Join(database.TimelineColumns, ", ") + `)
		VALUES (` + placeholders(len(database.TimelineColumns), 1) + `)`

	scenarioDataInsert = `INSERT INTO scenario_data (` + strings.Join(database.ScenarioDataColumns, ", ") + `)
		VALUES (` + placeholders(len(database.ScenarioDataColumns), 1) + `)`

	ingestionErrorInsert = `INSERT INTO ingestion_errors (id, scenario_id, kind, row_number, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

// ListCompanies returns every tenant ordered by name, then id.
func (s *Store) ListCompanies(ctx context.Context) (companies []models.Company, err error) {
	defer func(start time.Time) { observe("SELECT", "companies", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(group_name, ''), api_key, date_added FROM companies ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.GroupName, &c.APIKey, &c.DateAdded); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		c.DateAdded = c.DateAdded.UTC()
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// EnsureCompany creates the tenant named c.Name, or refreshes its group and
// API key when it already exists.
func (s *Store) EnsureCompany(ctx context.Context, c *models.Company) (created bool, err error) {
	defer func(start time.Time) { observe("UPSERT", "companies", start, err) }(time.Now())

	var id string
	err = s.pool.QueryRow(ctx, `SELECT id FROM companies WHERE name = $1 ORDER BY id LIMIT 1`, c.Name).Scan(&id)
	switch {
	case err == nil:
		c.ID = id
		if _, err = s.pool.Exec(ctx,
			`UPDATE companies SET group_name = $1, api_key = $2 WHERE id = $3`,
			c.GroupName, c.APIKey, id); err != nil {
			return false, fmt.Errorf("failed to update company %s: %w", c.Name, err)
		}
		return false, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return false, fmt.Errorf("failed to look up company %s: %w", c.Name, err)
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.DateAdded.IsZero() {
		c.DateAdded = time.Now().UTC()
	}
	if _, err = s.pool.Exec(ctx,
		`INSERT INTO companies (id, name, group_name, api_key, date_added) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.GroupName, c.APIKey, c.DateAdded); err != nil {
		return false, fmt.Errorf("failed to insert company %s: %w", c.Name, err)
	}
	return true, nil
}

// GetScenario returns the stored scenario, or nil when it does not exist.
func (s *Store) GetScenario(ctx context.Context, id string) (_ *models.Scenario, err error) {
	defer func(start time.Time) { observe("SELECT", "scenarios", start, err) }(time.Now())

	var row database.ScenarioRow
	err = s.pool.QueryRow(ctx, scenarioSelect+` WHERE id = $1`, id).Scan(row.Dest()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario %s: %w", id, err)
	}
	sc := row.Value()
	return &sc, nil
}

// UpsertScenario inserts or fully replaces a scenario row.
func (s *Store) UpsertScenario(ctx context.Context, sc *models.Scenario) (err error) {
	defer func(start time.Time) { observe("UPSERT", "scenarios", start, err) }(time.Now())

	args := append(database.ScenarioArgs(sc), time.Now().UTC())
	if _, err = s.pool.Exec(ctx, scenarioUpsert, args...); err != nil {
		return fmt.Errorf("failed to upsert scenario %s: %w", sc.ID, err)
	}
	return nil
}

// FindScenarios returns scenarios matching filter, oldest start first.
func (s *Store) FindScenarios(ctx context.Context, filter models.ScenarioFilter) (scenarios []models.Scenario, err error) {
	defer func(start time.Time) { observe("SELECT", "scenarios", start, err) }(time.Now())

	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, cond+" $"+strconv.Itoa(len(args)))
	}
	if filter.CompanyID != "" {
		add("company_id =", filter.CompanyID)
	}
	if filter.FullyDownloaded != nil {
		add("fully_downloaded =", *filter.FullyDownloaded)
	}
	if filter.StartedAfter != nil {
		add("date_started >", filter.StartedAfter.UTC())
	}

	query := scenarioSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date_started NULLS LAST, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find scenarios: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row database.ScenarioRow
		if err := rows.Scan(row.Dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		scenarios = append(scenarios, row.Value())
	}
	return scenarios, rows.Err()
}

// GetSetting returns the value stored under key.
func (s *Store) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	defer func(start time.Time) { observe("SELECT", "settings", start, err) }(time.Now())

	err = s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores value under key.
func (s *Store) SetSetting(ctx context.Context, key, value string) (err error) {
	defer func(start time.Time) { observe("UPSERT", "settings", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}
