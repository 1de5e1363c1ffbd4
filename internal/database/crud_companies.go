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
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/phishsync/internal/models"
)

// ListCompanies returns every tenant ordered by name, then id.
func (db *DB) ListCompanies(ctx context.Context) (companies []models.Company, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { observe("SELECT", "companies", start, err) }(time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, group_name, api_key, date_added FROM companies ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Company
		var group sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &group, &c.APIKey, &c.DateAdded); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		c.GroupName = group.String
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// EnsureCompany creates the tenant named c.Name, or refreshes its group and
// API key when it already exists. It reports whether a row was created.
func (db *DB) EnsureCompany(ctx context.Context, c *models.Company) (created bool, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { observe("UPSERT", "companies", start, err) }(time.Now())

	var id string
	err = db.conn.QueryRowContext(ctx, `SELECT id FROM companies WHERE name = ? ORDER BY id LIMIT 1`, c.Name).Scan(&id)
	switch {
	case err == nil:
		c.ID = id
		_, err = db.conn.ExecContext(ctx,
			`UPDATE companies SET group_name = ?, api_key = ? WHERE id = ?`,
			c.GroupName, c.APIKey, id)
		if err != nil {
			return false, fmt.Errorf("failed to update company %s: %w", c.Name, err)
		}
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("failed to look up company %s: %w", c.Name, err)
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.DateAdded.IsZero() {
		c.DateAdded = time.Now().UTC()
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO companies (id, name, group_name, api_key, date_added) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.GroupName, c.APIKey, c.DateAdded)
	if err != nil {
		return false, fmt.Errorf("failed to insert company %s: %w", c.Name, err)
	}
	return true, nil
}
