// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

/*
database_schema.go - Database Schema Management

Tables:
  - companies: tenants and their API keys
  - scenarios: upstream campaigns, upserted every run
  - timeline: activity timeline events (write-once)
  - scenario_data: per-recipient outcomes (write-once)
  - settings: key/value configuration (ApiUrl, LastRun, LastGroup, BatchSize)
  - ingestion_errors: CSV rows that could not be parsed

DuckDB refuses ON CONFLICT DO UPDATE assignments to indexed columns, so the
scenarios table carries no secondary indexes; it is small and read by
company_id only during resume.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// createIndexes creates the natural-key unique indexes.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range indexQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}

	return nil
}

var tableCreationQueries = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		group_name TEXT,
		api_key TEXT NOT NULL,
		date_added TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		simple_id INTEGER,
		title TEXT,
		description TEXT,
		scenario_type TEXT,
		email_subject TEXT,
		date_started TIMESTAMP,
		date_finished TIMESTAMP,
		recipients TEXT,
		full_csv_url TEXT,
		notes TEXT,
		is_archive BOOLEAN,
		status TEXT,
		activity_timeline_url TEXT,
		company_id TEXT,
		fully_downloaded BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS timeline (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		event_time TIMESTAMP,
		action TEXT,
		tracking_id TEXT,
		recipient TEXT,
		recipient_group TEXT,
		remote_ip TEXT,
		form_username TEXT,
		form_password TEXT,
		country TEXT,
		city TEXT,
		isp TEXT,
		browser TEXT,
		user_agent_string TEXT,
		mobile BOOLEAN,
		email_client TEXT,
		in_user_agents_charts BOOLEAN
	)`,

	`CREATE TABLE IF NOT EXISTS scenario_data (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		email TEXT,
		recipient_name TEXT,
		recipient_group TEXT,
		department TEXT,
		location TEXT,
		opened_email BOOLEAN,
		opened_email_timestamp TIMESTAMP,
		clicked_link BOOLEAN,
		clicked_link_timestamp TIMESTAMP,
		submitted_form BOOLEAN,
		username TEXT,
		entered_password BOOLEAN,
		submitted_form_timestamp TIMESTAMP,
		reported_phish BOOLEAN,
		new_repeat_reporter TEXT,
		reported_phish_timestamp TIMESTAMP,
		time_to_report_seconds INTEGER,
		remote_ip TEXT,
		geoip_country TEXT,
		geoip_city TEXT,
		geoip_isp TEXT,
		last_dsn TEXT,
		last_email_status TEXT,
		last_email_status_timestamp TIMESTAMP,
		language TEXT,
		browser TEXT,
		user_agent TEXT,
		mobile BOOLEAN,
		seconds_spent_on_education_page INTEGER,
		submitted_data BOOLEAN,
		user_type TEXT,
		address_region TEXT,
		address2_type TEXT,
		address_street_address TEXT,
		title TEXT,
		phone_number3_value TEXT,
		phone_number2_value TEXT,
		phone_number4_type TEXT,
		preferred_language TEXT,
		address2_formatted TEXT,
		phone_number6_value TEXT,
		address_type TEXT,
		nick_name TEXT,
		address_country TEXT,
		phone_number4_value TEXT,
		address_formatted TEXT,
		phone_number2_type TEXT,
		phone_number3_type TEXT,
		address_locality TEXT,
		name_given_name TEXT,
		phone_number_type TEXT,
		display_name TEXT,
		phone_number6_type TEXT,
		manager_value TEXT,
		phone_number5_type TEXT,
		name_family_name TEXT,
		name_formatted TEXT,
		phone_number_value TEXT,
		phone_number5_value TEXT,
		address_postal_code TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS ingestion_errors (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		row_number INTEGER NOT NULL,
		message TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL
	)`,
}

var indexQueries = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_timeline_natural_key
		ON timeline (scenario_id, recipient, action, event_time)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_scenario_data_natural_key
		ON scenario_data (scenario_id, email, last_email_status_timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_ingestion_errors_scenario
		ON ingestion_errors (scenario_id)`,
}
