// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/models"
)

var (
	timelineInsert = `INSERT INTO timeline (` + strings.Join(TimelineColumns, ", ") +
		`) VALUES (` + placeholders(len(TimelineColumns)) + `)`

	scenarioDataInsert = `INSERT INTO scenario_data (` + strings.Join(ScenarioDataColumns, ", ") +
		`) VALUES (` + placeholders(len(ScenarioDataColumns)) + `)`
)

// TimelineKeys returns the natural keys already stored for a scenario.
func (db *DB) TimelineKeys(ctx context.Context, scenarioID string) (keys map[models.TimelineKey]struct{}, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { observe("SELECT", "timeline", start, err) }(time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT recipient, action, event_time FROM timeline WHERE scenario_id = ?`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline keys: %w", err)
	}
	defer rows.Close()

	keys = make(map[models.TimelineKey]struct{})
	for rows.Next() {
		var recipient, action sql.NullString
		var ts sql.NullTime
		if err := rows.Scan(&recipient, &action, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan timeline key: %w", err)
		}
		keys[models.TimelineKey{
			Recipient: recipient.String,
			Action:    action.String,
			Timestamp: NullTimeKey(ts),
		}] = struct{}{}
	}
	return keys, rows.Err()
}

// ScenarioDataKeys returns the natural keys already stored for a scenario.
func (db *DB) ScenarioDataKeys(ctx context.Context, scenarioID string) (keys map[models.ScenarioDataKey]struct{}, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { observe("SELECT", "scenario_data", start, err) }(time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT email, last_email_status_timestamp FROM scenario_data WHERE scenario_id = ?`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario data keys: %w", err)
	}
	defer rows.Close()

	keys = make(map[models.ScenarioDataKey]struct{})
	for rows.Next() {
		var email sql.NullString
		var ts sql.NullTime
		if err := rows.Scan(&email, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan scenario data key: %w", err)
		}
		keys[models.ScenarioDataKey{
			Email:                    email.String,
			LastEmailStatusTimestamp: NullTimeKey(ts),
		}] = struct{}{}
	}
	return keys, rows.Err()
}

// InsertTimelineBatch inserts entries in one transaction. Any failure rolls
// the whole batch back; a uniqueness violation wraps models.ErrDuplicateKey.
func (db *DB) InsertTimelineBatch(ctx context.Context, entries []models.TimelineEntry) (err error) {
	defer func(start time.Time) { observe("INSERT_BATCH", "timeline", start, err) }(time.Now())

	return db.insertBatch(ctx, "timeline", timelineInsert, len(entries), func(i int) []any {
		return TimelineArgs(&entries[i])
	})
}

// InsertTimelineEntry inserts a single entry.
func (db *DB) InsertTimelineEntry(ctx context.Context, e *models.TimelineEntry) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { observe("INSERT", "timeline", start, err) }(time.Now())

	if _, err = db.conn.ExecContext(ctx, timelineInsert, TimelineArgs(e)...); err != nil {
		return insertError("timeline", err)
	}
	return nil
}

// InsertScenarioDataBatch inserts rows in one transaction. Any failure rolls
// the whole batch back; a uniqueness violation wraps models.ErrDuplicateKey.
func (db *DB) InsertScenarioDataBatch(ctx context.Context, rows []models.ScenarioData) (err error) {
	defer func(start time.Time) { observe("INSERT_BATCH", "scenario_data", start, err) }(time.Now())

	return db.insertBatch(ctx, "scenario_data", scenarioDataInsert, len(rows), func(i int) []any {
		return ScenarioDataArgs(&rows[i])
	})
}

// InsertScenarioDataRow inserts a single row.
func (db *DB) InsertScenarioDataRow(ctx context.Context, d *models.ScenarioData) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { observe("INSERT", "scenario_data", start, err) }(time.Now())

	if _, err = db.conn.ExecContext(ctx, scenarioDataInsert, ScenarioDataArgs(d)...); err != nil {
		return insertError("scenario_data", err)
	}
	return nil
}

// insertBatch executes query once per row inside a single transaction
// with a prepared statement.
func (db *DB) insertBatch(ctx context.Context, table, query string, n int, args func(i int) []any) (err error) {
	if n == 0 {
		return nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollback(tx, err)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Failed to close prepared statement")
		}
	}()

	for i := 0; i < n; i++ {
		if _, err = stmt.ExecContext(ctx, args(i)...); err != nil {
			return insertError(table, err)
		}
	}

	if err = tx.Commit(); err != nil {
		// DuckDB checks some constraints at commit time.
		return insertError(table, err)
	}
	return nil
}

// RecordIngestionErrors stores malformed-row records.
func (db *DB) RecordIngestionErrors(ctx context.Context, records []models.IngestionError) (err error) {
	if len(records) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("INSERT_BATCH", "ingestion_errors", start, err) }(time.Now())

	return db.insertBatch(ctx, "ingestion_errors",
		`INSERT INTO ingestion_errors (id, scenario_id, kind, row_number, message, occurred_at) VALUES (?, ?, ?, ?, ?, ?)`,
		len(records), func(i int) []any {
			r := records[i]
			return []any{uuid.New().String(), r.ScenarioID, r.Kind, r.Row, r.Message, r.OccurredAt.UTC()}
		})
}

// ListIngestionErrors returns the recorded errors for a scenario in row order.
func (db *DB) ListIngestionErrors(ctx context.Context, scenarioID string) (records []models.IngestionError, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer func(start time.Time) { observe("SELECT", "ingestion_errors", start, err) }(time.Now())

	rows, err := db.conn.QueryContext(ctx,
		`SELECT scenario_id, kind, row_number, message, occurred_at FROM ingestion_errors
		 WHERE scenario_id = ? ORDER BY kind, row_number`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion errors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.IngestionError
		if err := rows.Scan(&r.ScenarioID, &r.Kind, &r.Row, &r.Message, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion error: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
