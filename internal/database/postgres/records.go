// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/phishsync/internal/database"
	"github.com/tomtom215/phishsync/internal/models"
)

// TimelineKeys returns the natural keys of every stored timeline row for a scenario.
func (s *Store) TimelineKeys(ctx context.Context, scenarioID string) (keys map[models.TimelineKey]struct{}, err error) {
	defer func(start time.Time) { observe("SELECT", "timeline", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx,
		`SELECT recipient, action, event_time FROM timeline WHERE scenario_id = $1`, scenarioID)
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
			Timestamp: database.NullTimeKey(ts),
		}] = struct{}{}
	}
	return keys, rows.Err()
}

// ScenarioDataKeys returns the natural keys of every stored full-data row for a scenario.
func (s *Store) ScenarioDataKeys(ctx context.Context, scenarioID string) (keys map[models.ScenarioDataKey]struct{}, err error) {
	defer func(start time.Time) { observe("SELECT", "scenario_data", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx,
		`SELECT email, last_email_status_timestamp FROM scenario_data WHERE scenario_id = $1`, scenarioID)
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
			LastEmailStatusTimestamp: database.NullTimeKey(ts),
		}] = struct{}{}
	}
	return keys, rows.Err()
}

// InsertTimelineBatch inserts entries in one transaction.
func (s *Store) InsertTimelineBatch(ctx context.Context, entries []models.TimelineEntry) (err error) {
	defer func(start time.Time) { observe("INSERT_BATCH", "timeline", start, err) }(time.Now())

	return s.insertBatch(ctx, "timeline", timelineInsert, len(entries), func(i int) []any {
		return database.TimelineArgs(&entries[i])
	})
}

// InsertTimelineEntry inserts a single timeline row.
func (s *Store) InsertTimelineEntry(ctx context.Context, e *models.TimelineEntry) (err error) {
	defer func(start time.Time) { observe("INSERT", "timeline", start, err) }(time.Now())

	if _, err = s.pool.Exec(ctx, timelineInsert, database.TimelineArgs(e)...); err != nil {
		return insertError("timeline", err)
	}
	return nil
}

// InsertScenarioDataBatch inserts rows in one transaction.
func (s *Store) InsertScenarioDataBatch(ctx context.Context, rows []models.ScenarioData) (err error) {
	defer func(start time.Time) { observe("INSERT_BATCH", "scenario_data", start, err) }(time.Now())

	return s.insertBatch(ctx, "scenario_data", scenarioDataInsert, len(rows), func(i int) []any {
		return database.ScenarioDataArgs(&rows[i])
	})
}

// InsertScenarioDataRow inserts a single full-data row.
func (s *Store) InsertScenarioDataRow(ctx context.Context, d *models.ScenarioData) (err error) {
	defer func(start time.Time) { observe("INSERT", "scenario_data", start, err) }(time.Now())

	if _, err = s.pool.Exec(ctx, scenarioDataInsert, database.ScenarioDataArgs(d)...); err != nil {
		return insertError("scenario_data", err)
	}
	return nil
}

// insertBatch queues n inserts in a pgx.Batch inside a transaction. Any
// failure rolls back the whole batch.
func (s *Store) insertBatch(ctx context.Context, table, query string, n int, args func(i int) []any) (err error) {
	if n == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollback(ctx, tx, err)
		}
	}()

	batch := &pgx.Batch{}
	for i := 0; i < n; i++ {
		batch.Queue(query, args(i)...)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < n; i++ {
		if _, err = br.Exec(); err != nil {
			_ = br.Close()
			return insertError(table, err)
		}
	}
	if err = br.Close(); err != nil {
		return insertError(table, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s batch: %w", table, err)
	}
	return nil
}

// RecordIngestionErrors stores rejected CSV rows.
func (s *Store) RecordIngestionErrors(ctx context.Context, records []models.IngestionError) (err error) {
	defer func(start time.Time) { observe("INSERT_BATCH", "ingestion_errors", start, err) }(time.Now())

	return s.insertBatch(ctx, "ingestion_errors", ingestionErrorInsert, len(records), func(i int) []any {
		r := records[i]
		return []any{uuid.New().String(), r.ScenarioID, r.Kind, r.Row, r.Message, r.OccurredAt}
	})
}

// ListIngestionErrors returns the stored rejects for a scenario.
func (s *Store) ListIngestionErrors(ctx context.Context, scenarioID string) (records []models.IngestionError, err error) {
	defer func(start time.Time) { observe("SELECT", "ingestion_errors", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx,
		`SELECT scenario_id, kind, row_number, message, occurred_at FROM ingestion_errors
		 WHERE scenario_id = $1 ORDER BY kind, row_number`, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion errors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.IngestionError
		if err := rows.Scan(&r.ScenarioID, &r.Kind, &r.Row, &r.Message, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion error: %w", err)
		}
		r.OccurredAt = r.OccurredAt.UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}
