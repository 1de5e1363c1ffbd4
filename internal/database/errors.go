// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/models"
)

// closeQuietly closes a resource and explicitly ignores any error.
// Use this in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// DuckDB reports "Constraint Error: Duplicate key ..." for PRIMARY KEY and UNIQUE violations
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "unique constraint") || strings.Contains(errMsg, "duplicate key")
}

// insertError wraps an insert failure, tagging uniqueness violations with
// models.ErrDuplicateKey so callers can fall back to row-by-row inserts.
func insertError(table string, err error) error {
	if isUniqueConstraintError(err) {
		return fmt.Errorf("insert into %s: %w: %v", table, models.ErrDuplicateKey, err)
	}
	return fmt.Errorf("insert into %s: %w", table, err)
}

// rollback rolls tx back, logging a failure alongside the error that caused it.
func rollback(tx *sql.Tx, cause error) {
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		logging.Error().
			Err(rbErr).
			AnErr("original_error", cause).
			Msg("Transaction rollback failed")
	}
}
