// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/models"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// insertError wraps an insert failure, tagging uniqueness violations with
// models.ErrDuplicateKey.
func insertError(table string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("insert into %s: %w: %w", table, models.ErrDuplicateKey, err)
	}
	return fmt.Errorf("insert into %s: %w", table, err)
}

func rollback(ctx context.Context, tx pgx.Tx, cause error) {
	// The caller's ctx may already be cancelled.
	if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
		logging.Error().
			Err(rbErr).
			AnErr("original_error", cause).
			Msg("Transaction rollback failed")
	}
}
