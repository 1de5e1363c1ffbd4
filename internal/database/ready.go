// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/phishsync/internal/logging"
)

// Pinger is satisfied by both record stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitReady pings p up to attempts times, sleeping interval between
// failures. It returns the last ping error once attempts are exhausted.
func WaitReady(ctx context.Context, p Pinger, attempts int, interval time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		lastErr = p.Ping(pingCtx)
		cancel()
		if lastErr == nil {
			if attempt > 1 {
				logging.Info().Int("attempt", attempt).Msg("Record store is ready")
			}
			return nil
		}

		if attempt == attempts {
			break
		}

		logging.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("retry_in", interval).
			Msg("Record store not ready, retrying")

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return fmt.Errorf("waiting for record store: %w", ctx.Err())
		}
	}

	return fmt.Errorf("record store not ready after %d attempts: %w", attempts, lastErr)
}
