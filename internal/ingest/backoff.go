// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package ingest

import (
	"context"
	"time"

	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/metrics"
	"github.com/tomtom215/phishsync/internal/phishapi"
)

// Defaults for Backoff.
const (
	DefaultMaxAttempts    = 3
	DefaultCooldownBuffer = 60 * time.Second
)

// Backoff decides what to do with throttled transport results: wait the
// advised time and retry, or give up and put the tenant in cooldown.
type Backoff struct {
	MaxAttempts    int
	CooldownBuffer time.Duration
	Clock          Clock
	Cooldowns      *Cooldowns
}

func (b *Backoff) maxAttempts() int {
	if b.MaxAttempts < 1 {
		return DefaultMaxAttempts
	}
	return b.MaxAttempts
}

// CallWithBackoff invokes fn until it returns Ok or Failed, or until the
// attempts are used up by throttled results. Failures are returned
// immediately. After the last throttled attempt the tenant is blocked for
// the advised wait plus the cooldown buffer and a *phishapi.ThrottledError
// is returned.
func CallWithBackoff[T any](ctx context.Context, b *Backoff, tenant string, fn func(context.Context) phishapi.Result[T]) (T, error) {
	var zero T
	maxAttempts := b.maxAttempts()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		res := fn(ctx)
		if !res.IsThrottled() {
			return res.Unwrap()
		}

		wait := res.Wait()
		if attempt >= maxAttempts {
			until := b.Clock.Now().Add(wait + b.CooldownBuffer)
			b.Cooldowns.Block(tenant, until)
			logging.Ctx(ctx).Warn().
				Int("attempts", attempt).
				Dur("wait", wait).
				Time("blocked_until", until).
				Msg("Throttling retries exhausted, tenant placed in cooldown")
			return zero, &phishapi.ThrottledError{Wait: wait}
		}

		logging.Ctx(ctx).Warn().
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("wait", wait).
			Msg("API token busy, waiting before retry")
		metrics.RecordThrottleWait(wait)
		if err := b.Clock.Sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}
