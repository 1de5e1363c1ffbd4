// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package phishapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/phishsync/internal/config"
	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/metrics"
	"github.com/tomtom215/phishsync/internal/models"
)

// Breaker is a circuit breaker for the upstream host. One Breaker is
// shared by the clients of every tenant, since they all hit the same host.
//
// Only failures that say something about the host count against it:
// network errors and 5xx responses. A 4xx (a revoked key, an expired
// locator), a non-CSV body or an undecodable body belongs to one tenant or
// one scenario and must not shut out the tenants after it. Throttled
// results are successes: the host is healthy, it is asking us to slow
// down. Context cancellation is not counted either way.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewBreaker creates a breaker that opens once at least
// cfg.BreakerMinRequests requests were seen in the current interval and
// the failure ratio reaches cfg.BreakerFailureRatio.
func NewBreaker(name string, cfg *config.APIConfig) *Breaker {
	minRequests := cfg.BreakerMinRequests
	ratio := cfg.BreakerFailureRatio

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    cfg.BreakerResetInterval,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= ratio
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Breaker{cb: cb, name: name}
}

// State returns the current breaker state as a string.
func (b *Breaker) State() string {
	return stateToString(b.cb.State())
}

// Wrap returns c guarded by the breaker.
func (b *Breaker) Wrap(c *Client) *BreakerClient {
	return &BreakerClient{client: c, breaker: b}
}

// BreakerClient is a Client behind a Breaker.
type BreakerClient struct {
	client  *Client
	breaker *Breaker
}

// ListScenarios calls Client.ListScenarios through the breaker.
func (bc *BreakerClient) ListScenarios(ctx context.Context, params *Params) Result[[]models.Scenario] {
	return guard(bc.breaker, func() Result[[]models.Scenario] {
		return bc.client.ListScenarios(ctx, params)
	})
}

// FetchCSV calls Client.FetchCSV through the breaker.
func (bc *BreakerClient) FetchCSV(ctx context.Context, locator string, params *Params) Result[string] {
	return guard(bc.breaker, func() Result[string] {
		return bc.client.FetchCSV(ctx, locator, params)
	})
}

// guard runs fn under the breaker. Failed results that are not host
// failures pass through without touching the breaker counts.
func guard[T any](b *Breaker, fn func() Result[T]) Result[T] {
	var res Result[T]
	_, err := b.cb.Execute(func() (any, error) {
		res = fn()
		if res.Outcome() == OutcomeFailed && hostFailure(res.Err()) {
			return nil, res.Err()
		}
		return nil, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Err(err).Str("breaker", b.name).Msg("[CIRCUIT BREAKER] Request rejected")
			return Failed[T](fmt.Errorf("circuit breaker %s: %w", b.name, err))
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		counts := b.cb.Counts()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(counts.ConsecutiveFailures))
		return res
	}

	if res.Outcome() == OutcomeFailed {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "ignored").Inc()
		return res
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return res
}

// hostFailure reports whether err reflects the health of the upstream host.
func hostFailure(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError
	}
	return errors.Is(err, ErrTransport)
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
