// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package phishapi

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotCSV is returned when a CSV locator answers with another media type.
	ErrNotCSV = errors.New("response is not text/csv")

	// ErrMalformedResponse wraps a 2xx body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrInvalidLocator wraps a request URL that cannot be built.
	ErrInvalidLocator = errors.New("invalid request URL")

	// ErrTransport wraps network and body-read failures talking to the host.
	ErrTransport = errors.New("upstream transport error")
)

// ThrottledError reports that the upstream asked the caller to back off.
type ThrottledError struct {
	Wait time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("upstream throttled, retry in %s", e.Wait)
}

// StatusError is a non-2xx response that is not a throttling signal.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d: %s", e.URL, e.Code, e.Body)
}

// Outcome classifies a transport call.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeThrottled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeThrottled:
		return "throttled"
	default:
		return "failed"
	}
}

// Result is the outcome of one transport call: a value, a throttling
// signal carrying the advised wait, or a failure.
type Result[T any] struct {
	outcome Outcome
	value   T
	wait    time.Duration
	err     error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{outcome: OutcomeOK, value: v}
}

// Throttled reports a throttling signal with the advised wait.
func Throttled[T any](wait time.Duration) Result[T] {
	return Result[T]{outcome: OutcomeThrottled, wait: wait}
}

// Failed wraps a non-throttling failure.
func Failed[T any](err error) Result[T] {
	return Result[T]{outcome: OutcomeFailed, err: err}
}

func (r Result[T]) Outcome() Outcome { return r.outcome }
func (r Result[T]) Value() T { return r.value }
func (r Result[T]) Wait() time.Duration { return r.wait }
func (r Result[T]) Err() error { return r.err }
func (r Result[T]) IsThrottled() bool { return r.outcome == OutcomeThrottled }

// Unwrap converts the result to the usual (value, error) pair. A throttled
// result becomes a *ThrottledError.
func (r Result[T]) Unwrap() (T, error) {
	switch r.outcome {
	case OutcomeOK:
		return r.value, nil
	case OutcomeThrottled:
		var zero T
		return zero, &ThrottledError{Wait: r.wait}
	default:
		var zero T
		return zero, r.err
	}
}
