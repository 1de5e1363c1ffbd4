// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/phishsync/internal/phishapi"
)

func newTestBackoff(clock *fakeClock) *Backoff {
	return &Backoff{
		MaxAttempts:    3,
		CooldownBuffer: DefaultCooldownBuffer,
		Clock:          clock,
		Cooldowns:      NewCooldowns(clock),
	}
}

// sequence returns fn results in order, repeating the last.
func sequence[T any](results ...phishapi.Result[T]) (func(context.Context) phishapi.Result[T], *int) {
	calls := 0
	return func(context.Context) phishapi.Result[T] {
		i := min(calls, len(results)-1)
		calls++
		return results[i]
	}, &calls
}

func TestCallWithBackoff(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := []struct {
		name       string
		results    []phishapi.Result[string]
		wantValue  string
		wantErr    error
		wantCalls  int
		wantSleeps []time.Duration
	}{
		{
			name:      "ok first try",
			results:   []phishapi.Result[string]{phishapi.Ok("csv")},
			wantValue: "csv",
			wantCalls: 1,
		},
		{
			name:      "failure is not retried",
			results:   []phishapi.Result[string]{phishapi.Failed[string](errBoom)},
			wantErr:   errBoom,
			wantCalls: 1,
		},
		{
			name: "throttled then ok",
			results: []phishapi.Result[string]{
				phishapi.Throttled[string](7 * time.Second),
				phishapi.Throttled[string](2 * time.Second),
				phishapi.Ok("csv"),
			},
			wantValue:  "csv",
			wantCalls:  3,
			wantSleeps: []time.Duration{7 * time.Second, 2 * time.Second},
		},
		{
			name: "throttled then failed",
			results: []phishapi.Result[string]{
				phishapi.Throttled[string](time.Second),
				phishapi.Failed[string](errBoom),
			},
			wantErr:    errBoom,
			wantCalls:  2,
			wantSleeps: []time.Duration{time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			clock := newFakeClock()
			b := newTestBackoff(clock)
			fn, calls := sequence(tt.results...)

			got, err := CallWithBackoff(context.Background(), b, "Acme", fn)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.wantValue {
				t.Errorf("value = %q, want %q", got, tt.wantValue)
			}
			if *calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", *calls, tt.wantCalls)
			}
			sleeps := clock.Sleeps()
			if len(sleeps) != len(tt.wantSleeps) {
				t.Fatalf("sleeps = %v, want %v", sleeps, tt.wantSleeps)
			}
			for i := range sleeps {
				if sleeps[i] != tt.wantSleeps[i] {
					t.Errorf("sleep[%d] = %v, want %v", i, sleeps[i], tt.wantSleeps[i])
				}
			}
			if b.Cooldowns.Len() != 0 {
				t.Error("no cooldown expected")
			}
		})
	}
}

func TestCallWithBackoff_ExhaustedBlocksTenant(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := newTestBackoff(clock)
	fn, calls := sequence(
		phishapi.Throttled[string](5*time.Second),
		phishapi.Throttled[string](5*time.Second),
		phishapi.Throttled[string](42*time.Second),
	)

	_, err := CallWithBackoff(context.Background(), b, "Acme", fn)

	var throttled *phishapi.ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected *ThrottledError, got %v", err)
	}
	if throttled.Wait != 42*time.Second {
		t.Errorf("Wait = %v, want 42s", throttled.Wait)
	}
	if *calls != 3 {
		t.Errorf("calls = %d, want 3", *calls)
	}

	// Two retry sleeps of 5s happened before the final call.
	callTime := testEpoch.Add(10 * time.Second)
	until, ok := b.Cooldowns.Until("Acme")
	if !ok {
		t.Fatal("tenant should be in cooldown")
	}
	if want := callTime.Add(42*time.Second + 60*time.Second); !until.Equal(want) {
		t.Errorf("cooldown until = %v, want %v", until, want)
	}
}

func TestCallWithBackoff_SingleAttempt(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	b := newTestBackoff(clock)
	b.MaxAttempts = 1
	fn, calls := sequence(phishapi.Throttled[int](3 * time.Second))

	if _, err := CallWithBackoff(context.Background(), b, "Acme", fn); err == nil {
		t.Fatal("expected throttled error")
	}
	if *calls != 1 || len(clock.Sleeps()) != 0 {
		t.Errorf("calls = %d, sleeps = %v; want 1 call and no sleep", *calls, clock.Sleeps())
	}
}

func TestCallWithBackoff_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn, calls := sequence(phishapi.Ok("csv"))
	if _, err := CallWithBackoff(ctx, newTestBackoff(newFakeClock()), "Acme", fn); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if *calls != 0 {
		t.Errorf("calls = %d, want 0", *calls)
	}
}
