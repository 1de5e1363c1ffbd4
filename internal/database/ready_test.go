// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantErr   bool
		wantCalls int
	}{
		{"ready immediately", 0, 3, false, 1},
		{"ready after retries", 2, 3, false, 3},
		{"never ready", 5, 3, true, 3},
		{"zero attempts treated as one", 0, 0, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &flakyPinger{failures: tt.failures}
			err := WaitReady(context.Background(), p, tt.attempts, time.Millisecond)
			if (err != nil) != tt.wantErr {
				t.Fatalf("WaitReady() error = %v, wantErr %v", err, tt.wantErr)
			}
			if p.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", p.calls, tt.wantCalls)
			}
		})
	}
}

func TestWaitReady_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitReady(ctx, &flakyPinger{failures: 10}, 5, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WaitReady() error = %v, want context.Canceled", err)
	}
}
