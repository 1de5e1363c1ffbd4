// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/phishsync/internal/ingest"
	"github.com/tomtom215/phishsync/internal/logging"
)

type mockRunner struct {
	calls  atomic.Int32
	err    error
	sawIDs chan string
}

func newMockRunner(err error) *mockRunner {
	return &mockRunner{err: err, sawIDs: make(chan string, 16)}
}

func (m *mockRunner) Run(ctx context.Context) (ingest.RunSummary, error) {
	m.calls.Add(1)
	id := logging.CorrelationIDFromContext(ctx)
	select {
	case m.sawIDs <- id:
	default:
	}
	return ingest.RunSummary{CorrelationID: id}, m.err
}

func TestIngestService_Interface(t *testing.T) {
	var _ suture.Service = (*IngestService)(nil)
}

func TestNewIngestService_DefaultInterval(t *testing.T) {
	svc := NewIngestService(newMockRunner(nil), 0)
	if svc.interval != time.Hour {
		t.Errorf("interval = %v, want 1h", svc.interval)
	}
	if svc.String() != "ingest" {
		t.Errorf("String() = %q, want ingest", svc.String())
	}
}

func TestIngestService_RunsImmediatelyAndOnInterval(t *testing.T) {
	runner := newMockRunner(nil)
	svc := NewIngestService(runner, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for runner.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 passes, got %d", runner.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	first, second := <-runner.sawIDs, <-runner.sawIDs
	if first == "" || first == second {
		t.Errorf("each pass needs its own correlation id, got %q and %q", first, second)
	}
}

func TestIngestService_FailedPassKeepsRunning(t *testing.T) {
	runner := newMockRunner(ingest.ErrMissingSettings)
	svc := NewIngestService(runner, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	for runner.calls.Load() < 2 {
		select {
		case err := <-errCh:
			t.Fatalf("Serve returned early: %v", err)
		case <-ctx.Done():
			t.Fatal("second pass never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-errCh
}
