// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/phishsync/internal/config"
	"github.com/tomtom215/phishsync/internal/phishapi"
)

func TestOpenStoreDuckDB(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := openStore(ctx, &config.DatabaseConfig{Driver: config.DriverDuckDB, Path: ":memory:"})
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestOpenStoreUnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := openStore(context.Background(), &config.DatabaseConfig{Driver: "sqlite"})
	if err == nil || !strings.Contains(err.Error(), "sqlite") {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
}

func TestAPIFactoryUsesTenantKey(t *testing.T) {
	t.Parallel()

	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.APIConfig{Timeout: 5 * time.Second, RequestsPerSecond: 100, Burst: 10}
	factory := newAPIFactory(cfg, phishapi.NewBreaker("test", cfg))

	result := factory(srv.URL, "tenant-key").ListScenarios(context.Background(), nil)
	if _, err := result.Unwrap(); err != nil {
		t.Fatalf("ListScenarios() error = %v", err)
	}
	if gotAuth := <-auth; !strings.Contains(gotAuth, "tenant-key") {
		t.Errorf("Authorization = %q, want tenant key", gotAuth)
	}
}
