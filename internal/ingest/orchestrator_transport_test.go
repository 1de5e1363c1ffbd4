// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/phishsync/internal/config"
	"github.com/tomtom215/phishsync/internal/models"
	"github.com/tomtom215/phishsync/internal/phishapi"
)

// A tenant whose locators have all expired must not open the shared
// breaker for the tenants processed after it.
func TestRun_SharedBreakerIsolatesTenants(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/api/v2/scenarios", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("Authorization") {
		case "Token token=key-c1":
			items := make([]string, 0, 10)
			for i := 1; i <= 10; i++ {
				items = append(items, fmt.Sprintf(
					`{"id":"a-%d","status":"Finished","date_started":"2026-02-28T12:00:00Z","full_csv_url":"%s/files/a-%d/full.csv"}`,
					i, srv.URL, i))
			}
			_, _ = w.Write([]byte("[" + strings.Join(items, ",") + "]"))
		case "Token token=key-c2":
			_, _ = fmt.Fprintf(w,
				`[{"id":"b-1","status":"Finished","date_started":"2026-02-28T12:00:00Z","activity_timeline_url":"%s/files/b-1/timeline.csv"}]`,
				srv.URL)
		default:
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("/files/b-1/timeline.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(oneTimelineRow))
	})
	// Everything else under /files/ is an expired locator.
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	store := newFakeStore()
	store.settings[models.SettingAPIURL] = srv.URL + "/api/v2"
	store.addCompany("c1", "Acme", "")
	store.addCompany("c2", "Beta", "")

	apiCfg := &config.APIConfig{
		Timeout:              5 * time.Second,
		BreakerMinRequests:   2,
		BreakerFailureRatio:  0.5,
		BreakerTimeout:       time.Minute,
		BreakerResetInterval: time.Minute,
	}
	breaker := phishapi.NewBreaker("test-isolation", apiCfg)
	factory := func(baseURL, apiKey string) API {
		return breaker.Wrap(phishapi.NewClient(baseURL, apiKey, apiCfg))
	}

	o := NewOrchestrator(store, factory, Options{Ingest: testIngestConfig(), Clock: newFakeClock()})
	summary, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(summary.Tenants) != 2 {
		t.Fatalf("tenants = %d, want 2", len(summary.Tenants))
	}

	acme, beta := summary.Tenants[0], summary.Tenants[1]
	if acme.Discovered != 10 || acme.Failed != 10 {
		t.Errorf("Acme discovered/failed = %d/%d, want 10/10", acme.Discovered, acme.Failed)
	}
	if beta.Discovered != 1 || beta.Downloaded != 1 || beta.Error != "" {
		t.Errorf("Beta = %+v, want one scenario downloaded", beta)
	}
	if got := store.timelineCount("b-1"); got != 1 {
		t.Errorf("b-1 timeline rows = %d, want 1", got)
	}
	if !store.scenario("b-1").FullyDownloaded {
		t.Error("b-1 should be fully downloaded")
	}
	if breaker.State() != "closed" {
		t.Errorf("breaker state = %s, want closed", breaker.State())
	}
}
