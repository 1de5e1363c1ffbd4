// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package phishapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/phishsync/internal/config"
)

func testAPIConfig() *config.APIConfig {
	return &config.APIConfig{
		Timeout:              5 * time.Second,
		RequestsPerSecond:    0,
		BreakerMinRequests:   2,
		BreakerFailureRatio:  0.5,
		BreakerTimeout:       time.Minute,
		BreakerResetInterval: time.Minute,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api/v2", "secret-key", testAPIConfig()), srv
}

func TestListScenarios(t *testing.T) {
	t.Parallel()

	var gotAuth, gotPath, gotAfter string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotAfter = r.URL.Query().Get(ParamStartedAfter)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"sc-1","title":"Invoice","status":"Completed","recipients":120,"date_started":"2024-03-01T09:00:00Z"},
			{"id":"sc-2","title":"Parcel","status":"Scheduled","recipients":"40","date_started":null}
		]`))
	})

	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res := client.ListScenarios(context.Background(), NewParams().StartedAfter(after))
	scenarios, err := res.Unwrap()
	if err != nil {
		t.Fatalf("ListScenarios() error = %v", err)
	}

	if gotAuth != "Token token=secret-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/api/v2/scenarios" {
		t.Errorf("path = %q, want /api/v2/scenarios", gotPath)
	}
	if gotAfter != "2024-01-01T00:00:00Z" {
		t.Errorf("started_after = %q", gotAfter)
	}
	if len(scenarios) != 2 || scenarios[0].ID != "sc-1" || scenarios[0].Recipients != "120" {
		t.Errorf("unexpected scenarios: %+v", scenarios)
	}
	if !scenarios[1].Scheduled() {
		t.Errorf("second scenario should be scheduled")
	}
}

func TestListScenarios_StatusError(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	})

	res := client.ListScenarios(context.Background(), nil)
	if res.Outcome() != OutcomeFailed {
		t.Fatalf("outcome = %v, want failed", res.Outcome())
	}
	var statusErr *StatusError
	if !errors.As(res.Err(), &statusErr) || statusErr.Code != http.StatusUnauthorized {
		t.Errorf("error = %v, want StatusError 401", res.Err())
	}
}

func TestFetchCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		contentType string
		retryAfter  string
		body        string
		wantOutcome Outcome
		wantWait    time.Duration
		wantErr     error
	}{
		{
			name:        "csv with charset",
			status:      http.StatusOK,
			contentType: "text/csv; charset=utf-8",
			body:        "Email,Action\na@example.com,Clicked Link\n",
			wantOutcome: OutcomeOK,
		},
		{
			name:        "busy marker with wait",
			status:      http.StatusForbidden,
			contentType: "text/plain",
			body:        "API Token Busy: 12.5 seconds remaining",
			wantOutcome: OutcomeThrottled,
			wantWait:    12500 * time.Millisecond,
		},
		{
			name:        "busy marker on 200",
			status:      http.StatusOK,
			contentType: "text/plain",
			body:        "API Token Busy",
			wantOutcome: OutcomeThrottled,
			wantWait:    DefaultBusyWait,
		},
		{
			name:        "retry-after wins over marker",
			status:      http.StatusForbidden,
			contentType: "text/plain",
			retryAfter:  "30",
			body:        "API Token Busy: 3 seconds remaining",
			wantOutcome: OutcomeThrottled,
			wantWait:    30 * time.Second,
		},
		{
			name:        "429 without hints",
			status:      http.StatusTooManyRequests,
			wantOutcome: OutcomeThrottled,
			wantWait:    DefaultBusyWait,
		},
		{
			name:        "wrong content type",
			status:      http.StatusOK,
			contentType: "text/html",
			body:        "<html></html>",
			wantOutcome: OutcomeFailed,
			wantErr:     ErrNotCSV,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res := client.FetchCSV(context.Background(), srv.URL+"/files/timeline.csv?token=abc", nil)
			if res.Outcome() != tt.wantOutcome {
				t.Fatalf("outcome = %v, want %v (err %v)", res.Outcome(), tt.wantOutcome, res.Err())
			}
			switch tt.wantOutcome {
			case OutcomeOK:
				if res.Value() != tt.body {
					t.Errorf("body = %q", res.Value())
				}
			case OutcomeThrottled:
				if res.Wait() != tt.wantWait {
					t.Errorf("wait = %v, want %v", res.Wait(), tt.wantWait)
				}
				_, err := res.Unwrap()
				var te *ThrottledError
				if !errors.As(err, &te) || te.Wait != tt.wantWait {
					t.Errorf("Unwrap() error = %v, want ThrottledError", err)
				}
			case OutcomeFailed:
				if !errors.Is(res.Err(), tt.wantErr) {
					t.Errorf("error = %v, want %v", res.Err(), tt.wantErr)
				}
			}
		})
	}
}

func TestFetchCSV_KeepsLocatorQuery(t *testing.T) {
	t.Parallel()

	var gotQuery string
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("a\n"))
	})

	res := client.FetchCSV(context.Background(), srv.URL+"/full.csv?token=abc", NewParams().Page(2))
	if res.Outcome() != OutcomeOK {
		t.Fatalf("FetchCSV() = %v", res.Err())
	}
	if gotQuery != "page=2&token=abc" {
		t.Errorf("query = %q, want page=2&token=abc", gotQuery)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := client.FetchCSV(ctx, srv.URL+"/x.csv", nil)
	if res.Outcome() != OutcomeFailed || !errors.Is(res.Err(), context.Canceled) {
		t.Errorf("FetchCSV(cancelled) = %v / %v, want failed with context.Canceled", res.Outcome(), res.Err())
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	if got := redact("https://h/x.csv?sig=secret"); got != "https://h/x.csv" {
		t.Errorf("redact() = %q", got)
	}
	if got := redact("https://h/x.csv"); got != "https://h/x.csv" {
		t.Errorf("redact() = %q", got)
	}
}
