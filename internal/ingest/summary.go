// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package ingest

import "time"

// TenantSummary is the outcome of one tenant within a run.
type TenantSummary struct {
	Tenant    string `json:"tenant"`
	CompanyID string `json:"company_id"`

	Discovered int `json:"discovered"` // listed by the API this run
	Resumed    int `json:"resumed"`    // stored and still pending from earlier runs
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"` // scheduled or already downloaded
	Failed     int `json:"failed"`
	Deferred   int `json:"deferred"` // left for the next run after throttling

	RowsInserted  int `json:"rows_inserted"`
	RowsSkipped   int `json:"rows_skipped"`
	RowsRejected  int `json:"rows_rejected"`
	RowsMalformed int `json:"rows_malformed"`
	RowsFailed    int `json:"rows_failed"`

	Waited    time.Duration `json:"waited_ns,omitempty"` // cooldown paid before processing
	Throttled bool          `json:"throttled"`
	Error     string        `json:"error,omitempty"`
}

func (t *TenantSummary) addRows(r ReconcileResult) {
	t.RowsInserted += r.Inserted
	t.RowsSkipped += r.Skipped
	t.RowsRejected += r.Rejected
	t.RowsMalformed += r.Malformed
	t.RowsFailed += r.Failed
}

// RunSummary is the outcome of one ingestion run.
type RunSummary struct {
	CorrelationID string          `json:"correlation_id"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Cursor        time.Time       `json:"cursor"`
	NextCursor    *time.Time      `json:"next_cursor,omitempty"` // nil when the cursor was not advanced
	Tenants       []TenantSummary `json:"tenants"`
	Err           string          `json:"error,omitempty"`
}

// Totals sums the tenant summaries. Tenant, CompanyID, Waited and Error
// are left empty; Throttled is set when any tenant was throttled.
func (s *RunSummary) Totals() TenantSummary {
	var total TenantSummary
	for i := range s.Tenants {
		t := &s.Tenants[i]
		total.Discovered += t.Discovered
		total.Resumed += t.Resumed
		total.Downloaded += t.Downloaded
		total.Skipped += t.Skipped
		total.Failed += t.Failed
		total.Deferred += t.Deferred
		total.RowsInserted += t.RowsInserted
		total.RowsSkipped += t.RowsSkipped
		total.RowsRejected += t.RowsRejected
		total.RowsMalformed += t.RowsMalformed
		total.RowsFailed += t.RowsFailed
		total.Throttled = total.Throttled || t.Throttled
	}
	return total
}
