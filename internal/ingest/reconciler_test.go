// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/phishsync/internal/models"
)

const timelineHeader = "Timestamp,Action,Recipient,Email Client?,In User Agents charts?"

func timelineCSV(rows ...string) string {
	return timelineHeader + "\n" + strings.Join(rows, "\n") + "\n"
}

func fullDataCSV(n int) string {
	var b strings.Builder
	b.WriteString("Email,Recipient Name,Opened Email?,Last Email Status,Last Email Status Timestamp\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "user%03d@example.com,User %d,Yes,Delivered,2026-02-01T10:00:00Z\n", i, i)
	}
	return b.String()
}

// staleKeysStore reports no stored keys, as if another writer inserted
// rows after the keys were loaded.
type staleKeysStore struct {
	*fakeStore
}

func (staleKeysStore) ScenarioDataKeys(context.Context, string) (map[models.ScenarioDataKey]struct{}, error) {
	return map[models.ScenarioDataKey]struct{}{}, nil
}

func (staleKeysStore) TimelineKeys(context.Context, string) (map[models.TimelineKey]struct{}, error) {
	return map[models.TimelineKey]struct{}{}, nil
}

func TestReconcile_TimelineAdmission(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := NewReconciler(store, 100, newFakeClock())

	raw := timelineCSV(
		"2026-02-01T10:00:00Z,Email Opened,alice@example.com,Outlook,1",
		"2026-02-01T10:01:00Z,Email Opened,bob@example.com,Outlook,0",
		"2026-02-01T10:02:00Z,Email Webbug Tracked,carol@example.com,Outlook,1",
		"2026-02-01T10:03:00Z,Clicked Link,alice@example.com,Chrome,1",
	)

	res, err := r.Reconcile(context.Background(), raw, "sc-1", models.KindTimeline)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	want := ReconcileResult{Parsed: 4, Inserted: 2, Rejected: 2}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	for _, e := range store.timeline["sc-1"] {
		if !e.InUserAgentsCharts || e.Action == models.ActionWebbugTracked {
			t.Errorf("inadmissible entry persisted: %+v", e)
		}
		if e.ScenarioID != "sc-1" {
			t.Errorf("ScenarioID = %q, want sc-1", e.ScenarioID)
		}
		if e.ID == uuid.Nil {
			t.Error("expected a surrogate id to be assigned")
		}
	}
}

func TestReconcile_StripsCommentsBlankLinesAndBOM(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := NewReconciler(store, 100, newFakeClock())

	raw := "# exported by the platform\n\n\ufeff" + timelineHeader + "\n" +
		"# generated 2026-02-01\n" +
		"2026-02-01T10:00:00Z,Email Opened,alice@example.com,Outlook,1\n" +
		"\n   \n" +
		"2026-02-01T10:05:00Z,Clicked Link,alice@example.com,Chrome,1\n"

	res, err := r.Reconcile(context.Background(), raw, "sc-1", models.KindTimeline)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Parsed != 2 || res.Inserted != 2 {
		t.Errorf("result = %+v, want 2 parsed and 2 inserted", res)
	}
	if got := store.timeline["sc-1"][0].Timestamp; got == nil {
		t.Error("expected the BOM-prefixed Timestamp column to be mapped")
	}
}

func TestReconcile_EmptyPayload(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := NewReconciler(store, 100, newFakeClock())

	for _, raw := range []string{"", "# nothing\n\n", timelineHeader + "\n"} {
		res, err := r.Reconcile(context.Background(), raw, "sc-1", models.KindTimeline)
		if err != nil {
			t.Errorf("Reconcile(%q): %v", raw, err)
		}
		if res != (ReconcileResult{}) {
			t.Errorf("Reconcile(%q) = %+v, want zero result", raw, res)
		}
	}
	if store.batchCalls != 0 {
		t.Errorf("expected no inserts, got %d batch calls", store.batchCalls)
	}
}

func TestReconcile_DuplicatesWithinPayloadAreNoOps(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := NewReconciler(store, 100, newFakeClock())

	raw := "Email,Recipient Name,Last Email Status Timestamp\n" +
		"dup@example.com,First,2026-02-01T10:00:00Z\n" +
		"dup@example.com,Second,2026-02-01 10:00:00 +0000\n" +
		"dup@example.com,Third,2026-02-02T10:00:00Z\n"

	res, err := r.Reconcile(context.Background(), raw, "sc-1", models.KindFullData)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Inserted != 2 || res.Skipped != 1 {
		t.Errorf("result = %+v, want 2 inserted and 1 skipped", res)
	}
	if got := store.data["sc-1"][0].RecipientName; got != "First" {
		t.Errorf("first occurrence should win, got %q", got)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := NewReconciler(store, 100, newFakeClock())
	ctx := context.Background()

	for _, tc := range []struct {
		kind string
		raw  string
	}{
		{models.KindTimeline, timelineCSV(
			"2026-02-01T10:00:00Z,Email Opened,alice@example.com,Outlook,1",
			",Email Opened,bob@example.com,Outlook,1",
		)},
		{models.KindFullData, fullDataCSV(5)},
	} {
		first, err := r.Reconcile(ctx, tc.raw, "sc-1", tc.kind)
		if err != nil {
			t.Fatalf("%s first run: %v", tc.kind, err)
		}
		second, err := r.Reconcile(ctx, tc.raw, "sc-1", tc.kind)
		if err != nil {
			t.Fatalf("%s second run: %v", tc.kind, err)
		}
		if second.Inserted != 0 {
			t.Errorf("%s second run inserted %d rows, want 0", tc.kind, second.Inserted)
		}
		if second.Skipped != first.Inserted {
			t.Errorf("%s second run skipped %d, want %d", tc.kind, second.Skipped, first.Inserted)
		}
	}
	if got := store.timelineCount("sc-1"); got != 2 {
		t.Errorf("timeline rows = %d, want 2", got)
	}
	if got := store.dataCount("sc-1"); got != 5 {
		t.Errorf("data rows = %d, want 5", got)
	}
}

func TestReconcile_PartialBatchFallback(t *testing.T) {
	t.Parallel()

	base := newFakeStore()
	row47, err := models.ParseScenarioDataRow(map[string]string{
		"Email":                       "user047@example.com",
		"Last Email Status Timestamp": "2026-02-01T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("ParseScenarioDataRow: %v", err)
	}
	row47.ScenarioID = "sc-1"
	base.data["sc-1"] = []models.ScenarioData{row47}

	r := NewReconciler(staleKeysStore{base}, 100, newFakeClock())

	res, err := r.Reconcile(context.Background(), fullDataCSV(100), "sc-1", models.KindFullData)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Inserted != 99 || res.Skipped != 1 || res.Failed != 0 {
		t.Errorf("result = %+v, want 99 inserted and 1 skipped", res)
	}
	if base.batchCalls != 1 || base.rowCalls != 100 {
		t.Errorf("batch calls = %d, row calls = %d, want 1 and 100", base.batchCalls, base.rowCalls)
	}

	seen := make(map[string]int)
	for _, d := range base.data["sc-1"] {
		seen[d.Email]++
	}
	if len(seen) != 100 {
		t.Errorf("distinct emails = %d, want 100", len(seen))
	}
	for email, n := range seen {
		if n != 1 {
			t.Errorf("%s stored %d times", email, n)
		}
	}
}

func TestReconcile_BatchesBySize(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := NewReconciler(store, 10, newFakeClock())

	res, err := r.Reconcile(context.Background(), fullDataCSV(25), "sc-1", models.KindFullData)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Inserted != 25 {
		t.Errorf("inserted = %d, want 25", res.Inserted)
	}
	if store.batchCalls != 3 {
		t.Errorf("batch calls = %d, want 3", store.batchCalls)
	}
	if store.rowCalls != 0 {
		t.Errorf("row calls = %d, want 0", store.rowCalls)
	}
}

func TestReconcile_MalformedRowsAreRecorded(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := NewReconciler(store, 100, newFakeClock())

	raw := timelineCSV(
		"2026-02-01T10:00:00Z,Email Opened,alice@example.com,Outlook,1",
		"yesterday,Email Opened,bob@example.com,Outlook,1",
		"2026-02-01T10:02:00Z,Email Opened,carol@example.com",
		"2026-02-01T10:03:00Z,Email Opened,dave@example.com,Outlook,1",
	)

	res, err := r.Reconcile(context.Background(), raw, "sc-1", models.KindTimeline)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	want := ReconcileResult{Parsed: 4, Inserted: 2, Malformed: 2}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}

	if len(store.ingestErrs) != 2 {
		t.Fatalf("ingestion errors = %d, want 2", len(store.ingestErrs))
	}
	rows := map[int]bool{}
	for _, ie := range store.ingestErrs {
		rows[ie.Row] = true
		if ie.ScenarioID != "sc-1" || ie.Kind != models.KindTimeline || ie.Message == "" {
			t.Errorf("unexpected ingestion error: %+v", ie)
		}
		if !ie.OccurredAt.Equal(testEpoch) {
			t.Errorf("OccurredAt = %v, want %v", ie.OccurredAt, testEpoch)
		}
	}
	if !rows[2] || !rows[3] {
		t.Errorf("expected rows 2 and 3 recorded, got %v", rows)
	}
}

func TestReconcile_NonUniqueFailures(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failRow = func(email string) bool { return email == "user003@example.com" }
	r := NewReconciler(store, 100, newFakeClock())

	res, err := r.Reconcile(context.Background(), fullDataCSV(5), "sc-1", models.KindFullData)
	if !errors.Is(err, ErrRowsFailed) {
		t.Fatalf("expected ErrRowsFailed, got %v", err)
	}
	if res.Inserted != 4 || res.Failed != 1 {
		t.Errorf("result = %+v, want 4 inserted and 1 failed", res)
	}
}

func TestReconcile_UnknownKind(t *testing.T) {
	t.Parallel()

	r := NewReconciler(newFakeStore(), 100, newFakeClock())
	_, err := r.Reconcile(context.Background(), fullDataCSV(1), "sc-1", "summary")
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestReadCSV_QuotedFields(t *testing.T) {
	t.Parallel()

	raw := "Email,Recipient Name\n\"a@example.com\",\"Doe, Jane\"\n"
	records, malformed, err := readCSV(raw)
	if err != nil {
		t.Fatalf("readCSV: %v", err)
	}
	if len(malformed) != 0 || len(records) != 1 {
		t.Fatalf("records = %d, malformed = %d", len(records), len(malformed))
	}
	if got := records[0].fields["Recipient Name"]; got != "Doe, Jane" {
		t.Errorf("Recipient Name = %q", got)
	}
	if records[0].row != 1 {
		t.Errorf("row = %d, want 1", records[0].row)
	}
}
