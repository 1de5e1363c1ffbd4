// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/metrics"
	"github.com/tomtom215/phishsync/internal/models"
)

// DefaultBatchSize is the number of rows inserted per transaction.
const DefaultBatchSize = 100

// maxJoinedErrors bounds the row errors carried by ErrRowsFailed.
const maxJoinedErrors = 5

var (
	// ErrRowsFailed means some rows could not be persisted for reasons
	// other than a natural-key conflict.
	ErrRowsFailed = errors.New("rows failed to persist")
	// ErrUnknownKind is returned for a record kind the reconciler does not know.
	ErrUnknownKind = errors.New("unknown record kind")

	errRaggedRow = errors.New("field count does not match header")
)

// ReconcileResult counts what happened to the rows of one CSV payload.
type ReconcileResult struct {
	Parsed    int `json:"parsed"`    // data rows read, malformed ones included
	Inserted  int `json:"inserted"`  // rows written
	Skipped   int `json:"skipped"`   // natural key already stored or repeated in the payload
	Rejected  int `json:"rejected"`  // failed the admission predicate
	Malformed int `json:"malformed"` // could not be parsed
	Failed    int `json:"failed"`    // write failed for another reason
}

// Reconciler turns a CSV payload into new rows for one scenario, skipping
// rows whose natural key is already stored.
type Reconciler struct {
	store     RecordStore
	batchSize int
	clock     Clock
}

// NewReconciler creates a reconciler writing batchSize rows per transaction.
func NewReconciler(store RecordStore, batchSize int, clock Clock) *Reconciler {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Reconciler{store: store, batchSize: batchSize, clock: clock}
}

// Reconcile parses raw as kind (models.KindTimeline or models.KindFullData)
// and inserts the rows not yet stored for scenarioID.
//
// Malformed rows are logged, recorded as ingestion errors and skipped. An
// error is returned only when the stored keys cannot be loaded, the payload
// cannot be read, the context ends, or rows fail to persist (ErrRowsFailed).
func (r *Reconciler) Reconcile(ctx context.Context, raw, scenarioID, kind string) (ReconcileResult, error) {
	switch kind {
	case models.KindTimeline:
		return reconcile(ctx, r, raw, scenarioID, timelineRows(r.store))
	case models.KindFullData:
		return reconcile(ctx, r, raw, scenarioID, scenarioDataRows(r.store))
	default:
		return ReconcileResult{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// rowKind binds the per-kind pieces of reconciliation.
type rowKind[R any, K comparable] struct {
	name        string
	parse       func(map[string]string) (R, error)
	admit       func(*R) bool
	key         func(*R) K
	assign      func(r *R, scenarioID string)
	loadKeys    func(ctx context.Context, scenarioID string) (map[K]struct{}, error)
	insertBatch func(ctx context.Context, rows []R) error
	insertOne   func(ctx context.Context, row *R) error
}

func timelineRows(store RecordStore) rowKind[models.TimelineEntry, models.TimelineKey] {
	return rowKind[models.TimelineEntry, models.TimelineKey]{
		name:  models.KindTimeline,
		parse: models.ParseTimelineRow,
		admit: (*models.TimelineEntry).Admissible,
		key:   (*models.TimelineEntry).Key,
		assign: func(e *models.TimelineEntry, scenarioID string) {
			e.ID = uuid.New()
			e.ScenarioID = scenarioID
		},
		loadKeys:    store.TimelineKeys,
		insertBatch: store.InsertTimelineBatch,
		insertOne:   store.InsertTimelineEntry,
	}
}

func scenarioDataRows(store RecordStore) rowKind[models.ScenarioData, models.ScenarioDataKey] {
	return rowKind[models.ScenarioData, models.ScenarioDataKey]{
		name:  models.KindFullData,
		parse: models.ParseScenarioDataRow,
		admit: func(*models.ScenarioData) bool { return true },
		key:   (*models.ScenarioData).Key,
		assign: func(d *models.ScenarioData, scenarioID string) {
			d.ID = uuid.New()
			d.ScenarioID = scenarioID
		},
		loadKeys:    store.ScenarioDataKeys,
		insertBatch: store.InsertScenarioDataBatch,
		insertOne:   store.InsertScenarioDataRow,
	}
}

func reconcile[R any, K comparable](ctx context.Context, r *Reconciler, raw, scenarioID string, kind rowKind[R, K]) (ReconcileResult, error) {
	var result ReconcileResult
	log := logging.CtxWith(ctx).Str("kind", kind.name).Logger()

	records, malformed, err := readCSV(raw)
	if err != nil {
		return result, fmt.Errorf("failed to read %s csv: %w", kind.name, err)
	}
	result.Parsed = len(records) + len(malformed)

	known, err := kind.loadKeys(ctx, scenarioID)
	if err != nil {
		return result, fmt.Errorf("failed to load stored %s keys: %w", kind.name, err)
	}

	var queued []R
	for _, rec := range records {
		row, err := kind.parse(rec.fields)
		if err != nil {
			malformed = append(malformed, rowError{row: rec.row, err: err})
			continue
		}
		if !kind.admit(&row) {
			result.Rejected++
			continue
		}
		k := kind.key(&row)
		if _, dup := known[k]; dup {
			result.Skipped++
			continue
		}
		known[k] = struct{}{}
		kind.assign(&row, scenarioID)
		queued = append(queued, row)
	}

	result.Malformed = len(malformed)
	if len(malformed) > 0 {
		r.recordMalformed(ctx, scenarioID, kind.name, malformed)
	}

	var failures []error
	for start := 0; start < len(queued); start += r.batchSize {
		end := min(start+r.batchSize, len(queued))
		chunk := queued[start:end]

		err := kind.insertBatch(ctx, chunk)
		if err == nil {
			result.Inserted += len(chunk)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		log.Debug().Err(err).Int("batch_rows", len(chunk)).Msg("Batch insert failed, falling back to row inserts")
		for i := range chunk {
			err := kind.insertOne(ctx, &chunk[i])
			switch {
			case err == nil:
				result.Inserted++
			case errors.Is(err, models.ErrDuplicateKey):
				result.Skipped++
			default:
				if ctxErr := ctx.Err(); ctxErr != nil {
					return result, ctxErr
				}
				result.Failed++
				if len(failures) < maxJoinedErrors {
					failures = append(failures, err)
				}
			}
		}
	}

	metrics.RecordRows(kind.name, result.Inserted, result.Skipped, result.Rejected, result.Malformed, result.Failed)
	log.Info().
		Int("parsed", result.Parsed).
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Int("rejected", result.Rejected).
		Int("malformed", result.Malformed).
		Int("failed", result.Failed).
		Msg("CSV reconciled")

	if result.Failed > 0 {
		return result, fmt.Errorf("%w: %d of %d %s rows: %w",
			ErrRowsFailed, result.Failed, len(queued), kind.name, errors.Join(failures...))
	}
	return result, nil
}

func (r *Reconciler) recordMalformed(ctx context.Context, scenarioID, kind string, rows []rowError) {
	now := r.clock.Now().UTC()
	records := make([]models.IngestionError, 0, len(rows))
	for _, re := range rows {
		logging.Ctx(ctx).Warn().Err(re.err).Str("kind", kind).Int("row", re.row).Msg("Skipping malformed CSV row")
		records = append(records, models.IngestionError{
			ScenarioID: scenarioID,
			Kind:       kind,
			Row:        re.row,
			Message:    re.err.Error(),
			OccurredAt: now,
		})
	}
	if err := r.store.RecordIngestionErrors(ctx, records); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int("rows", len(records)).Msg("Failed to record ingestion errors")
	}
}

type csvRecord struct {
	row    int
	fields map[string]string
}

type rowError struct {
	row int
	err error
}

// readCSV drops comment and blank lines, then reads the payload using the
// first record as the header. Rows are numbered from 1 after the header.
// Rows the CSV reader rejects or whose width differs from the header are
// returned as row errors.
func readCSV(raw string) ([]csvRecord, []rowError, error) {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return nil, nil, nil
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(kept, "\n")))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	var records []csvRecord
	var malformed []rowError
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			malformed = append(malformed, rowError{row: row, err: err})
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		if len(fields) != len(header) {
			malformed = append(malformed, rowError{
				row: row,
				err: &models.ParseError{Field: "row", Value: fmt.Sprintf("%d fields, header has %d", len(fields), len(header)), Err: errRaggedRow},
			})
			continue
		}

		m := make(map[string]string, len(header))
		for i, name := range header {
			m[name] = fields[i]
		}
		records = append(records, csvRecord{row: row, fields: m})
	}
	return records, malformed, nil
}
