// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateKey is returned by record stores when an insert violates a
// natural-key uniqueness constraint.
var ErrDuplicateKey = errors.New("duplicate natural key")

// ParseError describes a CSV cell that could not be mapped to its field.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("field %q: cannot parse %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Record kinds, used for ingestion errors, metrics and logs.
const (
	KindTimeline = "timeline"
	KindFullData = "full_data"
)

// IngestionError is a persisted record of a malformed CSV row.
type IngestionError struct {
	ScenarioID string    `json:"scenario_id"`
	Kind       string    `json:"kind"`
	Row        int       `json:"row"` // 1-based data row, header excluded
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}
