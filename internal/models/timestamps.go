// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CursorLayout formats the LastRun cursor and upstream scenario dates.
const CursorLayout = "2006-01-02T15:04:05Z"

// timestampLayouts are tried in order when parsing CSV and API timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	CursorLayout,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04",
}

var errUnknownTimeLayout = errors.New("unrecognized timestamp layout")

// ParseTimestamp parses s with the accepted layouts. An empty (or blank)
// string yields nil. Layouts without a zone are read as UTC.
func ParseTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, errUnknownTimeLayout
}

// KeyTime renders a timestamp for natural-key comparison.
func KeyTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseCursor parses a LastRun value. Only CursorLayout is accepted.
func ParseCursor(s string) (time.Time, error) {
	t, err := time.Parse(CursorLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("cursor %q: %w", s, err)
	}
	return t, nil
}

// FormatCursor renders t as a LastRun value.
func FormatCursor(t time.Time) string {
	return t.UTC().Format(CursorLayout)
}

func parseTimestampField(field, value string) (*time.Time, error) {
	t, err := ParseTimestamp(value)
	if err != nil {
		return nil, &ParseError{Field: field, Value: value, Err: err}
	}
	return t, nil
}

func parseOptionalInt(field, value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, &ParseError{Field: field, Value: value, Err: err}
	}
	return &n, nil
}
