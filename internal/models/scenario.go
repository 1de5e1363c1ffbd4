// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package models

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/phishsync/internal/validation"
)

// StatusScheduled marks a scenario that has not started sending yet.
const StatusScheduled = "Scheduled"

// Scenario is one phishing simulation campaign as listed by the upstream API.
type Scenario struct {
	ID                  string     `json:"id" validate:"required,max=64"`
	SimpleID            int        `json:"simple_id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	ScenarioType        string     `json:"scenario_type"`
	EmailSubject        string     `json:"email_subject"`
	DateStarted         APITime    `json:"date_started"`
	DateFinished        APITime    `json:"date_finished"`
	Recipients          FlexString `json:"recipients"`
	FullCSVURL          string     `json:"full_csv_url"`
	Notes               string     `json:"notes"`
	IsArchive           bool       `json:"is_archive"`
	Status              string     `json:"status" validate:"max=64"`
	ActivityTimelineURL string     `json:"activity_timeline_url"`

	// Local fields, never sent by the API.
	CompanyID       string `json:"company_id,omitempty"`
	FullyDownloaded bool   `json:"fully_downloaded"`
}

// Validate checks a scenario decoded from the API before it is persisted.
func (s *Scenario) Validate() error {
	if verr := validation.ValidateStruct(s); verr != nil {
		return verr
	}
	if !s.DateStarted.Valid() {
		return fmt.Errorf("date_started %q is not a recognized timestamp", s.DateStarted.Raw)
	}
	if !s.DateFinished.Valid() {
		return fmt.Errorf("date_finished %q is not a recognized timestamp", s.DateFinished.Raw)
	}
	return nil
}

// Scheduled reports whether the scenario is not yet eligible for download.
func (s *Scenario) Scheduled() bool {
	return s.Status == StatusScheduled
}

// ScenarioFilter selects stored scenarios. Nil fields are not filtered on.
type ScenarioFilter struct {
	CompanyID       string
	FullyDownloaded *bool
	StartedAfter    *time.Time
}

// APITime is an upstream date. Decoding never fails: an unparsable value
// is kept in Raw and reported by Valid, so one bad record does not reject
// the whole listing.
type APITime struct {
	Time time.Time
	Raw  string
}

// NewAPITime wraps t.
func NewAPITime(t time.Time) APITime {
	return APITime{Time: t.UTC()}
}

// APITimeFromPtr wraps an optional timestamp loaded from the store.
func APITimeFromPtr(t *time.Time) APITime {
	if t == nil {
		return APITime{}
	}
	return NewAPITime(*t)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *APITime) UnmarshalJSON(data []byte) error {
	*a = APITime{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		a.Raw = string(data)
		return nil
	}
	if t, err := ParseTimestamp(s); err == nil && t != nil {
		a.Time = *t
		return nil
	}
	a.Raw = s
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a APITime) MarshalJSON() ([]byte, error) {
	if a.Time.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(a.Time.UTC().Format(CursorLayout))
}

// IsZero reports whether no date is set.
func (a APITime) IsZero() bool {
	return a.Time.IsZero()
}

// Valid is false when the API sent a value that could not be parsed.
func (a APITime) Valid() bool {
	return a.Raw == "" || !a.Time.IsZero()
}

// Ptr returns the time for a nullable column.
func (a APITime) Ptr() *time.Time {
	if a.Time.IsZero() {
		return nil
	}
	t := a.Time
	return &t
}

// FlexString accepts a JSON string or number.
type FlexString string

var errFlexString = errors.New("expected string or number")

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return errFlexString
		}
		*f = FlexString(data)
		return nil
	}
}
