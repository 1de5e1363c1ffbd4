// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionWebbugTracked is a pixel-tracking event. It is never persisted.
const ActionWebbugTracked = "Email Webbug Tracked"

// TimelineEntry is one row of a scenario's activity timeline.
type TimelineEntry struct {
	ID                 uuid.UUID  `json:"id"`
	ScenarioID         string     `json:"scenario_id"`
	Timestamp          *time.Time `json:"timestamp,omitempty"`
	Action             string     `json:"action"`
	TrackingID         string     `json:"tracking_id"`
	Recipient          string     `json:"recipient"`
	Group              string     `json:"group"`
	RemoteIP           string     `json:"remote_ip"`
	FormUsername       string     `json:"form_username"`
	FormPassword       string     `json:"form_password"`
	Country            string     `json:"country"`
	City               string     `json:"city"`
	ISP                string     `json:"isp"`
	Browser            string     `json:"browser"`
	UserAgentString    string     `json:"user_agent_string"`
	Mobile             bool       `json:"mobile"`
	EmailClient        string     `json:"email_client"`
	InUserAgentsCharts bool       `json:"in_user_agents_charts"`
}

// TimelineKey identifies a timeline event within a scenario.
type TimelineKey struct {
	Recipient string
	Action    string
	Timestamp string // KeyTime form
}

// Key returns the natural key of e.
func (e *TimelineEntry) Key() TimelineKey {
	return TimelineKey{
		Recipient: e.Recipient,
		Action:    e.Action,
		Timestamp: KeyTime(e.Timestamp),
	}
}

// Admissible reports whether e may be persisted: it must be counted in the
// user agent charts and must not be a tracking pixel hit.
func (e *TimelineEntry) Admissible() bool {
	return e.InUserAgentsCharts && e.Action != ActionWebbugTracked
}

// ParseTimelineRow maps an activity timeline CSV row, keyed by header, to a
// TimelineEntry. ID and ScenarioID are left for the caller.
func ParseTimelineRow(fields map[string]string) (TimelineEntry, error) {
	ts, err := parseTimestampField("Timestamp", fields["Timestamp"])
	if err != nil {
		return TimelineEntry{}, err
	}

	return TimelineEntry{
		Timestamp:          ts,
		Action:             fields["Action"],
		TrackingID:         fields["Tracking ID"],
		Recipient:          fields["Recipient"],
		Group:              fields["Group"],
		RemoteIP:           fields["Remote IP"],
		FormUsername:       fields["Form Username"],
		FormPassword:       fields["Form Password"],
		Country:            fields["Country"],
		City:               fields["City"],
		ISP:                fields["ISP"],
		Browser:            fields["Browser"],
		UserAgentString:    fields["User-Agent String"],
		Mobile:             fields["Mobile?"] == "1",
		EmailClient:        fields["Email Client?"],
		InUserAgentsCharts: fields["In User Agents charts?"] == "1",
	}, nil
}
