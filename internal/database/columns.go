// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package database

import (
	"database/sql"
	"time"

	"github.com/tomtom215/phishsync/internal/models"
)

// Column lists shared by the DuckDB and PostgreSQL stores. The order of each
// list matches the argument order of the corresponding *Args function.

// ScenarioColumns lists scenarios columns, excluding updated_at.
var ScenarioColumns = []string{
	"id", "simple_id", "title", "description", "scenario_type", "email_subject",
	"date_started", "date_finished", "recipients", "full_csv_url", "notes",
	"is_archive", "status", "activity_timeline_url", "company_id", "fully_downloaded",
}

// ScenarioArgs returns the values for ScenarioColumns.
func ScenarioArgs(s *models.Scenario) []any {
	return []any{
		s.ID, s.SimpleID, s.Title, s.Description, s.ScenarioType, s.EmailSubject,
		s.DateStarted.Ptr(), s.DateFinished.Ptr(), string(s.Recipients), s.FullCSVURL, s.Notes,
		s.IsArchive, s.Status, s.ActivityTimelineURL, s.CompanyID, s.FullyDownloaded,
	}
}

// ScenarioRow is the scan target for a scenarios row.
type ScenarioRow struct {
	Scenario     models.Scenario
	SimpleID     sql.NullInt64
	DateStarted  sql.NullTime
	DateFinished sql.NullTime
	Recipients   sql.NullString
	Strings      [9]sql.NullString
	IsArchive    sql.NullBool
}

// Dest returns scan destinations in ScenarioColumns order.
func (r *ScenarioRow) Dest() []any {
	return []any{
		&r.Scenario.ID, &r.SimpleID, &r.Strings[0], &r.Strings[1], &r.Strings[2], &r.Strings[3],
		&r.DateStarted, &r.DateFinished, &r.Recipients, &r.Strings[4], &r.Strings[5],
		&r.IsArchive, &r.Strings[6], &r.Strings[7], &r.Strings[8], &r.Scenario.FullyDownloaded,
	}
}

// Value assembles the scanned scenario.
func (r *ScenarioRow) Value() models.Scenario {
	s := r.Scenario
	s.SimpleID = int(r.SimpleID.Int64)
	s.Title = r.Strings[0].String
	s.Description = r.Strings[1].String
	s.ScenarioType = r.Strings[2].String
	s.EmailSubject = r.Strings[3].String
	s.DateStarted = models.APITimeFromPtr(nullTimePtr(r.DateStarted))
	s.DateFinished = models.APITimeFromPtr(nullTimePtr(r.DateFinished))
	s.Recipients = models.FlexString(r.Recipients.String)
	s.FullCSVURL = r.Strings[4].String
	s.Notes = r.Strings[5].String
	s.IsArchive = r.IsArchive.Bool
	s.Status = r.Strings[6].String
	s.ActivityTimelineURL = r.Strings[7].String
	s.CompanyID = r.Strings[8].String
	return s
}

// TimelineColumns lists timeline columns.
var TimelineColumns = []string{
	"id", "scenario_id", "event_time", "action", "tracking_id", "recipient",
	"recipient_group", "remote_ip", "form_username", "form_password", "country",
	"city", "isp", "browser", "user_agent_string", "mobile", "email_client",
	"in_user_agents_charts",
}

// TimelineArgs returns the values for TimelineColumns.
func TimelineArgs(e *models.TimelineEntry) []any {
	return []any{
		e.ID.String(), e.ScenarioID, e.Timestamp, e.Action, e.TrackingID, e.Recipient,
		e.Group, e.RemoteIP, e.FormUsername, e.FormPassword, e.Country,
		e.City, e.ISP, e.Browser, e.UserAgentString, e.Mobile, e.EmailClient,
		e.InUserAgentsCharts,
	}
}

// ScenarioDataColumns lists scenario_data columns.
var ScenarioDataColumns = []string{
	"id", "scenario_id",
	"email", "recipient_name", "recipient_group", "department", "location",
	"opened_email", "opened_email_timestamp", "clicked_link", "clicked_link_timestamp",
	"submitted_form", "username", "entered_password", "submitted_form_timestamp",
	"reported_phish", "new_repeat_reporter", "reported_phish_timestamp", "time_to_report_seconds",
	"remote_ip", "geoip_country", "geoip_city", "geoip_isp", "last_dsn",
	"last_email_status", "last_email_status_timestamp", "language", "browser", "user_agent",
	"mobile", "seconds_spent_on_education_page", "submitted_data",
	"user_type", "address_region", "address2_type", "address_street_address", "title",
	"phone_number3_value", "phone_number2_value", "phone_number4_type", "preferred_language",
	"address2_formatted", "phone_number6_value", "address_type", "nick_name", "address_country",
	"phone_number4_value", "address_formatted", "phone_number2_type", "phone_number3_type",
	"address_locality", "name_given_name", "phone_number_type", "display_name",
	"phone_number6_type", "manager_value", "phone_number5_type", "name_family_name",
	"name_formatted", "phone_number_value", "phone_number5_value", "address_postal_code",
}

// ScenarioDataArgs returns the values for ScenarioDataColumns.
func ScenarioDataArgs(d *models.ScenarioData) []any {
	return []any{
		d.ID.String(), d.ScenarioID,
		d.Email, d.RecipientName, d.RecipientGroup, d.Department, d.Location,
		d.OpenedEmail, d.OpenedEmailTimestamp, d.ClickedLink, d.ClickedLinkTimestamp,
		d.SubmittedForm, d.Username, d.EnteredPassword, d.SubmittedFormTimestamp,
		d.ReportedPhish, d.NewRepeatReporter, d.ReportedPhishTimestamp, d.TimeToReportSeconds,
		d.RemoteIP, d.GeoIPCountry, d.GeoIPCity, d.GeoIPISP, d.LastDSN,
		d.LastEmailStatus, d.LastEmailStatusTimestamp, d.Language, d.Browser, d.UserAgent,
		d.Mobile, d.SecondsSpentOnEducationPage, d.SubmittedData,
		d.UserType, d.AddressRegion, d.Address2Type, d.AddressStreetAddress, d.Title,
		d.PhoneNumber3Value, d.PhoneNumber2Value, d.PhoneNumber4Type, d.PreferredLanguage,
		d.Address2Formatted, d.PhoneNumber6Value, d.AddressType, d.NickName, d.AddressCountry,
		d.PhoneNumber4Value, d.AddressFormatted, d.PhoneNumber2Type, d.PhoneNumber3Type,
		d.AddressLocality, d.NameGivenName, d.PhoneNumberType, d.DisplayName,
		d.PhoneNumber6Type, d.ManagerValue, d.PhoneNumber5Type, d.NameFamilyName,
		d.NameFormatted, d.PhoneNumberValue, d.PhoneNumber5Value, d.AddressPostalCode,
	}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

// NullTimeKey renders a nullable key column the way models.KeyTime does.
func NullTimeKey(t sql.NullTime) string {
	return models.KeyTime(nullTimePtr(t))
}
