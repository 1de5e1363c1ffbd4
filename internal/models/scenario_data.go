// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package models

import (
	"time"

	"github.com/google/uuid"
)

// ScenarioData is one recipient's outcome row from a scenario's full CSV.
// The trailing block holds the SCIM directory attributes exported with
// the recipient.
type ScenarioData struct {
	ID         uuid.UUID `json:"id"`
	ScenarioID string    `json:"scenario_id"`

	Email                       string     `json:"email"`
	RecipientName               string     `json:"recipient_name"`
	RecipientGroup              string     `json:"recipient_group"`
	Department                  string     `json:"department"`
	Location                    string     `json:"location"`
	OpenedEmail                 bool       `json:"opened_email"`
	OpenedEmailTimestamp        *time.Time `json:"opened_email_timestamp,omitempty"`
	ClickedLink                 bool       `json:"clicked_link"`
	ClickedLinkTimestamp        *time.Time `json:"clicked_link_timestamp,omitempty"`
	SubmittedForm               bool       `json:"submitted_form"`
	Username                    string     `json:"username"`
	EnteredPassword             bool       `json:"entered_password"`
	SubmittedFormTimestamp      *time.Time `json:"submitted_form_timestamp,omitempty"`
	ReportedPhish               bool       `json:"reported_phish"`
	NewRepeatReporter           string     `json:"new_repeat_reporter"`
	ReportedPhishTimestamp      *time.Time `json:"reported_phish_timestamp,omitempty"`
	TimeToReportSeconds         *int       `json:"time_to_report_seconds,omitempty"`
	RemoteIP                    string     `json:"remote_ip"`
	GeoIPCountry                string     `json:"geoip_country"`
	GeoIPCity                   string     `json:"geoip_city"`
	GeoIPISP                    string     `json:"geoip_isp"`
	LastDSN                     string     `json:"last_dsn"`
	LastEmailStatus             string     `json:"last_email_status"`
	LastEmailStatusTimestamp    *time.Time `json:"last_email_status_timestamp,omitempty"`
	Language                    string     `json:"language"`
	Browser                     string     `json:"browser"`
	UserAgent                   string     `json:"user_agent"`
	Mobile                      bool       `json:"mobile"`
	SecondsSpentOnEducationPage *int       `json:"seconds_spent_on_education_page,omitempty"`
	SubmittedData               bool       `json:"submitted_data"`

	UserType             string `json:"user_type"`
	AddressRegion        string `json:"address_region"`
	Address2Type         string `json:"address2_type"`
	AddressStreetAddress string `json:"address_street_address"`
	Title                string `json:"title"`
	PhoneNumber3Value    string `json:"phone_number3_value"`
	PhoneNumber2Value    string `json:"phone_number2_value"`
	PhoneNumber4Type     string `json:"phone_number4_type"`
	PreferredLanguage    string `json:"preferred_language"`
	Address2Formatted    string `json:"address2_formatted"`
	PhoneNumber6Value    string `json:"phone_number6_value"`
	AddressType          string `json:"address_type"`
	NickName             string `json:"nick_name"`
	AddressCountry       string `json:"address_country"`
	PhoneNumber4Value    string `json:"phone_number4_value"`
	AddressFormatted     string `json:"address_formatted"`
	PhoneNumber2Type     string `json:"phone_number2_type"`
	PhoneNumber3Type     string `json:"phone_number3_type"`
	AddressLocality      string `json:"address_locality"`
	NameGivenName        string `json:"name_given_name"`
	PhoneNumberType      string `json:"phone_number_type"`
	DisplayName          string `json:"display_name"`
	PhoneNumber6Type     string `json:"phone_number6_type"`
	ManagerValue         string `json:"manager_value"`
	PhoneNumber5Type     string `json:"phone_number5_type"`
	NameFamilyName       string `json:"name_family_name"`
	NameFormatted        string `json:"name_formatted"`
	PhoneNumberValue     string `json:"phone_number_value"`
	PhoneNumber5Value    string `json:"phone_number5_value"`
	AddressPostalCode    string `json:"address_postal_code"`
}

// ScenarioDataKey identifies a recipient outcome within a scenario.
type ScenarioDataKey struct {
	Email                    string
	LastEmailStatusTimestamp string // KeyTime form
}

// Key returns the natural key of d.
func (d *ScenarioData) Key() ScenarioDataKey {
	return ScenarioDataKey{
		Email:                    d.Email,
		LastEmailStatusTimestamp: KeyTime(d.LastEmailStatusTimestamp),
	}
}

// scenarioDataTimestamps lists the timestamp columns in header order.
var scenarioDataTimestamps = []string{
	"Opened Email Timestamp",
	"Clicked Link Timestamp",
	"Submitted Form Timestamp",
	"Reported Phish Timestamp",
	"Last Email Status Timestamp",
}

// ParseScenarioDataRow maps a full results CSV row, keyed by header, to a
// ScenarioData. ID and ScenarioID are left for the caller.
func ParseScenarioDataRow(fields map[string]string) (ScenarioData, error) {
	times := make(map[string]*time.Time, len(scenarioDataTimestamps))
	for _, col := range scenarioDataTimestamps {
		t, err := parseTimestampField(col, fields[col])
		if err != nil {
			return ScenarioData{}, err
		}
		times[col] = t
	}

	timeToReport, err := parseOptionalInt("Time to Report (in seconds)", fields["Time to Report (in seconds)"])
	if err != nil {
		return ScenarioData{}, err
	}
	educationSeconds, err := parseOptionalInt("Seconds Spent on Education Page", fields["Seconds Spent on Education Page"])
	if err != nil {
		return ScenarioData{}, err
	}

	username := fields["Username"]
	if username == "" {
		username = fields["userName"]
	}

	return ScenarioData{
		Email:                       fields["Email"],
		RecipientName:               fields["Recipient Name"],
		RecipientGroup:              fields["Recipient Group"],
		Department:                  fields["Department"],
		Location:                    fields["Location"],
		OpenedEmail:                 fields["Opened Email?"] == "Yes",
		OpenedEmailTimestamp:        times["Opened Email Timestamp"],
		ClickedLink:                 fields["Clicked Link?"] == "Yes",
		ClickedLinkTimestamp:        times["Clicked Link Timestamp"],
		SubmittedForm:               fields["Submitted Form"] == "Yes",
		Username:                    username,
		EnteredPassword:             fields["Entered Password?"] == "Yes",
		SubmittedFormTimestamp:      times["Submitted Form Timestamp"],
		ReportedPhish:               fields["Reported Phish?"] == "Yes",
		NewRepeatReporter:           fields["New/Repeat Reporter"],
		ReportedPhishTimestamp:      times["Reported Phish Timestamp"],
		TimeToReportSeconds:         timeToReport,
		RemoteIP:                    fields["Remote IP"],
		GeoIPCountry:                fields["GeoIP Country"],
		GeoIPCity:                   fields["GeoIP City"],
		GeoIPISP:                    fields["GeoIP ISP"],
		LastDSN:                     fields["Last DSN"],
		LastEmailStatus:             fields["Last Email Status"],
		LastEmailStatusTimestamp:    times["Last Email Status Timestamp"],
		Language:                    fields["Language"],
		Browser:                     fields["Browser"],
		UserAgent:                   fields["User-Agent"],
		Mobile:                      fields["Mobile?"] == "TRUE",
		SecondsSpentOnEducationPage: educationSeconds,
		SubmittedData:               fields["Submitted Data"] == "Yes",

		UserType:             fields["userType"],
		AddressRegion:        fields["address_region"],
		Address2Type:         fields["address2_type"],
		AddressStreetAddress: fields["address_streetAddress"],
		Title:                fields["title"],
		PhoneNumber3Value:    fields["phoneNumber3_value"],
		PhoneNumber2Value:    fields["phoneNumber2_value"],
		PhoneNumber4Type:     fields["phoneNumber4_type"],
		PreferredLanguage:    fields["preferredLanguage"],
		Address2Formatted:    fields["address2_formatted"],
		PhoneNumber6Value:    fields["phoneNumber6_value"],
		AddressType:          fields["address_type"],
		NickName:             fields["nickName"],
		AddressCountry:       fields["address_country"],
		PhoneNumber4Value:    fields["phoneNumber4_value"],
		AddressFormatted:     fields["address_formatted"],
		PhoneNumber2Type:     fields["phoneNumber2_type"],
		PhoneNumber3Type:     fields["phoneNumber3_type"],
		AddressLocality:      fields["address_locality"],
		NameGivenName:        fields["name_givenName"],
		PhoneNumberType:      fields["phoneNumber_type"],
		DisplayName:          fields["displayName"],
		PhoneNumber6Type:     fields["phoneNumber6_type"],
		ManagerValue:         fields["manager_value"],
		PhoneNumber5Type:     fields["phoneNumber5_type"],
		NameFamilyName:       fields["name_familyName"],
		NameFormatted:        fields["name_formatted"],
		PhoneNumberValue:     fields["phoneNumber_value"],
		PhoneNumber5Value:    fields["phoneNumber5_value"],
		AddressPostalCode:    fields["address_postalCode"],
	}, nil
}
