// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package models

import (
	"sort"
	"time"
)

// Company is a tenant. Each tenant has its own API key and shares the
// upstream quota with every other tenant.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	GroupName string    `json:"group_name,omitempty"`
	APIKey    string    `json:"-"`
	DateAdded time.Time `json:"date_added"`
}

// SortCompanies orders tenants by Name, then ID.
func SortCompanies(companies []Company) {
	sort.SliceStable(companies, func(i, j int) bool {
		if companies[i].Name != companies[j].Name {
			return companies[i].Name < companies[j].Name
		}
		return companies[i].ID < companies[j].ID
	})
}

// Settings keys.
const (
	SettingAPIURL    = "ApiUrl"
	SettingLastRun   = "LastRun"
	SettingLastGroup = "LastGroup"
	SettingBatchSize = "BatchSize"
)
