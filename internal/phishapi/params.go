// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package phishapi

import (
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/phishsync/internal/models"
)

// Query parameter names understood by the scenarios endpoint.
const (
	ParamStartedAfter  = "filter[started_after]"
	ParamStartedBefore = "filter[started_before]"
	ParamPage          = "page"
	ParamPerPage       = "per_page"
)

// Params builds request query parameters. The zero value is ready to use
// and every setter returns the receiver for chaining.
type Params struct {
	values url.Values
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{}
}

func (p *Params) set(key, value string) *Params {
	if p.values == nil {
		p.values = url.Values{}
	}
	p.values.Set(key, value)
	return p
}

// StartedAfter restricts results to scenarios started after t.
func (p *Params) StartedAfter(t time.Time) *Params {
	return p.set(ParamStartedAfter, models.FormatCursor(t))
}

// StartedBefore restricts results to scenarios started before t.
func (p *Params) StartedBefore(t time.Time) *Params {
	return p.set(ParamStartedBefore, models.FormatCursor(t))
}

// Page selects a 1-based result page.
func (p *Params) Page(n int) *Params {
	return p.set(ParamPage, strconv.Itoa(n))
}

// PerPage sets the page size.
func (p *Params) PerPage(n int) *Params {
	return p.set(ParamPerPage, strconv.Itoa(n))
}

// Build returns a copy of the accumulated values.
func (p *Params) Build() url.Values {
	out := make(url.Values, len(p.values))
	for k, v := range p.values {
		out[k] = append([]string(nil), v...)
	}
	return out
}
