// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package phishapi

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// BusyMarker prefixes response bodies sent while the API token is busy.
const BusyMarker = "API Token Busy"

// DefaultBusyWait is used when a busy body carries no parsable wait.
const DefaultBusyWait = 5 * time.Second

var busyWaitPattern = regexp.MustCompile(`API Token Busy: (\d+\.?\d*) seconds remaining`)

// isBusy reports whether body is a token-busy marker.
func isBusy(body []byte) bool {
	return strings.HasPrefix(string(body), BusyMarker)
}

// BusyWait extracts the advised wait from a token-busy body.
func BusyWait(body string) time.Duration {
	m := busyWaitPattern.FindStringSubmatch(body)
	if m == nil {
		return DefaultBusyWait
	}
	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return DefaultBusyWait
	}
	return time.Duration(seconds * float64(time.Second))
}

// RetryAfter parses a Retry-After header given as delta-seconds or an
// HTTP-date. ok is false when the header is absent or unparsable.
func RetryAfter(h http.Header, now time.Time) (wait time.Duration, ok bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// throttleWait decides the wait for a throttled response. A structured
// Retry-After header wins over the text marker.
func throttleWait(h http.Header, body []byte, now time.Time) time.Duration {
	if wait, ok := RetryAfter(h, now); ok {
		return wait
	}
	return BusyWait(string(body))
}
