// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package ingest

import (
	"sync"
	"time"

	"github.com/tomtom215/phishsync/internal/metrics"
)

// Cooldowns tracks tenants that exhausted their throttling retries and
// must not be contacted before a deadline. State is in memory only.
type Cooldowns struct {
	mu    sync.Mutex
	clock Clock
	until map[string]time.Time
}

// NewCooldowns creates an empty tracker.
func NewCooldowns(clock Clock) *Cooldowns {
	return &Cooldowns{clock: clock, until: make(map[string]time.Time)}
}

// IsBlocked reports whether tenant is cooling down and for how much longer.
// Expired entries are pruned.
func (c *Cooldowns) IsBlocked(tenant string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	until, ok := c.until[tenant]
	if !ok {
		return 0, false
	}
	remaining := until.Sub(c.clock.Now())
	if remaining <= 0 {
		delete(c.until, tenant)
		metrics.SetActiveCooldowns(len(c.until))
		return 0, false
	}
	return remaining, true
}

// Block puts tenant in cooldown until the given time.
func (c *Cooldowns) Block(tenant string, until time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.until[tenant] = until
	metrics.RecordTenantBlocked(len(c.until))
}

// Clear removes any cooldown for tenant.
func (c *Cooldowns) Clear(tenant string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.until, tenant)
	metrics.SetActiveCooldowns(len(c.until))
}

// Until returns the stored deadline for tenant, expired or not.
func (c *Cooldowns) Until(tenant string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	until, ok := c.until[tenant]
	return until, ok
}

// Len returns the number of tracked tenants.
func (c *Cooldowns) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.until)
}
