// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/phishsync/internal/config"
	"github.com/tomtom215/phishsync/internal/logging"
	"github.com/tomtom215/phishsync/internal/models"
)

var (
	// ErrMissingSettings means ApiUrl or LastRun is not configured.
	ErrMissingSettings = errors.New("no settings configured for ApiUrl or LastRun")
	// ErrInvalidCursor means the stored LastRun cannot be parsed.
	ErrInvalidCursor = errors.New("stored LastRun is not a valid cursor")
)

// Settings wraps the settings table with typed accessors.
type Settings struct {
	store SettingsStore
}

// NewSettings returns typed accessors over store.
func NewSettings(store SettingsStore) Settings {
	return Settings{store: store}
}

func (s Settings) required(ctx context.Context, key string) (string, error) {
	value, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrMissingSettings, key)
	}
	return value, nil
}

// APIBaseURL returns the upstream base URL.
func (s Settings) APIBaseURL(ctx context.Context) (string, error) {
	return s.required(ctx, models.SettingAPIURL)
}

// LastRunCursor returns the incremental discovery cursor.
func (s Settings) LastRunCursor(ctx context.Context) (time.Time, error) {
	raw, err := s.required(ctx, models.SettingLastRun)
	if err != nil {
		return time.Time{}, err
	}
	cursor, err := models.ParseCursor(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %w", ErrInvalidCursor, raw, err)
	}
	return cursor, nil
}

// SetLastRunCursor stores t as the next discovery cursor.
func (s Settings) SetLastRunCursor(ctx context.Context, t time.Time) error {
	return s.store.SetSetting(ctx, models.SettingLastRun, models.FormatCursor(t))
}

// SetLastGroup records the group of the last tenant processed.
func (s Settings) SetLastGroup(ctx context.Context, group string) error {
	return s.store.SetSetting(ctx, models.SettingLastGroup, group)
}

// BatchSize returns the BatchSize setting when it holds a positive
// integer, and fallback otherwise.
func (s Settings) BatchSize(ctx context.Context, fallback int) int {
	raw, ok, err := s.store.GetSetting(ctx, models.SettingBatchSize)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to read BatchSize setting, using configured value")
		return fallback
	}
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		logging.Ctx(ctx).Warn().Str("value", raw).Msg("Ignoring invalid BatchSize setting")
		return fallback
	}
	return n
}

// Seed creates or refreshes the configured tenants and fills ApiUrl and
// LastRun when they are not set yet. Existing settings are never
// overwritten, so the cursor advanced by earlier runs survives restarts.
func Seed(ctx context.Context, store Seeder, cfg *config.Config) error {
	for _, t := range cfg.Tenants {
		c := models.Company{Name: t.Name, GroupName: t.GroupName, APIKey: t.APIKey}
		created, err := store.EnsureCompany(ctx, &c)
		if err != nil {
			return fmt.Errorf("failed to seed tenant %s: %w", t.Name, err)
		}
		logging.Info().Str("tenant", c.Name).Str("company_id", c.ID).Bool("created", created).Msg("Tenant seeded")
	}

	seeds := []struct{ key, value string }{
		{models.SettingAPIURL, strings.TrimSpace(cfg.Ingest.SeedAPIURL)},
		{models.SettingLastRun, strings.TrimSpace(cfg.Ingest.SeedLastRun)},
	}
	for _, seed := range seeds {
		if seed.value == "" {
			continue
		}
		if seed.key == models.SettingLastRun {
			cursor, err := models.ParseCursor(seed.value)
			if err != nil {
				return fmt.Errorf("%w: seed value %q: %w", ErrInvalidCursor, seed.value, err)
			}
			seed.value = models.FormatCursor(cursor)
		}

		_, ok, err := store.GetSetting(ctx, seed.key)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", seed.key, err)
		}
		if ok {
			continue
		}
		if err := store.SetSetting(ctx, seed.key, seed.value); err != nil {
			return fmt.Errorf("failed to seed %s: %w", seed.key, err)
		}
		logging.Info().Str("key", seed.key).Msg("Setting seeded")
	}
	return nil
}
