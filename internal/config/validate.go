// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for missing required fields and
// malformed values. It returns the first problem found.
func (c *Config) Validate() error {
	if c.HomeAssistant.URL == "" {
		return fmt.Errorf("HA_URL is required")
	}
	if err := validateURL(c.HomeAssistant.URL); err != nil {
		return fmt.Errorf("HA_URL: %w", err)
	}
	if c.HomeAssistant.Token == "" {
		return fmt.Errorf("HA_TOKEN is required")
	}
	if c.HomeAssistant.EntityID == "" {
		return fmt.Errorf("HA_ENTITY_ID is required")
	}
	if !strings.Contains(c.HomeAssistant.EntityID, ".") {
		return fmt.Errorf("HA_ENTITY_ID %q is not a valid entity id (expected domain.object_id)", c.HomeAssistant.EntityID)
	}
	if c.HomeAssistant.Timeout <= 0 {
		return fmt.Errorf("HA_TIMEOUT must be positive, got %s", c.HomeAssistant.Timeout)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}

	if c.Poller.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.Poller.Interval)
	}
	if c.Poller.PlayCooldown < 0 {
		return fmt.Errorf("PLAY_COOLDOWN must not be negative, got %s", c.Poller.PlayCooldown)
	}
	if c.Poller.NotFoundTTL < 0 {
		return fmt.Errorf("NOT_FOUND_TTL must not be negative, got %s", c.Poller.NotFoundTTL)
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive, got %s", c.Worker.PollInterval)
	}
	if c.Worker.PIDPath == "" {
		return fmt.Errorf("WORKER_PID_PATH is required")
	}
	if c.Worker.StaleProcessingAfter <= 0 {
		return fmt.Errorf("WORKER_STALE_PROCESSING_AFTER must be positive, got %s", c.Worker.StaleProcessingAfter)
	}

	if c.Search.Phase1Size < 1 || c.Search.Phase1Size > 50 {
		return fmt.Errorf("SEARCH_PHASE1_SIZE must be in [1, 50], got %d", c.Search.Phase1Size)
	}
	if c.Search.Phase2Size < 0 || c.Search.Phase2Size > 50 {
		return fmt.Errorf("SEARCH_PHASE2_SIZE must be in [0, 50], got %d", c.Search.Phase2Size)
	}
	if c.Search.Phase1Size+c.Search.Phase2Size > 50 {
		return fmt.Errorf("SEARCH_PHASE1_SIZE + SEARCH_PHASE2_SIZE must not exceed 50, got %d",
			c.Search.Phase1Size+c.Search.Phase2Size)
	}
	if c.Search.CacheTTL <= 0 {
		return fmt.Errorf("SEARCH_CACHE_TTL must be positive, got %s", c.Search.CacheTTL)
	}

	if c.Quota.StatePath == "" {
		return fmt.Errorf("QUOTA_STATE_PATH is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}

	if c.API.DefaultPageSize < 1 {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be positive, got %d", c.API.DefaultPageSize)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("API_MAX_PAGE_SIZE (%d) must be >= API_DEFAULT_PAGE_SIZE (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of trace/debug/info/warn/error/fatal", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT %q is not one of json/console", c.Logging.Format)
	}

	return nil
}

// validateURL rejects URLs without an http(s) scheme or host.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}
