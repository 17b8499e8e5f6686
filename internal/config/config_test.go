// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package config

import (
	"testing"
	"time"
)

// validConfig returns defaults with the required fields filled in.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.HomeAssistant.URL = "http://homeassistant.local:8123"
	cfg.HomeAssistant.Token = "long-lived-token"
	cfg.HomeAssistant.EntityID = "media_player.living_room_tv"
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing HA URL", func(c *Config) { c.HomeAssistant.URL = "" }},
		{"missing HA token", func(c *Config) { c.HomeAssistant.Token = "" }},
		{"missing entity id", func(c *Config) { c.HomeAssistant.EntityID = "" }},
		{"entity id without domain", func(c *Config) { c.HomeAssistant.EntityID = "living_room_tv" }},
		{"missing database path", func(c *Config) { c.Database.Path = "" }},
		{"missing pid path", func(c *Config) { c.Worker.PIDPath = "" }},
		{"missing quota state path", func(c *Config) { c.Quota.StatePath = "" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestValidateMalformedValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad HA URL scheme", func(c *Config) { c.HomeAssistant.URL = "ftp://ha.local" }},
		{"zero poll interval", func(c *Config) { c.Poller.Interval = 0 }},
		{"negative cooldown", func(c *Config) { c.Poller.PlayCooldown = -time.Hour }},
		{"zero worker interval", func(c *Config) { c.Worker.PollInterval = 0 }},
		{"phase1 zero", func(c *Config) { c.Search.Phase1Size = 0 }},
		{"phase sizes exceed batch cap", func(c *Config) { c.Search.Phase1Size = 30; c.Search.Phase2Size = 30 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"max page below default", func(c *Config) { c.API.MaxPageSize = 5 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := validConfig()
			c.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	cases := []struct {
		env  string
		want string
	}{
		{"HA_URL", "homeassistant.url"},
		{"HA_ENTITY_ID", "homeassistant.entity_id"},
		{"YT_CLIENT_SECRET", "youtube.client_secret"},
		{"DATABASE_PATH", "database.path"},
		{"SEARCH_PHASE1_SIZE", "search.phase1_size"},
		{"WORKER_POLL_INTERVAL", "worker.poll_interval"},
		{"NOT_FOUND_TTL", "poller.not_found_ttl"},
		{"QUOTA_STATE_PATH", "quota.state_path"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},   // unmapped noise is skipped
		{"RANDOM", ""}, // unmapped noise is skipped
	}
	for _, c := range cases {
		if got := envTransformFunc(c.env); got != c.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", c.env, got, c.want)
		}
	}
}

func TestDefaultsMatchDocumentedValues(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Poller.Interval != 30*time.Second {
		t.Errorf("default poll interval = %s, want 30s", cfg.Poller.Interval)
	}
	if cfg.Poller.PlayCooldown != time.Hour {
		t.Errorf("default play cooldown = %s, want 1h", cfg.Poller.PlayCooldown)
	}
	if cfg.Poller.NotFoundTTL != 168*time.Hour {
		t.Errorf("default not-found TTL = %s, want 168h", cfg.Poller.NotFoundTTL)
	}
	if cfg.Worker.PollInterval != 60*time.Second {
		t.Errorf("default worker interval = %s, want 60s", cfg.Worker.PollInterval)
	}
	if cfg.Search.Phase1Size != 10 || cfg.Search.Phase2Size != 15 {
		t.Errorf("default phase sizes = %d/%d, want 10/15", cfg.Search.Phase1Size, cfg.Search.Phase2Size)
	}
	if cfg.Search.CacheTTL != 720*time.Hour {
		t.Errorf("default search cache TTL = %s, want 720h", cfg.Search.CacheTTL)
	}
}
