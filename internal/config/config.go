// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package config holds all application configuration loaded from environment
// variables and config files.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Validation:
// Load() validates all required fields and returns an error if required
// settings are missing (HA_URL, HA_TOKEN, HA_ENTITY_ID) or malformed
// (invalid URL, negative intervals, out-of-range phase sizes).
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
package config

import "time"

// Config is the root configuration shared by the server and worker binaries.
type Config struct {
	HomeAssistant HomeAssistantConfig `koanf:"homeassistant"`
	YouTube       YouTubeConfig       `koanf:"youtube"`
	Database      DatabaseConfig      `koanf:"database"`
	Poller        PollerConfig        `koanf:"poller"`
	Worker        WorkerConfig        `koanf:"worker"`
	Search        SearchConfig        `koanf:"search"`
	Quota         QuotaConfig         `koanf:"quota"`
	Server        ServerConfig        `koanf:"server"`
	API           APIConfig           `koanf:"api"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// HomeAssistantConfig holds connection settings for the Home Assistant
// state endpoint that reports what the media player is doing.
//
// Environment Variables:
//   - HA_URL: Home Assistant base URL (e.g., http://homeassistant.local:8123)
//   - HA_TOKEN: Long-lived access token
//   - HA_ENTITY_ID: Media player entity to observe (e.g., media_player.living_room_tv)
//   - HA_APP_NAME: app_name attribute value that identifies YouTube playback
//   - HA_TIMEOUT: HTTP timeout for state requests (default: 10s)
type HomeAssistantConfig struct {
	URL      string        `koanf:"url"`
	Token    string        `koanf:"token"`
	EntityID string        `koanf:"entity_id"`
	AppName  string        `koanf:"app_name"`
	Timeout  time.Duration `koanf:"timeout"`
}

// YouTubeConfig holds OAuth credentials and token storage for the YouTube
// Data API client. The token file is written with mode 0600 and rewritten
// in place as the OAuth library rotates access tokens.
//
// Environment Variables:
//   - YT_CLIENT_ID / YT_CLIENT_SECRET: OAuth 2.0 client credentials
//   - YT_TOKEN_PATH: Path to the persisted OAuth token JSON (default: /data/token.json)
//   - YT_REDIRECT_URL: OAuth redirect for the one-time authorize flow
type YouTubeConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	TokenPath    string `koanf:"token_path"`
	RedirectURL  string `koanf:"redirect_url"`
}

// DatabaseConfig holds SQLite settings. The database always runs in WAL
// mode with synchronous=NORMAL and a 5 s busy timeout.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// PollerConfig controls the playback poller that observes the media player.
//
// Environment Variables:
//   - POLL_INTERVAL: Time between state checks (default: 30s)
//   - PLAY_COOLDOWN: Per-track cooldown before a replay counts again (default: 1h)
//   - NOT_FOUND_TTL: Suppression window after a failed search (default: 168h)
type PollerConfig struct {
	Interval     time.Duration `koanf:"interval"`
	PlayCooldown time.Duration `koanf:"play_cooldown"`
	NotFoundTTL  time.Duration `koanf:"not_found_ttl"`
}

// WorkerConfig controls the singleton queue worker.
//
// Environment Variables:
//   - WORKER_POLL_INTERVAL: Minimum time between processed items (default: 60s)
//   - WORKER_PID_PATH: PID lock file path (default: /data/phonographus-worker.pid)
//   - WORKER_STALE_PROCESSING_AFTER: Age at which a processing item left by a
//     crashed worker is reset to pending (default: 30m)
type WorkerConfig struct {
	PollInterval         time.Duration `koanf:"poll_interval"`
	PIDPath              string        `koanf:"pid_path"`
	StaleProcessingAfter time.Duration `koanf:"stale_processing_after"`
}

// SearchConfig controls the duration-anchored search pipeline.
//
// Phase1Size videos are fetched for exact duration matching first;
// Phase2Size more are fetched only when phase 1 yields nothing.
//
// Environment Variables:
//   - SEARCH_PHASE1_SIZE (default: 10), SEARCH_PHASE2_SIZE (default: 15)
//   - SEARCH_CACHE_TTL: Search-result cache lifetime (default: 720h = 30 days)
type SearchConfig struct {
	Phase1Size int           `koanf:"phase1_size"`
	Phase2Size int           `koanf:"phase2_size"`
	CacheTTL   time.Duration `koanf:"cache_ttl"`
}

// QuotaConfig controls quota block persistence. The state file lives outside
// the database so a wiped database cannot forget an active quota block.
type QuotaConfig struct {
	StatePath string `koanf:"state_path"`
}

// ServerConfig holds HTTP server settings for the administrative surface.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig holds pagination and rate-limit settings for the read API.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds log level and output format settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
