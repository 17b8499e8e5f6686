// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/phonographus/config.yaml",
	"/etc/phonographus/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		HomeAssistant: HomeAssistantConfig{
			URL:      "",
			Token:    "",
			EntityID: "",
			AppName:  "YouTube",
			Timeout:  10 * time.Second,
		},
		YouTube: YouTubeConfig{
			ClientID:     "",
			ClientSecret: "",
			TokenPath:    "/data/token.json",
			RedirectURL:  "http://localhost:8080/oauth/callback",
		},
		Database: DatabaseConfig{
			Path: "/data/phonographus.db",
		},
		Poller: PollerConfig{
			Interval:     30 * time.Second,
			PlayCooldown: time.Hour,
			NotFoundTTL:  168 * time.Hour,
		},
		Worker: WorkerConfig{
			PollInterval:         60 * time.Second,
			PIDPath:              "/data/phonographus-worker.pid",
			StaleProcessingAfter: 30 * time.Minute,
		},
		Search: SearchConfig{
			Phase1Size: 10,
			Phase2Size: 15,
			CacheTTL:   720 * time.Hour, // 30 days
		},
		Quota: QuotaConfig{
			StatePath: "/data/quota_state.json",
		},
		Server: ServerConfig{
			Port:    8537,
			Host:    "0.0.0.0",
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence is ENV > File > Defaults. The returned Config has passed
// Validate().
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// HA_URL -> homeassistant.url
	// SEARCH_PHASE1_SIZE -> search.phase1_size
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment noise cannot
// pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Home Assistant mappings
		"ha_url":       "homeassistant.url",
		"ha_token":     "homeassistant.token",
		"ha_entity_id": "homeassistant.entity_id",
		"ha_app_name":  "homeassistant.app_name",
		"ha_timeout":   "homeassistant.timeout",

		// YouTube OAuth mappings
		"yt_client_id":     "youtube.client_id",
		"yt_client_secret": "youtube.client_secret",
		"yt_token_path":    "youtube.token_path",
		"yt_redirect_url":  "youtube.redirect_url",

		// Database mappings
		"database_path": "database.path",

		// Poller mappings
		"poll_interval": "poller.interval",
		"play_cooldown": "poller.play_cooldown",
		"not_found_ttl": "poller.not_found_ttl",

		// Worker mappings
		"worker_poll_interval":          "worker.poll_interval",
		"worker_pid_path":               "worker.pid_path",
		"worker_stale_processing_after": "worker.stale_processing_after",

		// Search pipeline mappings
		"search_phase1_size": "search.phase1_size",
		"search_phase2_size": "search.phase2_size",
		"search_cache_ttl":   "search.cache_ttl",

		// Quota mappings
		"quota_state_path": "quota.state_path",

		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
		"rate_limit_requests":   "api.rate_limit_reqs",
		"rate_limit_window":     "api.rate_limit_window",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
