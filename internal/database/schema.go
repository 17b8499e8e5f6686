// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package database

import (
	"context"
	"fmt"
)

// schemaStatements create all tables and indexes. Every statement is
// idempotent so the schema can run on each startup.
//
// The videos table carries only settled state; pending work lives in the
// queue table. The one exception is the not-found cache: a videos row with
// yt_video_id NULL and pending_reason='not_found' is a negative assertion
// about a content hash, not a work item.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS videos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ha_title TEXT NOT NULL,
		ha_artist TEXT,
		ha_app_name TEXT,
		ha_duration INTEGER,
		ha_content_hash TEXT,
		yt_video_id TEXT UNIQUE,
		yt_title TEXT,
		yt_channel TEXT,
		yt_channel_id TEXT,
		yt_description TEXT,
		yt_published_at TEXT,
		yt_category_id TEXT,
		yt_live_broadcast TEXT,
		yt_location TEXT,
		yt_recording_date TEXT,
		yt_duration INTEGER,
		yt_url TEXT,
		rating TEXT NOT NULL DEFAULT 'none',
		rating_score INTEGER NOT NULL DEFAULT 0,
		play_count INTEGER NOT NULL DEFAULT 0,
		date_added TEXT NOT NULL,
		date_last_played TEXT,
		source TEXT NOT NULL DEFAULT 'ha_live',
		pending_reason TEXT,
		last_attempt_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_content_hash ON videos(ha_content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_ha_title ON videos(ha_title)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_last_played ON videos(date_last_played)`,

	`CREATE TABLE IF NOT EXISTS queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		priority INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		payload TEXT NOT NULL,
		requested_at TEXT NOT NULL,
		last_attempt TEXT,
		completed_at TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		api_response_data TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_claim ON queue(status, priority, id)`,

	`CREATE TABLE IF NOT EXISTS search_cache (
		yt_video_id TEXT PRIMARY KEY,
		yt_title TEXT NOT NULL,
		yt_channel TEXT,
		yt_channel_id TEXT,
		yt_duration INTEGER NOT NULL,
		yt_description TEXT,
		yt_published_at TEXT,
		yt_category_id TEXT,
		cached_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_search_cache_duration ON search_cache(yt_duration)`,
	`CREATE INDEX IF NOT EXISTS idx_search_cache_expires ON search_cache(expires_at)`,

	`CREATE TABLE IF NOT EXISTS api_usage (
		date TEXT PRIMARY KEY,
		h00 INTEGER NOT NULL DEFAULT 0, h01 INTEGER NOT NULL DEFAULT 0,
		h02 INTEGER NOT NULL DEFAULT 0, h03 INTEGER NOT NULL DEFAULT 0,
		h04 INTEGER NOT NULL DEFAULT 0, h05 INTEGER NOT NULL DEFAULT 0,
		h06 INTEGER NOT NULL DEFAULT 0, h07 INTEGER NOT NULL DEFAULT 0,
		h08 INTEGER NOT NULL DEFAULT 0, h09 INTEGER NOT NULL DEFAULT 0,
		h10 INTEGER NOT NULL DEFAULT 0, h11 INTEGER NOT NULL DEFAULT 0,
		h12 INTEGER NOT NULL DEFAULT 0, h13 INTEGER NOT NULL DEFAULT 0,
		h14 INTEGER NOT NULL DEFAULT 0, h15 INTEGER NOT NULL DEFAULT 0,
		h16 INTEGER NOT NULL DEFAULT 0, h17 INTEGER NOT NULL DEFAULT 0,
		h18 INTEGER NOT NULL DEFAULT 0, h19 INTEGER NOT NULL DEFAULT 0,
		h20 INTEGER NOT NULL DEFAULT 0, h21 INTEGER NOT NULL DEFAULT 0,
		h22 INTEGER NOT NULL DEFAULT 0, h23 INTEGER NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS api_call_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		method TEXT NOT NULL,
		quota_cost INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_call_log_created ON api_call_log(created_at)`,

	`CREATE TABLE IF NOT EXISTS stats_cache (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		refreshed_at TEXT NOT NULL
	)`,
}

// initSchema creates all tables and indexes.
func (db *DB) initSchema(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
