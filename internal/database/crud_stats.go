// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/phonographus/phonographus/internal/models"
)

// statsSummaryKey is the stats_cache row holding the precomputed summary.
const statsSummaryKey = "summary"

// Stats is the precomputed summary served by the read API. It is refreshed
// periodically rather than computed per request.
type Stats struct {
	TotalVideos     int        `json:"total_videos"`
	Likes           int        `json:"likes"`
	Dislikes        int        `json:"dislikes"`
	TotalPlays      int        `json:"total_plays"`
	NotFoundEntries int        `json:"not_found_entries"`
	SearchCacheSize int        `json:"search_cache_size"`
	QueuePending    int        `json:"queue_pending"`
	QueueProcessing int        `json:"queue_processing"`
	QueueCompleted  int        `json:"queue_completed"`
	QueueFailed     int        `json:"queue_failed"`
	LastPlayedAt    *time.Time `json:"last_played_at,omitempty"`
	RefreshedAt     time.Time  `json:"refreshed_at"`
}

// RefreshStats recomputes the summary from the live tables and stores it in
// stats_cache.
func (db *DB) RefreshStats(ctx context.Context) (*Stats, error) {
	stats, err := db.computeStats(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stats: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO stats_cache (key, value, refreshed_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, refreshed_at = excluded.refreshed_at`,
		statsSummaryKey, string(payload), formatTime(stats.RefreshedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to store stats cache: %w", err)
	}
	return stats, nil
}

// GetStats returns the cached summary, or ErrNotFound if it has never been
// refreshed.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var payload string
	err := db.conn.QueryRowContext(ctx,
		`SELECT value FROM stats_cache WHERE key = ?`, statsSummaryKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stats cache: %w", err)
	}

	var stats Stats
	if err := json.Unmarshal([]byte(payload), &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stats cache: %w", err)
	}
	return &stats, nil
}

// computeStats runs the aggregate queries behind RefreshStats.
func (db *DB) computeStats(ctx context.Context) (*Stats, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stats := &Stats{RefreshedAt: time.Now().UTC()}

	var lastPlayed *string
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN yt_video_id IS NOT NULL THEN 1 END),
			COUNT(CASE WHEN rating = 'like' THEN 1 END),
			COUNT(CASE WHEN rating = 'dislike' THEN 1 END),
			COALESCE(SUM(play_count), 0),
			COUNT(CASE WHEN yt_video_id IS NULL AND pending_reason = ? THEN 1 END),
			MAX(date_last_played)
		FROM videos`, models.PendingReasonNotFound).Scan(
		&stats.TotalVideos, &stats.Likes, &stats.Dislikes,
		&stats.TotalPlays, &stats.NotFoundEntries, &lastPlayed)
	if err != nil {
		return nil, fmt.Errorf("failed to compute video stats: %w", err)
	}
	if stats.LastPlayedAt, err = parseTimePtr(lastPlayed); err != nil {
		return nil, fmt.Errorf("bad max date_last_played: %w", err)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_cache WHERE expires_at >= ?`,
		formatTime(stats.RefreshedAt)).Scan(&stats.SearchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cache stats: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute queue stats: %w", err)
	}
	defer closeQuietly(rows)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan queue stats: %w", err)
		}
		switch models.QueueStatus(status) {
		case models.StatusPending:
			stats.QueuePending = n
		case models.StatusProcessing:
			stats.QueueProcessing = n
		case models.StatusCompleted:
			stats.QueueCompleted = n
		case models.StatusFailed:
			stats.QueueFailed = n
		}
	}
	return stats, rows.Err()
}
