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

	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/models"
)

const searchCacheColumns = `yt_video_id, yt_title, yt_channel, yt_channel_id,
	yt_duration, yt_description, yt_published_at, yt_category_id, cached_at, expires_at`

// scanCachedResult maps one row in searchCacheColumns order.
func scanCachedResult(row rowScanner) (*models.CachedSearchResult, error) {
	var r models.CachedSearchResult
	var publishedAt *string
	var cachedAt, expiresAt string

	err := row.Scan(&r.YTVideoID, &r.YTTitle, &r.YTChannel, &r.YTChannelID,
		&r.YTDuration, &r.YTDescription, &publishedAt, &r.YTCategoryID, &cachedAt, &expiresAt)
	if err != nil {
		return nil, err
	}

	if r.YTPublishedAt, err = parseTimePtr(publishedAt); err != nil {
		return nil, fmt.Errorf("bad yt_published_at: %w", err)
	}
	if r.CachedAt, err = parseTime(cachedAt); err != nil {
		return nil, fmt.Errorf("bad cached_at: %w", err)
	}
	if r.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("bad expires_at: %w", err)
	}
	return &r, nil
}

// CacheSearchResults inserts or replaces a batch of opportunistically
// fetched videos with the given TTL. Every video fetched during a search
// lands here regardless of whether it was the eventual match.
func (db *DB) CacheSearchResults(ctx context.Context, results []*models.CachedSearchResult, ttl time.Duration) error {
	if len(results) == 0 {
		return nil
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO search_cache (
				yt_video_id, yt_title, yt_channel, yt_channel_id, yt_duration,
				yt_description, yt_published_at, yt_category_id, cached_at, expires_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare cache insert: %w", err)
		}
		defer closeQuietly(stmt)

		for _, r := range results {
			_, err := stmt.ExecContext(ctx,
				r.YTVideoID, r.YTTitle, r.YTChannel, r.YTChannelID, r.YTDuration,
				r.YTDescription, formatTimePtr(r.YTPublishedAt), r.YTCategoryID,
				formatTime(now), formatTime(expires))
			if err != nil {
				return fmt.Errorf("failed to cache search result %s: %w", r.YTVideoID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Debug().Int("count", len(results)).Msg("Search results cached")
	return nil
}

// CachedByDurationRange returns unexpired cached videos whose duration is in
// [d-tol, d+tol].
func (db *DB) CachedByDurationRange(ctx context.Context, d, tol int) ([]*models.CachedSearchResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+searchCacheColumns+` FROM search_cache
		WHERE yt_duration BETWEEN ? AND ? AND expires_at >= ?
		ORDER BY cached_at DESC`,
		d-tol, d+tol, formatTime(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to query search cache by duration: %w", err)
	}
	defer closeQuietly(rows)

	var out []*models.CachedSearchResult
	for rows.Next() {
		r, err := scanCachedResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CachedByTitleAndDuration returns the most recently cached unexpired video
// whose title contains the substring and whose duration is in [d-tol, d+tol],
// or ErrNotFound.
func (db *DB) CachedByTitleAndDuration(ctx context.Context, titleSubstr string, d, tol int) (*models.CachedSearchResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRowContext(ctx, `
		SELECT `+searchCacheColumns+` FROM search_cache
		WHERE yt_title LIKE '%' || ? || '%'
		  AND yt_duration BETWEEN ? AND ?
		  AND expires_at >= ?
		ORDER BY cached_at DESC
		LIMIT 1`,
		titleSubstr, d-tol, d+tol, formatTime(time.Now()))

	r, err := scanCachedResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query search cache by title: %w", err)
	}
	return r, nil
}

// PurgeExpiredSearchCache deletes cache entries past their expiry and
// returns the number removed.
func (db *DB) PurgeExpiredSearchCache(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM search_cache WHERE expires_at < ?`, formatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to purge search cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge search cache: %w", err)
	}
	if n > 0 {
		logging.Info().Int64("count", n).Msg("Purged expired search cache entries")
	}
	return n, nil
}
