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

	"github.com/phonographus/phonographus/internal/hash"
	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/models"
)

// videoColumns is the canonical column order used by every video query.
const videoColumns = `id, ha_title, ha_artist, ha_app_name, ha_duration, ha_content_hash,
	yt_video_id, yt_title, yt_channel, yt_channel_id, yt_description, yt_published_at,
	yt_category_id, yt_live_broadcast, yt_location, yt_recording_date, yt_duration, yt_url,
	rating, rating_score, play_count, date_added, date_last_played, source,
	pending_reason, last_attempt_at`

// rowScanner abstracts *sql.Row and *sql.Rows for scanVideo.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanVideo maps one row in videoColumns order onto a models.Video.
func scanVideo(row rowScanner) (*models.Video, error) {
	var v models.Video
	var rating string
	var dateAdded string
	var publishedAt, recordingDate, dateLastPlayed, lastAttemptAt *string

	err := row.Scan(
		&v.ID, &v.HATitle, &v.HAArtist, &v.HAAppName, &v.HADuration, &v.HAContentHash,
		&v.YTVideoID, &v.YTTitle, &v.YTChannel, &v.YTChannelID, &v.YTDescription, &publishedAt,
		&v.YTCategoryID, &v.YTLiveBroadcast, &v.YTLocation, &recordingDate, &v.YTDuration, &v.YTURL,
		&rating, &v.RatingScore, &v.PlayCount, &dateAdded, &dateLastPlayed, &v.Source,
		&v.PendingReason, &lastAttemptAt,
	)
	if err != nil {
		return nil, err
	}

	v.Rating = models.Rating(rating)
	if v.DateAdded, err = parseTime(dateAdded); err != nil {
		return nil, fmt.Errorf("bad date_added: %w", err)
	}
	if v.YTPublishedAt, err = parseTimePtr(publishedAt); err != nil {
		return nil, fmt.Errorf("bad yt_published_at: %w", err)
	}
	if v.YTRecordingDate, err = parseTimePtr(recordingDate); err != nil {
		return nil, fmt.Errorf("bad yt_recording_date: %w", err)
	}
	if v.DateLastPlayed, err = parseTimePtr(dateLastPlayed); err != nil {
		return nil, fmt.Errorf("bad date_last_played: %w", err)
	}
	if v.LastAttemptAt, err = parseTimePtr(lastAttemptAt); err != nil {
		return nil, fmt.Errorf("bad last_attempt_at: %w", err)
	}
	return &v, nil
}

// UpsertVideo inserts a resolved record keyed by yt_video_id. On conflict the
// platform-resolved fields are overwritten but rating, rating_score,
// play_count, and date_added are preserved. A missing ha_content_hash is
// computed from the observation fields.
func (db *DB) UpsertVideo(ctx context.Context, v *models.Video) error {
	if v.YTVideoID == nil || *v.YTVideoID == "" {
		return fmt.Errorf("upsert requires yt_video_id")
	}
	if v.HAContentHash == nil && v.HATitle != "" {
		artist := ""
		if v.HAArtist != nil {
			artist = *v.HAArtist
		}
		h := hash.Content(v.HATitle, v.HADuration, artist)
		v.HAContentHash = &h
	}
	if v.Rating == "" {
		v.Rating = models.RatingNone
	}
	if v.DateAdded.IsZero() {
		v.DateAdded = time.Now().UTC()
	}
	if v.Source == "" {
		v.Source = models.SourceHALive
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO videos (
				ha_title, ha_artist, ha_app_name, ha_duration, ha_content_hash,
				yt_video_id, yt_title, yt_channel, yt_channel_id, yt_description,
				yt_published_at, yt_category_id, yt_live_broadcast, yt_location,
				yt_recording_date, yt_duration, yt_url,
				rating, rating_score, play_count, date_added, date_last_played,
				source, pending_reason, last_attempt_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
			ON CONFLICT(yt_video_id) DO UPDATE SET
				ha_title = excluded.ha_title,
				ha_artist = excluded.ha_artist,
				ha_app_name = excluded.ha_app_name,
				ha_duration = excluded.ha_duration,
				ha_content_hash = excluded.ha_content_hash,
				yt_title = excluded.yt_title,
				yt_channel = excluded.yt_channel,
				yt_channel_id = excluded.yt_channel_id,
				yt_description = excluded.yt_description,
				yt_published_at = excluded.yt_published_at,
				yt_category_id = excluded.yt_category_id,
				yt_live_broadcast = excluded.yt_live_broadcast,
				yt_location = excluded.yt_location,
				yt_recording_date = excluded.yt_recording_date,
				yt_duration = excluded.yt_duration,
				yt_url = excluded.yt_url,
				date_last_played = COALESCE(excluded.date_last_played, videos.date_last_played),
				source = excluded.source,
				pending_reason = NULL,
				last_attempt_at = excluded.last_attempt_at`,
			v.HATitle, v.HAArtist, v.HAAppName, v.HADuration, v.HAContentHash,
			v.YTVideoID, v.YTTitle, v.YTChannel, v.YTChannelID, v.YTDescription,
			formatTimePtr(v.YTPublishedAt), v.YTCategoryID, v.YTLiveBroadcast, v.YTLocation,
			formatTimePtr(v.YTRecordingDate), v.YTDuration, v.YTURL,
			string(v.Rating), v.RatingScore, v.PlayCount, formatTime(v.DateAdded), formatTimePtr(v.DateLastPlayed),
			v.Source, formatTimePtr(v.LastAttemptAt),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert video %s: %w", *v.YTVideoID, err)
		}
		return nil
	})
}

// GetVideoByYTID returns the video row for a YouTube id, or ErrNotFound.
func (db *DB) GetVideoByYTID(ctx context.Context, ytVideoID string) (*models.Video, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE yt_video_id = ?`, ytVideoID)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video %s: %w", ytVideoID, err)
	}
	return v, nil
}

// RecordPlay atomically increments play_count and stamps date_last_played
// for a known yt_video_id. An unknown id gets a stub row with play_count=1
// so the play is never lost.
func (db *DB) RecordPlay(ctx context.Context, ytVideoID string) error {
	now := formatTime(time.Now())

	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE videos SET play_count = play_count + 1, date_last_played = ? WHERE yt_video_id = ?`,
			now, ytVideoID)
		if err != nil {
			return fmt.Errorf("failed to record play for %s: %w", ytVideoID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to record play for %s: %w", ytVideoID, err)
		}
		if n > 0 {
			return nil
		}

		// Unknown id. Insert a stub; a later search or upsert fills the rest.
		logging.Warn().Str("yt_video_id", ytVideoID).Msg("Recording play for unknown video, inserting stub")
		url := models.WatchURL(ytVideoID)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO videos (ha_title, yt_video_id, yt_url, play_count, date_added, date_last_played, source)
			VALUES ('', ?, ?, 1, ?, ?, ?)`,
			ytVideoID, url, now, now, models.SourceHALive)
		if err != nil {
			return fmt.Errorf("failed to insert play stub for %s: %w", ytVideoID, err)
		}
		return nil
	})
}

// RecordRating transitions rating to the new value and adjusts rating_score
// by the signed delta (like=+1, dislike=-1, none=0). A same-value re-rate
// still increments in the same direction so rating_score tracks the running
// (likes - dislikes) tally.
func (db *DB) RecordRating(ctx context.Context, ytVideoID string, r models.Rating) error {
	if !r.Valid() {
		return fmt.Errorf("invalid rating %q", r)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE videos SET rating = ?, rating_score = rating_score + ? WHERE yt_video_id = ?`,
			string(r), r.ScoreDelta(), ytVideoID)
		if err != nil {
			return fmt.Errorf("failed to record rating for %s: %w", ytVideoID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to record rating for %s: %w", ytVideoID, err)
		}
		if n == 0 {
			return fmt.Errorf("rating for %s: %w", ytVideoID, ErrNotFound)
		}
		return nil
	})
}

// LookupByContent is the combined cache lookup: first by content hash, then
// by exact ha_title with the duration matching either ha_duration or
// yt_duration (the platform +1 s offset rule). A single query covers both
// paths and returns the most recently active resolved match.
func (db *DB) LookupByContent(ctx context.Context, contentHash, title string, duration *int) (*models.Video, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var dur any
	if duration != nil {
		dur = *duration
	}

	row := db.conn.QueryRowContext(ctx, `
		SELECT `+videoColumns+` FROM videos
		WHERE yt_video_id IS NOT NULL
		  AND (
		    ha_content_hash = ?
		    OR (ha_title = ? AND ? IS NOT NULL AND (ha_duration = ? OR yt_duration = ? OR yt_duration = ? + 1))
		  )
		ORDER BY COALESCE(date_last_played, date_added) DESC
		LIMIT 1`,
		contentHash, title, dur, dur, dur, dur)

	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}
	return v, nil
}

// IsRecentlyNotFound reports whether a not-found entry for the content hash
// exists with a last attempt inside the TTL window.
func (db *DB) IsRecentlyNotFound(ctx context.Context, contentHash string, ttl time.Duration) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cutoff := formatTime(time.Now().Add(-ttl))
	var one int
	err := db.conn.QueryRowContext(ctx, `
		SELECT 1 FROM videos
		WHERE ha_content_hash = ?
		  AND yt_video_id IS NULL
		  AND pending_reason = ?
		  AND last_attempt_at >= ?
		LIMIT 1`,
		contentHash, models.PendingReasonNotFound, cutoff).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("not-found lookup failed: %w", err)
	}
	return true, nil
}

// RecordNotFound upserts a negative cache entry for the content hash: a
// videos row with no YouTube identity, pending_reason='not_found', and a
// fresh last-attempt timestamp.
func (db *DB) RecordNotFound(ctx context.Context, title string, artist *string, duration *int, contentHash string) error {
	now := formatTime(time.Now())

	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE videos SET last_attempt_at = ?
			WHERE ha_content_hash = ? AND yt_video_id IS NULL AND pending_reason = ?`,
			now, contentHash, models.PendingReasonNotFound)
		if err != nil {
			return fmt.Errorf("failed to refresh not-found entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to refresh not-found entry: %w", err)
		}
		if n > 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO videos (ha_title, ha_artist, ha_duration, ha_content_hash,
				date_added, source, pending_reason, last_attempt_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			title, artist, duration, contentHash,
			now, models.SourceQueueSearch, models.PendingReasonNotFound, now)
		if err != nil {
			return fmt.Errorf("failed to insert not-found entry: %w", err)
		}
		return nil
	})
}

// ListVideos returns resolved videos ordered by most recent activity.
func (db *DB) ListVideos(ctx context.Context, limit, offset int) ([]*models.Video, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+videoColumns+` FROM videos
		WHERE yt_video_id IS NOT NULL
		ORDER BY COALESCE(date_last_played, date_added) DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer closeQuietly(rows)

	var out []*models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
