// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package models

import (
	"regexp"
	"time"
)

// Rating is a user rating applied to a YouTube video.
type Rating string

// Rating values mirror the YouTube videos.rate API.
const (
	RatingNone    Rating = "none"
	RatingLike    Rating = "like"
	RatingDislike Rating = "dislike"
)

// Valid reports whether r is one of the three known rating values.
func (r Rating) Valid() bool {
	return r == RatingNone || r == RatingLike || r == RatingDislike
}

// ScoreDelta returns the signed rating_score contribution of r.
func (r Rating) ScoreDelta() int {
	switch r {
	case RatingLike:
		return 1
	case RatingDislike:
		return -1
	default:
		return 0
	}
}

// Video sources recorded in the videos table.
const (
	SourceHALive      = "ha_live"      // observed playing via Home Assistant
	SourceQueueSearch = "queue_search" // resolved by the queue worker
)

// PendingReasonNotFound marks a video row that is a negative cache entry:
// the content hash was searched and no duration match was found. Such rows
// have a NULL yt_video_id and suppress re-searching until their TTL lapses.
const PendingReasonNotFound = "not_found"

// MaxDescriptionLen bounds yt_description storage.
const MaxDescriptionLen = 5000

// MaxDurationSeconds bounds accepted video durations (24 hours).
const MaxDurationSeconds = 86400

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ValidVideoID reports whether id is a well-formed 11-character YouTube
// video id.
func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}

// Video is one row of the videos table. It carries both the Home Assistant
// observation (ha_*) and the resolved YouTube identity (yt_*).
//
// A row with a nil YTVideoID and PendingReason == PendingReasonNotFound is a
// not-found cache entry, not a resolved video.
type Video struct {
	ID int64 `json:"id"`

	// Home Assistant observation
	HATitle       string  `json:"ha_title"`
	HAArtist      *string `json:"ha_artist,omitempty"`
	HAAppName     *string `json:"ha_app_name,omitempty"`
	HADuration    *int    `json:"ha_duration,omitempty"` // seconds
	HAContentHash *string `json:"ha_content_hash,omitempty"`

	// Resolved YouTube identity
	YTVideoID       *string    `json:"yt_video_id,omitempty"`
	YTTitle         *string    `json:"yt_title,omitempty"`
	YTChannel       *string    `json:"yt_channel,omitempty"`
	YTChannelID     *string    `json:"yt_channel_id,omitempty"`
	YTDescription   *string    `json:"yt_description,omitempty"`
	YTPublishedAt   *time.Time `json:"yt_published_at,omitempty"`
	YTCategoryID    *string    `json:"yt_category_id,omitempty"`
	YTLiveBroadcast *string    `json:"yt_live_broadcast,omitempty"`
	YTLocation      *string    `json:"yt_location,omitempty"`
	YTRecordingDate *time.Time `json:"yt_recording_date,omitempty"`
	YTDuration      *int       `json:"yt_duration,omitempty"` // seconds
	YTURL           *string    `json:"yt_url,omitempty"`

	// Settled state
	Rating         Rating     `json:"rating"`
	RatingScore    int        `json:"rating_score"`
	PlayCount      int        `json:"play_count"`
	DateAdded      time.Time  `json:"date_added"`
	DateLastPlayed *time.Time `json:"date_last_played,omitempty"`
	Source         string     `json:"source"`
	PendingReason  *string    `json:"pending_reason,omitempty"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
}

// Resolved reports whether the row carries a YouTube identity.
func (v *Video) Resolved() bool {
	return v.YTVideoID != nil && *v.YTVideoID != ""
}

// WatchURL returns the canonical watch URL for id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// CachedSearchResult is one row of the search_cache table: a video fetched
// opportunistically during a search, stored with a TTL regardless of whether
// it was the eventual match.
type CachedSearchResult struct {
	YTVideoID     string     `json:"yt_video_id"`
	YTTitle       string     `json:"yt_title"`
	YTChannel     string     `json:"yt_channel"`
	YTChannelID   string     `json:"yt_channel_id"`
	YTDuration    int        `json:"yt_duration"` // seconds
	YTDescription string     `json:"yt_description,omitempty"`
	YTPublishedAt *time.Time `json:"yt_published_at,omitempty"`
	YTCategoryID  string     `json:"yt_category_id,omitempty"`
	CachedAt      time.Time  `json:"cached_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
}
