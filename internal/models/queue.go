// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package models

import (
	"time"

	json "github.com/goccy/go-json"
)

// QueueItemType discriminates the two kinds of external work.
type QueueItemType string

const (
	QueueItemSearch QueueItemType = "search"
	QueueItemRating QueueItemType = "rating"
)

// Queue priorities; lower is claimed first. Ratings preempt searches.
const (
	PriorityRating = 1
	PrioritySearch = 2
)

// Priority returns the queue priority for the item type.
func (t QueueItemType) Priority() int {
	if t == QueueItemRating {
		return PriorityRating
	}
	return PrioritySearch
}

// QueueStatus is the lifecycle state of a queue item.
//
// pending -> processing -> {completed, failed}. processing -> pending is
// allowed only by startup crash recovery. There is no automatic retry from
// failed; an operator action moves failed items back to pending.
type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusCompleted  QueueStatus = "completed"
	StatusFailed     QueueStatus = "failed"
)

// QueueItem is one row of the queue table: a unit of external work against
// the YouTube API.
type QueueItem struct {
	ID              int64           `json:"id"`
	Type            QueueItemType   `json:"type"`
	Priority        int             `json:"priority"`
	Status          QueueStatus     `json:"status"`
	Payload         json.RawMessage `json:"payload"`
	RequestedAt     time.Time       `json:"requested_at"`
	LastAttempt     *time.Time      `json:"last_attempt,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Attempts        int             `json:"attempts"`
	LastError       *string         `json:"last_error,omitempty"`
	APIResponseData *string         `json:"api_response_data,omitempty"`
}

// SearchPayload is the payload of a search queue item. It captures the Home
// Assistant observation at enqueue time; CallbackRating, when set, is
// materialized as a rating queue item after the search resolves.
type SearchPayload struct {
	HATitle        string  `json:"ha_title"`
	HAArtist       string  `json:"ha_artist,omitempty"`
	HAAlbum        string  `json:"ha_album,omitempty"`
	HAContentID    string  `json:"ha_content_id,omitempty"`
	HADuration     int     `json:"ha_duration"`
	HAAppName      string  `json:"ha_app_name,omitempty"`
	CallbackRating *Rating `json:"callback_rating,omitempty"`
}

// RatingPayload is the payload of a rating queue item.
type RatingPayload struct {
	YTVideoID string `json:"yt_video_id" validate:"required,len=11"`
	Rating    Rating `json:"rating" validate:"required,oneof=like dislike none"`
}

// DecodeSearchPayload unmarshals a search queue payload.
func (q *QueueItem) DecodeSearchPayload() (SearchPayload, error) {
	var p SearchPayload
	err := json.Unmarshal(q.Payload, &p)
	return p, err
}

// DecodeRatingPayload unmarshals a rating queue payload.
func (q *QueueItem) DecodeRatingPayload() (RatingPayload, error) {
	var p RatingPayload
	err := json.Unmarshal(q.Payload, &p)
	return p, err
}

// EncodePayload marshals a queue payload for storage.
func EncodePayload(p any) (json.RawMessage, error) {
	return json.Marshal(p)
}
