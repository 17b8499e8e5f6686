// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package models

// NowPlaying is a snapshot of the media player entity's current track as
// reported by the Home Assistant state endpoint.
type NowPlaying struct {
	EntityID  string `json:"entity_id"`
	State     string `json:"state"` // playing, paused, idle, ...
	Title     string `json:"media_title"`
	Artist    string `json:"media_artist,omitempty"`
	Album     string `json:"media_album_name,omitempty"`
	ContentID string `json:"media_content_id,omitempty"`
	Duration  int    `json:"media_duration"` // seconds; 0 when absent
	AppName   string `json:"app_name,omitempty"`
}

// Playing reports whether the entity is actively playing.
func (n *NowPlaying) Playing() bool {
	return n != nil && n.State == "playing"
}
