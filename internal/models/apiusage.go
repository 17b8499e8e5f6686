// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package models

import "time"

// APIUsageDay is one row of the api_usage table: 24 hourly call counters
// for a single UTC day.
type APIUsageDay struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Hours [24]int `json:"hours"`
}

// Total returns the day's total call count.
func (d *APIUsageDay) Total() int {
	var n int
	for _, h := range d.Hours {
		n += h
	}
	return n
}

// APICallLogEntry is one row of the append-only api_call_log table. The
// quota calendar reads it to decide whether quota was exhausted since the
// last daily reset.
type APICallLogEntry struct {
	ID        int64     `json:"id"`
	Method    string    `json:"method"` // search.list, videos.list, videos.rate, videos.getRating
	QuotaCost int       `json:"quota_cost"`
	Success   bool      `json:"success"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// QuotaState is the persisted quota block state, stored as a JSON file
// outside the database so it survives database maintenance and restarts.
type QuotaState struct {
	Blocked   bool       `json:"blocked"`
	Reason    string     `json:"reason,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	BlockedAt *time.Time `json:"blocked_at,omitempty"`
}
