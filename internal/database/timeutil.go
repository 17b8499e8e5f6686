// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package database

import (
	"fmt"
	"time"
)

// TimeFormat is the canonical stored timestamp layout. Every timestamp in
// the database is UTC in this format; ingestion normalizes ISO-8601 variants.
const TimeFormat = "2006-01-02 15:04:05"

// formatTime renders t as a stored timestamp string.
func formatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// formatTimePtr renders an optional timestamp, nil staying nil.
func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime parses a stored timestamp, accepting the canonical layout and
// common ISO-8601 variants from external payloads.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		TimeFormat,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseTimePtr parses an optional stored timestamp from a scanned NULLable
// column value.
func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
