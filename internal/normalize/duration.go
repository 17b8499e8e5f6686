// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package normalize

import (
	"fmt"
	"regexp"
	"strconv"
)

// MaxDuration bounds accepted durations to 24 hours of seconds.
const MaxDuration = 86400

var iso8601Duration = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseDuration parses an ISO-8601 duration as returned by the platform's
// contentDetails.duration field ("PT4M13S") into whole seconds.
func ParseDuration(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	m := iso8601Duration.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("malformed ISO-8601 duration %q", s)
	}

	total := 0
	units := []int{86400, 3600, 60, 1}
	matched := false
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		matched = true
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("malformed ISO-8601 duration %q: %w", s, err)
		}
		total += n * unit
	}
	if !matched && s != "PT0S" && s != "P0D" {
		return 0, fmt.Errorf("malformed ISO-8601 duration %q", s)
	}
	return total, nil
}

// ValidateDuration rejects durations outside [0, MaxDuration] seconds.
func ValidateDuration(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("negative duration %d", seconds)
	}
	if seconds > MaxDuration {
		return fmt.Errorf("duration %d exceeds %d seconds", seconds, MaxDuration)
	}
	return nil
}
