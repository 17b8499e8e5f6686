// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package quota

import (
	"context"
	"testing"
	"time"

	"github.com/phonographus/phonographus/internal/database"
)

// fakeCallLog returns a fixed last-quota-error timestamp.
type fakeCallLog struct {
	last time.Time
	err  error
}

func (f *fakeCallLog) LastQuotaError(context.Context) (time.Time, error) {
	return f.last, f.err
}

func mustCalendar(t *testing.T, log CallLog) *Calendar {
	t.Helper()
	c, err := NewCalendar(log)
	if err != nil {
		t.Fatalf("NewCalendar failed: %v", err)
	}
	return c
}

func TestNextResetUTCSummer(t *testing.T) {
	c := mustCalendar(t, nil)

	// June: Pacific is UTC-7, so midnight Pacific is 07:00 UTC.
	now := time.Date(2024, 6, 10, 19, 33, 0, 0, time.UTC)
	want := time.Date(2024, 6, 11, 7, 0, 0, 0, time.UTC)
	if got := c.NextResetUTC(now); !got.Equal(want) {
		t.Errorf("NextResetUTC(%v) = %v, want %v", now, got, want)
	}
}

func TestNextResetUTCWinter(t *testing.T) {
	c := mustCalendar(t, nil)

	// January: Pacific is UTC-8, so midnight Pacific is 08:00 UTC.
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	want := time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)
	if got := c.NextResetUTC(now); !got.Equal(want) {
		t.Errorf("NextResetUTC(%v) = %v, want %v", now, got, want)
	}
}

func TestNextResetUTCJustBeforeBoundary(t *testing.T) {
	c := mustCalendar(t, nil)

	// 06:59 UTC in June is 23:59 Pacific; the next reset is a minute away.
	now := time.Date(2024, 6, 11, 6, 59, 0, 0, time.UTC)
	want := time.Date(2024, 6, 11, 7, 0, 0, 0, time.UTC)
	if got := c.NextResetUTC(now); !got.Equal(want) {
		t.Errorf("NextResetUTC(%v) = %v, want %v", now, got, want)
	}

	// Exactly at the boundary the next reset is tomorrow.
	now = want
	want = time.Date(2024, 6, 12, 7, 0, 0, 0, time.UTC)
	if got := c.NextResetUTC(now); !got.Equal(want) {
		t.Errorf("NextResetUTC(boundary) = %v, want %v", got, want)
	}
}

func TestLastResetUTC(t *testing.T) {
	c := mustCalendar(t, nil)

	now := time.Date(2024, 6, 10, 19, 33, 0, 0, time.UTC)
	want := time.Date(2024, 6, 10, 7, 0, 0, 0, time.UTC)
	if got := c.LastResetUTC(now); !got.Equal(want) {
		t.Errorf("LastResetUTC(%v) = %v, want %v", now, got, want)
	}
}

func TestExhaustedSinceReset(t *testing.T) {
	now := time.Date(2024, 6, 10, 19, 33, 0, 0, time.UTC)
	ctx := context.Background()

	// Quota error after the 07:00 UTC boundary: still exhausted.
	c := mustCalendar(t, &fakeCallLog{last: time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)})
	exhausted, err := c.ExhaustedSinceReset(ctx, now)
	if err != nil {
		t.Fatalf("ExhaustedSinceReset failed: %v", err)
	}
	if !exhausted {
		t.Error("quota error after reset not reported as exhausted")
	}

	// Quota error before the boundary: the reset cleared it.
	c = mustCalendar(t, &fakeCallLog{last: time.Date(2024, 6, 10, 6, 0, 0, 0, time.UTC)})
	exhausted, err = c.ExhaustedSinceReset(ctx, now)
	if err != nil {
		t.Fatalf("ExhaustedSinceReset failed: %v", err)
	}
	if exhausted {
		t.Error("pre-reset quota error still reported as exhausted")
	}

	// No quota errors at all.
	c = mustCalendar(t, &fakeCallLog{err: database.ErrNotFound})
	exhausted, err = c.ExhaustedSinceReset(ctx, now)
	if err != nil {
		t.Fatalf("ExhaustedSinceReset failed: %v", err)
	}
	if exhausted {
		t.Error("empty call log reported as exhausted")
	}
}
