// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package quota tracks the YouTube API daily quota window. The quota resets
// at midnight Pacific time; the calendar converts that boundary to UTC with
// DST awareness, and the state file persists an active block across
// restarts and database wipes.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phonographus/phonographus/internal/database"
)

// resetZone is the wall-clock zone of the daily quota reset.
const resetZone = "America/Los_Angeles"

// Calendar answers "when does quota reset next" and "was quota exhausted
// since the last reset".
type Calendar struct {
	loc   *time.Location
	store CallLog
}

// CallLog is the slice of the store the calendar needs.
type CallLog interface {
	LastQuotaError(ctx context.Context) (time.Time, error)
}

// NewCalendar loads the reset timezone. Fails only when the host has no
// timezone database, which is a deployment error worth surfacing early.
func NewCalendar(store CallLog) (*Calendar, error) {
	loc, err := time.LoadLocation(resetZone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", resetZone, err)
	}
	return &Calendar{loc: loc, store: store}, nil
}

// NextResetUTC returns the next occurrence of 00:00 Pacific after now,
// converted to UTC. DST is handled by the timezone database: the boundary
// is UTC-7 in summer and UTC-8 in winter.
func (c *Calendar) NextResetUTC(now time.Time) time.Time {
	local := now.In(c.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	if !midnight.After(local) {
		midnight = midnight.AddDate(0, 0, 1)
	}
	return midnight.UTC()
}

// LastResetUTC returns the most recent reset boundary at or before now.
func (c *Calendar) LastResetUTC(now time.Time) time.Time {
	local := now.In(c.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	if midnight.After(local) {
		midnight = midnight.AddDate(0, 0, -1)
	}
	return midnight.UTC()
}

// ExhaustedSinceReset reports whether the most recent quota-indicating
// failure in the API call log happened after the last reset boundary. When
// true, the worker must not issue remote calls until the next reset.
func (c *Calendar) ExhaustedSinceReset(ctx context.Context, now time.Time) (bool, error) {
	lastErr, err := c.store.LastQuotaError(ctx)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check quota history: %w", err)
	}
	return lastErr.After(c.LastResetUTC(now)), nil
}
