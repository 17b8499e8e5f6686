// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package database

import "errors"

// Sentinel errors returned by store operations. Callers match with
// errors.Is.
var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrNoPending is returned by ClaimNext when the queue has no pending
	// items. It is not a failure; the worker sleeps and retries.
	ErrNoPending = errors.New("no pending queue items")
)
