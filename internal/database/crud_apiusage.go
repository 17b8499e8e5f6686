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

	"github.com/phonographus/phonographus/internal/models"
)

// quotaErrorMarkers match api_call_log error text that indicates quota
// exhaustion. Lowercased LIKE patterns; "limitexceeded" covers
// limitExceeded and dailyLimitExceeded, "quota" covers quotaExceeded.
var quotaErrorMarkers = []string{
	"%quota%",
	"%rate limit%",
	"%ratelimit%",
	"%limitexceeded%",
}

// RecordAPICall increments the current UTC day's hour bucket and appends a
// row to the append-only call log. Both writes commit together.
func (db *DB) RecordAPICall(ctx context.Context, method string, success bool, quotaCost int, errMsg *string) error {
	now := time.Now().UTC()
	day := now.Format("2006-01-02")
	hourCol := fmt.Sprintf("h%02d", now.Hour())

	return db.withTx(ctx, func(tx *sql.Tx) error {
		// The column name comes from the clock, never from input.
		query := fmt.Sprintf(`
			INSERT INTO api_usage (date, %[1]s) VALUES (?, 1)
			ON CONFLICT(date) DO UPDATE SET %[1]s = %[1]s + 1`, hourCol)
		if _, err := tx.ExecContext(ctx, query, day); err != nil {
			return fmt.Errorf("failed to increment api usage: %w", err)
		}

		successVal := 0
		if success {
			successVal = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO api_call_log (method, quota_cost, success, error, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			method, quotaCost, successVal, errMsg, formatTime(now))
		if err != nil {
			return fmt.Errorf("failed to append api call log: %w", err)
		}
		return nil
	})
}

// LastQuotaError returns the timestamp of the most recent failed call whose
// error text indicates quota exhaustion, or ErrNotFound if none exists. The
// quota calendar compares this against the last reset boundary.
func (db *DB) LastQuotaError(ctx context.Context) (time.Time, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	query := `
		SELECT created_at FROM api_call_log
		WHERE success = 0 AND error IS NOT NULL AND (`
	args := []any{}
	for i, marker := range quotaErrorMarkers {
		if i > 0 {
			query += ` OR `
		}
		query += `lower(error) LIKE ?`
		args = append(args, marker)
	}
	query += `) ORDER BY id DESC LIMIT 1`

	var createdAt string
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last quota error: %w", err)
	}
	return parseTime(createdAt)
}

// UsageForDay returns the hourly call counters for a UTC day (YYYY-MM-DD),
// or ErrNotFound when no calls were made that day.
func (db *DB) UsageForDay(ctx context.Context, day string) (*models.APIUsageDay, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cols := "date"
	for h := 0; h < 24; h++ {
		cols += fmt.Sprintf(", h%02d", h)
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+cols+` FROM api_usage WHERE date = ?`, day)

	usage := &models.APIUsageDay{}
	dest := make([]any, 0, 25)
	dest = append(dest, &usage.Date)
	for h := 0; h < 24; h++ {
		dest = append(dest, &usage.Hours[h])
	}
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query api usage for %s: %w", day, err)
	}
	return usage, nil
}

// QuotaUnitsSince sums the quota cost of successful calls at or after t.
func (db *DB) QuotaUnitsSince(ctx context.Context, t time.Time) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var units int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quota_cost), 0) FROM api_call_log
		WHERE success = 1 AND created_at >= ?`, formatTime(t)).Scan(&units)
	if err != nil {
		return 0, fmt.Errorf("failed to sum quota units: %w", err)
	}
	return units, nil
}
