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

	json "github.com/goccy/go-json"

	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/models"
)

const queueColumns = `id, type, priority, status, payload, requested_at,
	last_attempt, completed_at, attempts, last_error, api_response_data`

// scanQueueItem maps one row in queueColumns order onto a models.QueueItem.
func scanQueueItem(row rowScanner) (*models.QueueItem, error) {
	var q models.QueueItem
	var itemType, status, payload, requestedAt string
	var lastAttempt, completedAt *string

	err := row.Scan(&q.ID, &itemType, &q.Priority, &status, &payload, &requestedAt,
		&lastAttempt, &completedAt, &q.Attempts, &q.LastError, &q.APIResponseData)
	if err != nil {
		return nil, err
	}

	q.Type = models.QueueItemType(itemType)
	q.Status = models.QueueStatus(status)
	q.Payload = json.RawMessage(payload)
	if q.RequestedAt, err = parseTime(requestedAt); err != nil {
		return nil, fmt.Errorf("bad requested_at: %w", err)
	}
	if q.LastAttempt, err = parseTimePtr(lastAttempt); err != nil {
		return nil, fmt.Errorf("bad last_attempt: %w", err)
	}
	if q.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, fmt.Errorf("bad completed_at: %w", err)
	}
	return &q, nil
}

// Enqueue inserts a pending queue item. Priority follows from the item type:
// ratings preempt searches.
func (db *DB) Enqueue(ctx context.Context, itemType models.QueueItemType, payload json.RawMessage) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO queue (type, priority, status, payload, requested_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(itemType), itemType.Priority(), string(models.StatusPending),
		string(payload), formatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s item: %w", itemType, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read enqueued id: %w", err)
	}

	logging.Debug().Int64("id", id).Str("type", string(itemType)).Msg("Queue item enqueued")
	return id, nil
}

// ClaimNext atomically selects the oldest pending item of the lowest
// priority, marks it processing, bumps its attempt counter, and stamps
// last_attempt. Returns ErrNoPending when the queue is empty.
func (db *DB) ClaimNext(ctx context.Context) (*models.QueueItem, error) {
	var claimed *models.QueueItem

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+queueColumns+` FROM queue
			WHERE status = ?
			ORDER BY priority ASC, id ASC
			LIMIT 1`, string(models.StatusPending))

		item, err := scanQueueItem(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoPending
		}
		if err != nil {
			return fmt.Errorf("failed to select next queue item: %w", err)
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE queue SET status = ?, attempts = attempts + 1, last_attempt = ?
			WHERE id = ? AND status = ?`,
			string(models.StatusProcessing), formatTime(now), item.ID, string(models.StatusPending))
		if err != nil {
			return fmt.Errorf("failed to claim queue item %d: %w", item.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to claim queue item %d: %w", item.ID, err)
		}
		if n == 0 {
			// Cannot happen under the store mutex, but a claim must never be
			// assumed without the row transition.
			return ErrNoPending
		}

		item.Status = models.StatusProcessing
		item.Attempts++
		item.LastAttempt = &now
		claimed = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkCompleted transitions a processing item to completed, clearing
// last_error and recording an optional response trace.
func (db *DB) MarkCompleted(ctx context.Context, id int64, trace *string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE queue SET status = ?, completed_at = ?, last_error = NULL,
				api_response_data = COALESCE(?, api_response_data)
			WHERE id = ?`,
			string(models.StatusCompleted), formatTime(time.Now()), trace, id)
		if err != nil {
			return fmt.Errorf("failed to complete queue item %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to complete queue item %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("queue item %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// MarkFailed transitions an item to failed, preserving the error and trace
// for diagnosis. Failed items stay failed until an operator retries them.
func (db *DB) MarkFailed(ctx context.Context, id int64, errMsg string, trace *string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE queue SET status = ?, last_error = ?,
				api_response_data = COALESCE(?, api_response_data)
			WHERE id = ?`,
			string(models.StatusFailed), errMsg, trace, id)
		if err != nil {
			return fmt.Errorf("failed to fail queue item %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to fail queue item %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("queue item %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// ResetStaleProcessing flips every processing row back to pending. Called
// once on worker startup: any row still processing belonged to a crashed
// worker, because only one worker runs at a time.
func (db *DB) ResetStaleProcessing(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE queue SET status = ? WHERE status = ?`,
		string(models.StatusPending), string(models.StatusProcessing))
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale processing items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale processing items: %w", err)
	}
	if n > 0 {
		logging.Warn().Int64("count", n).Msg("Reset stale processing queue items to pending")
	}
	return n, nil
}

// RetryFailed moves a failed item back to pending. This is the only path out
// of failed and it is an explicit operator action.
func (db *DB) RetryFailed(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE queue SET status = ? WHERE id = ? AND status = ?`,
		string(models.StatusPending), id, string(models.StatusFailed))
	if err != nil {
		return fmt.Errorf("failed to retry queue item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to retry queue item %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("failed queue item %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListQueue returns queue items, optionally filtered by status, newest
// first.
func (db *DB) ListQueue(ctx context.Context, status models.QueueStatus, limit, offset int) ([]*models.QueueItem, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	query := `SELECT ` + queueColumns + ` FROM queue`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer closeQuietly(rows)

	var out []*models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// CountQueueByStatus returns the number of items in each status. Used by the
// health endpoint and queue-depth metrics.
func (db *DB) CountQueueByStatus(ctx context.Context) (map[models.QueueStatus]int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue: %w", err)
	}
	defer closeQuietly(rows)

	counts := make(map[models.QueueStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan queue count: %w", err)
		}
		counts[models.QueueStatus(status)] = n
	}
	return counts, rows.Err()
}
