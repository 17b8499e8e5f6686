// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/phonographus/phonographus/internal/models"
)

func cachedResult(id string, duration int) *models.CachedSearchResult {
	return &models.CachedSearchResult{
		YTVideoID:   id,
		YTTitle:     "Flowers (Official Video)",
		YTChannel:   "Miley Cyrus",
		YTChannelID: "UCP4KEgavLpbXGRZgPzWXUUA",
		YTDuration:  duration,
	}
}

func TestCacheSearchResultsBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batch := make([]*models.CachedSearchResult, 0, 25)
	for i := 0; i < 25; i++ {
		batch = append(batch, cachedResult(fmt.Sprintf("VID%08d", i), 190+i))
	}
	if err := db.CacheSearchResults(ctx, batch, 720*time.Hour); err != nil {
		t.Fatalf("batch cache failed: %v", err)
	}

	results, err := db.CachedByDurationRange(ctx, 200, 2)
	if err != nil {
		t.Fatalf("duration range query failed: %v", err)
	}
	if len(results) != 5 { // durations 198..202
		t.Errorf("range [198,202] returned %d results, want 5", len(results))
	}
}

func TestCacheReplaceOnConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := cachedResult("NrgmdOz227I", 125)
	if err := db.CacheSearchResults(ctx, []*models.CachedSearchResult{first}, time.Hour); err != nil {
		t.Fatalf("first cache failed: %v", err)
	}
	second := cachedResult("NrgmdOz227I", 126)
	second.YTTitle = "Yesterday"
	if err := db.CacheSearchResults(ctx, []*models.CachedSearchResult{second}, time.Hour); err != nil {
		t.Fatalf("second cache failed: %v", err)
	}

	got, err := db.CachedByTitleAndDuration(ctx, "Yesterday", 126, 0)
	if err != nil {
		t.Fatalf("title lookup failed: %v", err)
	}
	if got.YTDuration != 126 {
		t.Errorf("replace did not take effect: duration %d", got.YTDuration)
	}
}

func TestExpiredEntriesNotReturned(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	entry := cachedResult("NrgmdOz227I", 125)
	if err := db.CacheSearchResults(ctx, []*models.CachedSearchResult{entry}, time.Hour); err != nil {
		t.Fatalf("cache failed: %v", err)
	}

	// Force the entry past expiry.
	old := formatTime(time.Now().Add(-time.Minute))
	db.mu.Lock()
	_, err := db.conn.Exec(`UPDATE search_cache SET expires_at = ?`, old)
	db.mu.Unlock()
	if err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	if _, err := db.CachedByTitleAndDuration(ctx, "Yesterday", 125, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired entry returned by title lookup: %v", err)
	}
	results, err := db.CachedByDurationRange(ctx, 125, 1)
	if err != nil {
		t.Fatalf("range query failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expired entry returned by range query")
	}

	n, err := db.PurgeExpiredSearchCache(ctx)
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d entries, want 1", n)
	}
}
