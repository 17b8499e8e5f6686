// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phonographus/phonographus/internal/hash"
	"github.com/phonographus/phonographus/internal/models"
)

func TestStatsUncachedIsNotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetStats(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetStats before refresh = %v, want ErrNotFound", err)
	}
}

func TestRefreshStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.UpsertVideo(ctx, testVideo("NrgmdOz227I")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := db.RecordRating(ctx, "NrgmdOz227I", models.RatingLike); err != nil {
		t.Fatalf("rating failed: %v", err)
	}
	if err := db.RecordPlay(ctx, "NrgmdOz227I"); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	h := hash.Content("Nonexistent", intPtr(42), "")
	if err := db.RecordNotFound(ctx, "Nonexistent", nil, intPtr(42), h); err != nil {
		t.Fatalf("not-found failed: %v", err)
	}
	enqueueSearch(t, db, "something")
	if err := db.CacheSearchResults(ctx, []*models.CachedSearchResult{cachedResult("dQw4w9WgXcQ", 212)}, time.Hour); err != nil {
		t.Fatalf("cache failed: %v", err)
	}

	stats, err := db.RefreshStats(ctx)
	if err != nil {
		t.Fatalf("RefreshStats failed: %v", err)
	}
	if stats.TotalVideos != 1 || stats.Likes != 1 || stats.TotalPlays != 1 {
		t.Errorf("video stats: %+v", stats)
	}
	if stats.NotFoundEntries != 1 {
		t.Errorf("not_found_entries = %d, want 1", stats.NotFoundEntries)
	}
	if stats.QueuePending != 1 {
		t.Errorf("queue_pending = %d, want 1", stats.QueuePending)
	}
	if stats.SearchCacheSize != 1 {
		t.Errorf("search_cache_size = %d, want 1", stats.SearchCacheSize)
	}

	cached, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if cached.TotalVideos != stats.TotalVideos || cached.QueuePending != stats.QueuePending {
		t.Errorf("cached stats differ from refreshed: %+v vs %+v", cached, stats)
	}
}
