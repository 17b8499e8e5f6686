// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phonographus/phonographus/internal/database"
	"github.com/phonographus/phonographus/internal/models"
)

type fakeMaintStore struct {
	purges    atomic.Int32
	refreshes atomic.Int32
	counts    atomic.Int32
}

func (f *fakeMaintStore) PurgeExpiredSearchCache(ctx context.Context) (int64, error) {
	f.purges.Add(1)
	return 3, nil
}

func (f *fakeMaintStore) RefreshStats(ctx context.Context) (*database.Stats, error) {
	f.refreshes.Add(1)
	return &database.Stats{}, nil
}

func (f *fakeMaintStore) CountQueueByStatus(ctx context.Context) (map[models.QueueStatus]int, error) {
	f.counts.Add(1)
	return map[models.QueueStatus]int{models.StatusPending: 2}, nil
}

func TestMaintenanceRunsImmediatelyOnStart(t *testing.T) {
	store := &fakeMaintStore{}
	m := NewMaintenance(store)
	m.interval = time.Hour // only the initial pass should run

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for store.counts.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial maintenance pass did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if store.purges.Load() != 1 || store.refreshes.Load() != 1 {
		t.Errorf("purges = %d, refreshes = %d, want 1 each",
			store.purges.Load(), store.refreshes.Load())
	}
}

func TestMaintenanceTicks(t *testing.T) {
	store := &fakeMaintStore{}
	m := NewMaintenance(store)
	m.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for store.counts.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("maintenance ran %d times, want at least 3", store.counts.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
