// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package supervisor

import (
	"context"
	"time"

	"github.com/phonographus/phonographus/internal/database"
	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/metrics"
	"github.com/phonographus/phonographus/internal/models"
)

// maintenanceInterval is how often periodic housekeeping runs. The work is
// cheap so there is no need to make this configurable.
const maintenanceInterval = 15 * time.Minute

// MaintenanceStore is the database surface the housekeeping ticker uses.
type MaintenanceStore interface {
	PurgeExpiredSearchCache(ctx context.Context) (int64, error)
	RefreshStats(ctx context.Context) (*database.Stats, error)
	CountQueueByStatus(ctx context.Context) (map[models.QueueStatus]int, error)
}

// Maintenance is a supervised ticker that purges expired search-cache rows,
// refreshes the cached statistics summary, and publishes queue depth gauges.
type Maintenance struct {
	store    MaintenanceStore
	interval time.Duration
}

// NewMaintenance builds the housekeeping service.
func NewMaintenance(store MaintenanceStore) *Maintenance {
	return &Maintenance{store: store, interval: maintenanceInterval}
}

// Serve implements suture.Service. One pass runs immediately on start so
// gauges are populated right after boot.
func (m *Maintenance) Serve(ctx context.Context) error {
	m.run(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.run(ctx)
		}
	}
}

// run executes one housekeeping pass. Failures are logged, never fatal.
func (m *Maintenance) run(ctx context.Context) {
	if purged, err := m.store.PurgeExpiredSearchCache(ctx); err != nil {
		logging.Warn().Err(err).Msg("Maintenance: search cache purge failed")
	} else if purged > 0 {
		logging.Debug().Int64("purged", purged).Msg("Maintenance: purged expired search cache rows")
	}

	if _, err := m.store.RefreshStats(ctx); err != nil {
		logging.Warn().Err(err).Msg("Maintenance: stats refresh failed")
	}

	counts, err := m.store.CountQueueByStatus(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Maintenance: queue depth count failed")
		return
	}
	depth := make(map[string]int, len(counts))
	for status, n := range counts {
		depth[string(status)] = n
	}
	metrics.SetQueueDepth(depth)
}

// String implements fmt.Stringer for supervisor logs.
func (m *Maintenance) String() string { return "maintenance" }
