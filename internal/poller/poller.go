// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package poller observes the Home Assistant media player and turns playing
// tracks into recorded plays or search queue items. It never touches the
// YouTube API; anything unresolved goes through the queue.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phonographus/phonographus/internal/cache"
	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/database"
	"github.com/phonographus/phonographus/internal/hash"
	"github.com/phonographus/phonographus/internal/homeassistant"
	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/metrics"
	"github.com/phonographus/phonographus/internal/models"

	json "github.com/goccy/go-json"
)

// maxConsecutiveFailures ends the poller's own retry loop; the supervisor
// decides what happens next.
const maxConsecutiveFailures = 10

// maxBackoff caps the failure backoff.
const maxBackoff = 5 * time.Minute

// Store is the database surface the poller uses.
type Store interface {
	LookupByContent(ctx context.Context, contentHash, title string, duration *int) (*models.Video, error)
	RecordPlay(ctx context.Context, ytVideoID string) error
	IsRecentlyNotFound(ctx context.Context, contentHash string, ttl time.Duration) (bool, error)
	Enqueue(ctx context.Context, itemType models.QueueItemType, payload json.RawMessage) (int64, error)
}

// Poller ticks against the Home Assistant state endpoint.
type Poller struct {
	cfg      *config.Config
	ha       homeassistant.StateReader
	store    Store
	cooldown *cache.Cooldown

	failures int
}

// New builds a poller. The cooldown cache is owned by the poller; its TTL
// comes from the play cooldown setting.
func New(cfg *config.Config, ha homeassistant.StateReader, store Store) *Poller {
	return &Poller{
		cfg:      cfg,
		ha:       ha,
		store:    store,
		cooldown: cache.NewCooldown(0, cfg.Poller.PlayCooldown),
	}
}

// Serve runs the poll loop until ctx is canceled. Implements suture.Service.
// Returns an error after ten consecutive failed ticks so the supervisor can
// mark the service unhealthy.
func (p *Poller) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", p.cfg.Poller.Interval).Msg("Playback poller started")

	wait := p.cfg.Poller.Interval
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Playback poller stopped")
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.failures++
			metrics.PollerCycles.WithLabelValues("failure").Inc()
			metrics.PollerConsecutiveFailures.Set(float64(p.failures))
			if p.failures >= maxConsecutiveFailures {
				return fmt.Errorf("poller unhealthy after %d consecutive failures: %w", p.failures, err)
			}
			wait = backoff(p.cfg.Poller.Interval, p.failures)
			logging.Warn().Err(err).Int("consecutive_failures", p.failures).Dur("backoff", wait).Msg("Poll failed")
			continue
		}

		p.failures = 0
		metrics.PollerCycles.WithLabelValues("success").Inc()
		metrics.PollerConsecutiveFailures.Set(0)
		wait = p.cfg.Poller.Interval
	}
}

// Healthy reports whether the last tick succeeded.
func (p *Poller) Healthy() bool {
	return p.failures == 0
}

// poll runs one tick.
func (p *Poller) poll(ctx context.Context) error {
	np, err := p.ha.NowPlaying(ctx)
	if err != nil {
		return err
	}

	if !np.Playing() || !p.ha.Tracked(np) {
		return nil
	}
	if np.Title == "" || np.Duration <= 0 {
		logging.Debug().Str("title", np.Title).Int("duration", np.Duration).Msg("Skipping playback without title or duration")
		return nil
	}

	dur := np.Duration
	contentHash := hash.Content(np.Title, &dur, np.Artist)

	if p.cooldown.Active(contentHash) {
		return nil
	}

	vid, err := p.store.LookupByContent(ctx, contentHash, np.Title, &dur)
	if err == nil {
		metrics.CacheHits.WithLabelValues("video").Inc()
		if err := p.store.RecordPlay(ctx, *vid.YTVideoID); err != nil {
			return err
		}
		metrics.PlaysRecorded.Inc()
		p.cooldown.Touch(contentHash)
		logging.Info().Str("yt_video_id", *vid.YTVideoID).Str("title", np.Title).Msg("Play recorded")
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}
	metrics.CacheMisses.WithLabelValues("video").Inc()

	recent, err := p.store.IsRecentlyNotFound(ctx, contentHash, p.cfg.Poller.NotFoundTTL)
	if err != nil {
		return err
	}
	if recent {
		return nil
	}

	payload, err := models.EncodePayload(models.SearchPayload{
		HATitle:     np.Title,
		HAArtist:    np.Artist,
		HAAlbum:     np.Album,
		HAContentID: np.ContentID,
		HADuration:  dur,
		HAAppName:   np.AppName,
	})
	if err != nil {
		return err
	}
	if _, err := p.store.Enqueue(ctx, models.QueueItemSearch, payload); err != nil {
		return err
	}
	// Touching here keeps every subsequent tick of the same track from
	// enqueueing another search while the worker is still on this one.
	p.cooldown.Touch(contentHash)
	logging.Info().Str("title", np.Title).Int("duration", dur).Msg("Unresolved playback queued for search")
	return nil
}

// backoff doubles the base interval per consecutive failure, capped.
func backoff(base time.Duration, failures int) time.Duration {
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
