// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/database"
	"github.com/phonographus/phonographus/internal/hash"
	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/metrics"
	"github.com/phonographus/phonographus/internal/models"
	"github.com/phonographus/phonographus/internal/quota"
	"github.com/phonographus/phonographus/internal/search"
	"github.com/phonographus/phonographus/internal/youtube"
)

// quotaResetGrace is added past the computed reset boundary before the
// worker wakes, absorbing clock skew against Google's quota clock.
const quotaResetGrace = 60 * time.Second

// searchCacheDurationTolerance widens the search-cache duration match by one
// second, mirroring the rounding slack of the duration anchor.
const searchCacheDurationTolerance = 1

// Store is the database surface the worker drives.
type Store interface {
	ClaimNext(ctx context.Context) (*models.QueueItem, error)
	MarkCompleted(ctx context.Context, id int64, trace *string) error
	MarkFailed(ctx context.Context, id int64, errMsg string, trace *string) error
	ResetStaleProcessing(ctx context.Context) (int64, error)
	Enqueue(ctx context.Context, itemType models.QueueItemType, payload json.RawMessage) (int64, error)

	GetVideoByYTID(ctx context.Context, ytVideoID string) (*models.Video, error)
	RecordRating(ctx context.Context, ytVideoID string, r models.Rating) error
	UpsertVideo(ctx context.Context, v *models.Video) error
	RecordPlay(ctx context.Context, ytVideoID string) error
	RecordNotFound(ctx context.Context, title string, artist *string, duration *int, contentHash string) error
	LookupByContent(ctx context.Context, contentHash, title string, duration *int) (*models.Video, error)
	CachedByTitleAndDuration(ctx context.Context, titleSubstr string, d, tol int) (*models.CachedSearchResult, error)
}

// RatingAPI is the remote rating surface.
type RatingAPI interface {
	SetRating(ctx context.Context, videoID string, r models.Rating) error
}

// Resolver is the search pipeline surface.
type Resolver interface {
	Resolve(ctx context.Context, title string, expectedDuration int, artist string) ([]*models.Video, error)
}

// remote bundles the lazily-created API surfaces. Nothing authenticates
// until the first queue item actually needs the network.
type remote struct {
	ratings RatingAPI
	search  Resolver
}

// Worker claims queue items one at a time and executes them against the
// YouTube API, honoring the quota calendar.
type Worker struct {
	cfg   *config.Config
	store Store
	cal   *quota.Calendar
	state *quota.StateFile
	lock  *PIDLock

	connect func(ctx context.Context) (*remote, error)
	rem     *remote

	now func() time.Time
}

// New builds the production worker over the SQLite store.
func New(cfg *config.Config, db *database.DB) (*Worker, error) {
	cal, err := quota.NewCalendar(db)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		cfg:   cfg,
		store: db,
		cal:   cal,
		state: quota.NewStateFile(cfg.Quota.StatePath),
		lock:  NewPIDLock(cfg.Worker.PIDPath),
		now:   time.Now,
	}
	w.connect = func(ctx context.Context) (*remote, error) {
		client, err := youtube.New(ctx, &cfg.YouTube, db)
		if err != nil {
			return nil, err
		}
		return &remote{
			ratings: client,
			search:  search.NewPipeline(client, db, &cfg.Search),
		}, nil
	}
	return w, nil
}

// Run acquires the PID lock, recovers stale items, and processes the queue
// until ctx is canceled. A non-nil return means the worker must not be
// restarted blindly: the lock was held elsewhere, or credentials failed.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.lock.Acquire(); err != nil {
		return err
	}
	defer w.lock.Release()

	reset, err := w.store.ResetStaleProcessing(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover stale queue items: %w", err)
	}
	if reset > 0 {
		logging.Warn().Int64("items", reset).Msg("Recovered stale processing items from a previous run")
	}
	logging.Info().Dur("poll_interval", w.cfg.Worker.PollInterval).Msg("Worker started")

	for ctx.Err() == nil {
		exhausted, err := w.cal.ExhaustedSinceReset(ctx, w.now())
		if err != nil {
			logging.Error().Err(err).Msg("Failed to check quota calendar")
			w.sleep(ctx, w.cfg.Worker.PollInterval)
			continue
		}
		if exhausted {
			w.blockAndSleep(ctx, "daily quota exhausted")
			continue
		}

		item, err := w.store.ClaimNext(ctx)
		if errors.Is(err, database.ErrNoPending) {
			w.sleep(ctx, w.cfg.Worker.PollInterval)
			continue
		}
		if err != nil {
			logging.Error().Err(err).Msg("Failed to claim queue item")
			w.sleep(ctx, w.cfg.Worker.PollInterval)
			continue
		}

		perr := w.processItem(ctx, item)
		switch {
		case perr == nil:
		case youtube.IsQuotaExceeded(perr):
			w.blockAndSleep(ctx, perr.Error())
		case youtube.IsAuthentication(perr) || errors.Is(perr, youtube.ErrNoToken):
			logging.Error().Err(perr).Msg("Authentication failure, worker stopping for operator attention")
			return fmt.Errorf("authentication failure: %w", perr)
		default:
			// Already recorded on the failed item.
		}

		// Inter-item floor, independent of how fast the remote answered.
		w.sleep(ctx, w.cfg.Worker.PollInterval)
	}
	logging.Info().Msg("Worker stopped")
	return nil
}

// blockAndSleep persists the quota block, sleeps until the next Pacific
// midnight plus grace, then clears the block.
func (w *Worker) blockAndSleep(ctx context.Context, detail string) {
	if err := w.state.Block("quota", detail); err != nil {
		logging.Error().Err(err).Msg("Failed to persist quota block")
	}
	metrics.QuotaBlocked.Set(1)

	wake := w.cal.NextResetUTC(w.now()).Add(quotaResetGrace)
	logging.Warn().Time("wake", wake).Msg("Quota exhausted, sleeping until reset")
	w.sleep(ctx, time.Until(wake))

	if ctx.Err() != nil {
		return
	}
	if err := w.state.Unblock(); err != nil {
		logging.Error().Err(err).Msg("Failed to clear quota block")
	}
	metrics.QuotaBlocked.Set(0)
}

// processItem dispatches one claimed item. The returned error is only the
// loop-level classification (quota, auth); item-level outcomes are recorded
// on the item itself.
func (w *Worker) processItem(ctx context.Context, item *models.QueueItem) error {
	logging.Info().
		Int64("id", item.ID).
		Str("type", string(item.Type)).
		Int("attempt", item.Attempts).
		Msg("Processing queue item")

	switch item.Type {
	case models.QueueItemRating:
		return w.processRating(ctx, item)
	case models.QueueItemSearch:
		return w.processSearch(ctx, item)
	default:
		w.fail(ctx, item, fmt.Sprintf("unknown queue item type %q", item.Type))
		return nil
	}
}

// processRating applies a rating. When the stored record already carries the
// requested rating, the score is bumped locally and no quota is spent.
func (w *Worker) processRating(ctx context.Context, item *models.QueueItem) error {
	p, err := item.DecodeRatingPayload()
	if err != nil {
		w.fail(ctx, item, "malformed rating payload: "+err.Error())
		return nil
	}

	vid, err := w.store.GetVideoByYTID(ctx, p.YTVideoID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		w.fail(ctx, item, err.Error())
		return nil
	}
	if err == nil && vid.Rating == p.Rating {
		if err := w.store.RecordRating(ctx, p.YTVideoID, p.Rating); err != nil {
			w.fail(ctx, item, err.Error())
			return nil
		}
		metrics.RatingsApplied.WithLabelValues("local").Inc()
		trace := `{"applied":"local"}`
		w.complete(ctx, item, &trace)
		return nil
	}

	rem, err := w.remote(ctx)
	if err != nil {
		w.fail(ctx, item, err.Error())
		return err
	}
	if err := rem.ratings.SetRating(ctx, p.YTVideoID, p.Rating); err != nil {
		w.fail(ctx, item, err.Error())
		return err
	}
	if err := w.store.RecordRating(ctx, p.YTVideoID, p.Rating); err != nil && !errors.Is(err, database.ErrNotFound) {
		// Remote state changed; the local miss is logged, not fatal.
		logging.Warn().Err(err).Str("yt_video_id", p.YTVideoID).Msg("Rating applied remotely but local record update failed")
	}
	metrics.RatingsApplied.WithLabelValues("remote").Inc()
	w.complete(ctx, item, nil)
	return nil
}

// processSearch resolves an observed track, cache layers first, remote
// pipeline last.
func (w *Worker) processSearch(ctx context.Context, item *models.QueueItem) error {
	p, err := item.DecodeSearchPayload()
	if err != nil {
		w.fail(ctx, item, "malformed search payload: "+err.Error())
		return nil
	}

	dur := p.HADuration
	contentHash := hash.Content(p.HATitle, &dur, p.HAArtist)

	// Layer 1+2: resolved videos by content hash or title+duration.
	vid, err := w.store.LookupByContent(ctx, contentHash, p.HATitle, &dur)
	if err == nil {
		metrics.CacheHits.WithLabelValues("video").Inc()
		return w.finishSearch(ctx, item, &p, *vid.YTVideoID)
	}
	if !errors.Is(err, database.ErrNotFound) {
		w.fail(ctx, item, err.Error())
		return nil
	}
	metrics.CacheMisses.WithLabelValues("video").Inc()

	// Layer 3: search cache by title substring and duration range.
	row, err := w.store.CachedByTitleAndDuration(ctx, p.HATitle, dur, searchCacheDurationTolerance)
	if err == nil {
		metrics.CacheHits.WithLabelValues("search").Inc()
		if uerr := w.store.UpsertVideo(ctx, videoFromCacheRow(row, &p, contentHash)); uerr != nil {
			w.fail(ctx, item, uerr.Error())
			return nil
		}
		return w.finishSearch(ctx, item, &p, row.YTVideoID)
	}
	if !errors.Is(err, database.ErrNotFound) {
		w.fail(ctx, item, err.Error())
		return nil
	}
	metrics.CacheMisses.WithLabelValues("search").Inc()

	rem, err := w.remote(ctx)
	if err != nil {
		w.fail(ctx, item, err.Error())
		return err
	}
	candidates, err := rem.search.Resolve(ctx, p.HATitle, dur, p.HAArtist)
	if err != nil {
		w.fail(ctx, item, err.Error())
		return err
	}
	if len(candidates) == 0 {
		if nerr := w.store.RecordNotFound(ctx, p.HATitle, optional(p.HAArtist), &dur, contentHash); nerr != nil {
			logging.Error().Err(nerr).Str("ha_title", p.HATitle).Msg("Failed to record not-found entry")
		}
		w.fail(ctx, item, "No matching video found")
		return nil
	}

	match := candidates[0]
	match.HATitle = p.HATitle
	match.HAArtist = optional(p.HAArtist)
	match.HAAppName = optional(p.HAAppName)
	match.HADuration = &dur
	match.HAContentHash = &contentHash
	if err := w.store.UpsertVideo(ctx, match); err != nil {
		w.fail(ctx, item, err.Error())
		return nil
	}
	return w.finishSearch(ctx, item, &p, *match.YTVideoID)
}

// finishSearch records the play, enqueues the callback rating when present,
// and completes the item.
func (w *Worker) finishSearch(ctx context.Context, item *models.QueueItem, p *models.SearchPayload, ytVideoID string) error {
	if err := w.store.RecordPlay(ctx, ytVideoID); err != nil {
		w.fail(ctx, item, err.Error())
		return nil
	}
	metrics.PlaysRecorded.Inc()

	if p.CallbackRating != nil {
		payload, err := models.EncodePayload(models.RatingPayload{
			YTVideoID: ytVideoID,
			Rating:    *p.CallbackRating,
		})
		if err == nil {
			_, err = w.store.Enqueue(ctx, models.QueueItemRating, payload)
		}
		if err != nil {
			w.fail(ctx, item, "failed to enqueue callback rating: "+err.Error())
			return nil
		}
	}

	trace := fmt.Sprintf(`{"yt_video_id":%q}`, ytVideoID)
	w.complete(ctx, item, &trace)
	return nil
}

// videoFromCacheRow materializes a search-cache hit as a videos-table row
// tied to the current observation.
func videoFromCacheRow(row *models.CachedSearchResult, p *models.SearchPayload, contentHash string) *models.Video {
	id := row.YTVideoID
	url := models.WatchURL(id)
	return &models.Video{
		HATitle:       p.HATitle,
		HAArtist:      optional(p.HAArtist),
		HAAppName:     optional(p.HAAppName),
		HADuration:    &p.HADuration,
		HAContentHash: &contentHash,
		YTVideoID:     &id,
		YTTitle:       optional(row.YTTitle),
		YTChannel:     optional(row.YTChannel),
		YTChannelID:   optional(row.YTChannelID),
		YTDescription: optional(row.YTDescription),
		YTPublishedAt: row.YTPublishedAt,
		YTCategoryID:  optional(row.YTCategoryID),
		YTDuration:    &row.YTDuration,
		YTURL:         &url,
		Source:        models.SourceQueueSearch,
	}
}

func (w *Worker) complete(ctx context.Context, item *models.QueueItem, trace *string) {
	if err := w.store.MarkCompleted(ctx, item.ID, trace); err != nil {
		logging.Error().Err(err).Int64("id", item.ID).Msg("Failed to mark item completed")
		return
	}
	metrics.QueueItemsProcessed.WithLabelValues(string(item.Type), "completed").Inc()
}

func (w *Worker) fail(ctx context.Context, item *models.QueueItem, msg string) {
	logging.Warn().Int64("id", item.ID).Str("type", string(item.Type)).Str("error", msg).Msg("Queue item failed")
	if err := w.store.MarkFailed(ctx, item.ID, msg, nil); err != nil {
		logging.Error().Err(err).Int64("id", item.ID).Msg("Failed to mark item failed")
		return
	}
	metrics.QueueItemsProcessed.WithLabelValues(string(item.Type), "failed").Inc()
}

// remote returns the API surfaces, connecting on first use.
func (w *Worker) remote(ctx context.Context) (*remote, error) {
	if w.rem != nil {
		return w.rem, nil
	}
	r, err := w.connect(ctx)
	if err != nil {
		return nil, err
	}
	w.rem = r
	return r, nil
}

// sleep waits for d or until ctx is canceled.
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
