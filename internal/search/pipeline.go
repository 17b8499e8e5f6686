// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	yt "google.golang.org/api/youtube/v3"

	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/models"
	"github.com/phonographus/phonographus/internal/normalize"
	"github.com/phonographus/phonographus/internal/youtube"
)

// maxSearchResults is the single text search fan-out.
const maxSearchResults = 25

// maxCandidates bounds the returned candidate list.
const maxCandidates = 10

// APIClient is the slice of the YouTube client the pipeline drives.
type APIClient interface {
	Search(ctx context.Context, query string, maxResults int64) ([]youtube.SearchResult, error)
	VideosList(ctx context.Context, ids []string) ([]*yt.Video, error)
}

// CacheStore persists opportunistically fetched videos.
type CacheStore interface {
	CacheSearchResults(ctx context.Context, results []*models.CachedSearchResult, ttl time.Duration) error
}

// Pipeline turns (title, duration, artist) into resolved video candidates.
type Pipeline struct {
	client APIClient
	store  CacheStore
	cfg    *config.SearchConfig
}

// NewPipeline builds a search pipeline.
func NewPipeline(client APIClient, store CacheStore, cfg *config.SearchConfig) *Pipeline {
	return &Pipeline{client: client, store: store, cfg: cfg}
}

// Resolve searches for the observed track and returns at most 10 candidates
// whose duration equals expectedDuration or expectedDuration+1, best match
// first. An empty result with a nil error means no video matched; the caller
// records a not-found entry. Quota and auth errors propagate unchanged so the
// worker can dispatch on them.
func (p *Pipeline) Resolve(ctx context.Context, title string, expectedDuration int, artist string) ([]*models.Video, error) {
	query := normalize.SearchQuery(title, artist)
	if query == "" {
		return nil, fmt.Errorf("empty query after normalizing title %q", title)
	}

	results, err := p.client.Search(ctx, query, maxSearchResults)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		logging.Debug().Str("query", query).Msg("Search returned no results")
		return nil, nil
	}

	// Best similarity first; stable so the API's own ranking breaks ties.
	type scored struct {
		id    string
		score float64
	}
	ranked := make([]scored, 0, len(results))
	for _, r := range results {
		if models.ValidVideoID(r.VideoID) {
			ranked = append(ranked, scored{id: r.VideoID, score: Similarity(query, r.Title)})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	ids := make([]string, len(ranked))
	for i, s := range ranked {
		ids[i] = s.id
	}

	phase1 := min(p.cfg.Phase1Size, len(ids))
	candidates, err := p.fetchPhase(ctx, ids[:phase1], expectedDuration)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 && phase1 < len(ids) {
		phase2 := min(phase1+p.cfg.Phase2Size, len(ids))
		candidates, err = p.fetchPhase(ctx, ids[phase1:phase2], expectedDuration)
		if err != nil {
			return nil, err
		}
	}

	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	logging.Info().
		Str("query", query).
		Int("expected_duration", expectedDuration).
		Int("candidates", len(candidates)).
		Msg("Search pipeline finished")
	return candidates, nil
}

// fetchPhase batch-fetches one id window, caches every fetched video, and
// returns the duration-accepted candidates in fetch order.
func (p *Pipeline) fetchPhase(ctx context.Context, ids []string, expectedDuration int) ([]*models.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	videos, err := p.client.VideosList(ctx, ids)
	if err != nil {
		return nil, err
	}

	var candidates []*models.Video
	cacheRows := make([]*models.CachedSearchResult, 0, len(videos))

	for _, v := range videos {
		rec := fromAPIVideo(v)
		if rec == nil {
			continue
		}
		cacheRows = append(cacheRows, toCacheRow(rec))

		d := *rec.YTDuration
		if d == expectedDuration || d == expectedDuration+1 {
			candidates = append(candidates, rec)
		}
	}

	if len(cacheRows) > 0 {
		if err := p.store.CacheSearchResults(ctx, cacheRows, p.cfg.CacheTTL); err != nil {
			// Cache population is opportunistic; a failed write must not
			// cost the quota already spent on this fetch.
			logging.Error().Err(err).Int("rows", len(cacheRows)).Msg("Failed to cache search results")
		}
	}
	return candidates, nil
}

// fromAPIVideo maps an API video onto a record. Returns nil for videos that
// cannot anchor a duration match: malformed id, missing or unparseable
// duration, or duration out of bounds.
func fromAPIVideo(v *yt.Video) *models.Video {
	if v == nil || !models.ValidVideoID(v.Id) || v.ContentDetails == nil || v.Snippet == nil {
		return nil
	}

	dur, err := normalize.ParseDuration(v.ContentDetails.Duration)
	if err != nil {
		logging.Debug().Str("yt_video_id", v.Id).Str("duration", v.ContentDetails.Duration).Msg("Skipping video with unparseable duration")
		return nil
	}
	if err := normalize.ValidateDuration(dur); err != nil {
		return nil
	}

	desc := v.Snippet.Description
	if len(desc) > models.MaxDescriptionLen {
		desc = desc[:models.MaxDescriptionLen]
	}

	id := v.Id
	url := models.WatchURL(id)
	rec := &models.Video{
		YTVideoID:     &id,
		YTTitle:       strPtr(v.Snippet.Title),
		YTChannel:     strPtr(v.Snippet.ChannelTitle),
		YTChannelID:   strPtr(v.Snippet.ChannelId),
		YTDescription: strPtr(desc),
		YTCategoryID:  strPtr(v.Snippet.CategoryId),
		YTDuration:    &dur,
		YTURL:         &url,
		Source:        models.SourceQueueSearch,
	}
	if v.Snippet.LiveBroadcastContent != "" {
		rec.YTLiveBroadcast = strPtr(v.Snippet.LiveBroadcastContent)
	}
	if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
		rec.YTPublishedAt = &t
	}
	if v.RecordingDetails != nil {
		if v.RecordingDetails.LocationDescription != "" {
			rec.YTLocation = strPtr(v.RecordingDetails.LocationDescription)
		}
		if t, err := time.Parse(time.RFC3339, v.RecordingDetails.RecordingDate); err == nil {
			rec.YTRecordingDate = &t
		}
	}
	return rec
}

// toCacheRow projects a record onto its search cache row.
func toCacheRow(rec *models.Video) *models.CachedSearchResult {
	row := &models.CachedSearchResult{
		YTVideoID:     *rec.YTVideoID,
		YTDuration:    *rec.YTDuration,
		YTPublishedAt: rec.YTPublishedAt,
	}
	if rec.YTTitle != nil {
		row.YTTitle = *rec.YTTitle
	}
	if rec.YTChannel != nil {
		row.YTChannel = *rec.YTChannel
	}
	if rec.YTChannelID != nil {
		row.YTChannelID = *rec.YTChannelID
	}
	if rec.YTDescription != nil {
		row.YTDescription = *rec.YTDescription
	}
	if rec.YTCategoryID != nil {
		row.YTCategoryID = *rec.YTCategoryID
	}
	return row
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
