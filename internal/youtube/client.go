// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package youtube wraps the YouTube Data API v3 for search, detail fetch,
// and rating operations. Every call is recorded with its quota cost so the
// quota calendar can reason about the daily budget, and every failure is
// classified into the error taxonomy the worker dispatches on.
package youtube

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/metrics"
	"github.com/phonographus/phonographus/internal/models"
)

// Quota costs per method, in units of the daily budget.
const (
	CostSearchList      = 100
	CostVideosRate      = 50
	CostVideosGetRating = 1
	// videos.list costs one unit per id in the batch.
)

// API method names as recorded in the api_call_log.
const (
	MethodSearchList      = "search.list"
	MethodVideosList      = "videos.list"
	MethodVideosGetRating = "videos.getRating"
	MethodVideosRate      = "videos.rate"
)

// Recorder receives one record per remote call. Failed calls are recorded
// with quota cost zero; the cost was not actually spent, but the log row is
// what lets the quota calendar detect exhaustion.
type Recorder interface {
	RecordAPICall(ctx context.Context, method string, success bool, quotaCost int, errMsg *string) error
}

// SearchResult is one hit from search.list, trimmed by the fields mask to
// the id and title the pipeline scores on.
type SearchResult struct {
	VideoID string
	Title   string
}

// Client is the authenticated YouTube Data API client.
type Client struct {
	svc      *yt.Service
	recorder Recorder
}

// New builds a client from the persisted OAuth token. Returns ErrNoToken if
// the authorize flow has never run. The worker calls this lazily so a
// quota-blocked startup does not touch credentials at all.
func New(ctx context.Context, cfg *config.YouTubeConfig, rec Recorder) (*Client, error) {
	ts, err := tokenSource(ctx, cfg, NewTokenFile(cfg.TokenPath))
	if err != nil {
		return nil, err
	}

	svc, err := yt.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to build youtube service: %w", err)
	}
	return &Client{svc: svc, recorder: rec}, nil
}

// NewWithService wraps an existing service. Used by tests.
func NewWithService(svc *yt.Service, rec Recorder) *Client {
	return &Client{svc: svc, recorder: rec}
}

// record logs the call outcome, swallowing store errors: metrics must never
// break the call path.
func (c *Client) record(ctx context.Context, method string, cost int, err error) {
	var errMsg *string
	success := err == nil
	if err != nil {
		msg := err.Error()
		errMsg = &msg
		cost = 0
	}
	metrics.RecordYouTubeCall(method, success, cost)
	if recErr := c.recorder.RecordAPICall(ctx, method, success, cost, errMsg); recErr != nil {
		logging.Error().Err(recErr).Str("method", method).Msg("Failed to record API call")
	}
}

// Search issues one text search for up to maxResults videos (quota 100).
func (c *Client) Search(ctx context.Context, query string, maxResults int64) ([]SearchResult, error) {
	call := c.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("video").
		MaxResults(maxResults).
		Fields("items(id/videoId,snippet/title)").
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		apiErr := classify(MethodSearchList, err)
		c.record(ctx, MethodSearchList, 0, apiErr)
		return nil, apiErr
	}
	c.record(ctx, MethodSearchList, CostSearchList, nil)

	results := make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		results = append(results, SearchResult{
			VideoID: item.Id.VideoId,
			Title:   item.Snippet.Title,
		})
	}
	logging.Debug().Str("query", query).Int("results", len(results)).Msg("Search completed")
	return results, nil
}

// VideosList batch-fetches contentDetails, snippet, and recordingDetails
// for the given ids in one call (quota = number of ids).
func (c *Client) VideosList(ctx context.Context, ids []string) ([]*yt.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	call := c.svc.Videos.List([]string{"contentDetails", "snippet", "recordingDetails"}).
		Id(strings.Join(ids, ",")).
		Fields("items(id,contentDetails/duration,snippet(title,description,channelTitle,channelId,publishedAt,categoryId,liveBroadcastContent),recordingDetails(locationDescription,recordingDate))").
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		apiErr := classify(MethodVideosList, err)
		c.record(ctx, MethodVideosList, 0, apiErr)
		return nil, apiErr
	}
	c.record(ctx, MethodVideosList, len(ids), nil)
	return resp.Items, nil
}

// GetRating returns the authenticated user's rating for a video (quota 1).
func (c *Client) GetRating(ctx context.Context, videoID string) (models.Rating, error) {
	call := c.svc.Videos.GetRating([]string{videoID}).Context(ctx)

	resp, err := call.Do()
	if err != nil {
		apiErr := classify(MethodVideosGetRating, err)
		c.record(ctx, MethodVideosGetRating, 0, apiErr)
		return models.RatingNone, apiErr
	}
	c.record(ctx, MethodVideosGetRating, CostVideosGetRating, nil)

	if len(resp.Items) == 0 {
		return models.RatingNone, &APIError{
			Kind:   KindVideoNotFound,
			Method: MethodVideosGetRating,
			Err:    fmt.Errorf("no rating item for %s", videoID),
		}
	}
	return models.Rating(resp.Items[0].Rating), nil
}

// SetRating applies a rating to a video (quota 50). The remote operation is
// idempotent; repeating it with the same value is safe.
func (c *Client) SetRating(ctx context.Context, videoID string, r models.Rating) error {
	if !r.Valid() {
		return &APIError{
			Kind:   KindInvalidRequest,
			Method: MethodVideosRate,
			Err:    fmt.Errorf("invalid rating %q", r),
		}
	}

	call := c.svc.Videos.Rate(videoID, string(r)).Context(ctx)
	if err := call.Do(); err != nil {
		apiErr := classify(MethodVideosRate, err)
		c.record(ctx, MethodVideosRate, 0, apiErr)
		return apiErr
	}
	c.record(ctx, MethodVideosRate, CostVideosRate, nil)

	logging.Info().Str("yt_video_id", videoID).Str("rating", string(r)).Msg("Rating applied")
	return nil
}
