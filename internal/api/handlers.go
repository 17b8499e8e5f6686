// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package api is the administrative HTTP surface: health, rating intake,
// and read-only statistics. The request path never calls the YouTube API;
// ratings and searches are enqueued for the worker.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/database"
	"github.com/phonographus/phonographus/internal/hash"
	"github.com/phonographus/phonographus/internal/homeassistant"
	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/models"
	"github.com/phonographus/phonographus/internal/quota"
	"github.com/phonographus/phonographus/internal/worker"
)

var validate = validator.New()

// Store is the read/enqueue surface the handlers use.
type Store interface {
	Ping(ctx context.Context) error
	GetStats(ctx context.Context) (*database.Stats, error)
	RefreshStats(ctx context.Context) (*database.Stats, error)
	ListVideos(ctx context.Context, limit, offset int) ([]*models.Video, error)
	ListQueue(ctx context.Context, status models.QueueStatus, limit, offset int) ([]*models.QueueItem, error)
	CountQueueByStatus(ctx context.Context) (map[models.QueueStatus]int, error)
	RetryFailed(ctx context.Context, id int64) error
	Enqueue(ctx context.Context, itemType models.QueueItemType, payload json.RawMessage) (int64, error)
	LookupByContent(ctx context.Context, contentHash, title string, duration *int) (*models.Video, error)
}

// PollerHealth exposes the poller's liveness to the health endpoint.
type PollerHealth interface {
	Healthy() bool
}

// Handler carries the dependencies of all endpoints.
type Handler struct {
	cfg    *config.Config
	store  Store
	ha     homeassistant.StateReader
	poller PollerHealth
	quota  *quota.StateFile
}

// NewHandler builds the endpoint handler set.
func NewHandler(cfg *config.Config, store Store, ha homeassistant.StateReader, poller PollerHealth) *Handler {
	return &Handler{
		cfg:    cfg,
		store:  store,
		ha:     ha,
		poller: poller,
		quota:  quota.NewStateFile(cfg.Quota.StatePath),
	}
}

// healthReport is the health endpoint body.
type healthReport struct {
	Status        string `json:"status"` // "ok" or "degraded"
	Database      bool   `json:"database"`
	WorkerRunning bool   `json:"worker_running"`
	WorkerPID     int    `json:"worker_pid,omitempty"`
	QuotaBlocked  bool   `json:"quota_blocked"`
	PollerHealthy bool   `json:"poller_healthy"`
}

// Health reports the composite service state. The response is 503 only when
// the database is unreachable; a stopped worker or a quota block degrade the
// report but the serving process itself is alive.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	report := healthReport{Status: "ok"}

	if err := h.store.Ping(r.Context()); err != nil {
		logging.Error().Err(err).Msg("Health check: database unreachable")
		report.Status = "degraded"
		respondData(w, http.StatusServiceUnavailable, report, start)
		return
	}
	report.Database = true

	pid, alive := worker.Holder(h.cfg.Worker.PIDPath)
	report.WorkerRunning = alive
	if alive {
		report.WorkerPID = pid
	}

	if state, err := h.quota.Load(); err == nil {
		report.QuotaBlocked = state.Blocked
	}

	report.PollerHealthy = h.poller == nil || h.poller.Healthy()

	if !report.WorkerRunning || report.QuotaBlocked || !report.PollerHealthy {
		report.Status = "degraded"
	}
	respondData(w, http.StatusOK, report, start)
}

// Stats serves the cached statistics summary, computing it on first access.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	stats, err := h.store.GetStats(r.Context())
	if errors.Is(err, database.ErrNotFound) {
		stats, err = h.store.RefreshStats(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STATS_ERROR", "Failed to load statistics", err)
		return
	}
	respondData(w, http.StatusOK, stats, start)
}

// Videos lists tracked videos, most recently added first.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, offset := h.pagination(r)

	videos, err := h.store.ListVideos(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to list videos", err)
		return
	}
	respondData(w, http.StatusOK, videos, start)
}

// queueReport pairs the item page with the per-status depth counts.
type queueReport struct {
	Items  []*models.QueueItem        `json:"items"`
	Counts map[models.QueueStatus]int `json:"counts"`
}

// Queue lists queue items, optionally filtered by ?status=.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limit, offset := h.pagination(r)

	status := models.QueueStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed:
	default:
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown queue status", nil)
		return
	}

	items, err := h.store.ListQueue(r.Context(), status, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to list queue", err)
		return
	}
	counts, err := h.store.CountQueueByStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to count queue", err)
		return
	}
	respondData(w, http.StatusOK, queueReport{Items: items, Counts: counts}, start)
}

// RetryQueueItem moves one failed item back to pending.
func (h *Handler) RetryQueueItem(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid queue item id", nil)
		return
	}

	switch err := h.store.RetryFailed(r.Context(), id); {
	case err == nil:
		respondData(w, http.StatusOK, map[string]int64{"id": id}, start)
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No failed queue item with that id", nil)
	default:
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Failed to retry queue item", err)
	}
}

// rateRequest is the rating intake body.
type rateRequest struct {
	Rating models.Rating `json:"rating" validate:"required,oneof=like dislike"`
}

// rateResponse tells the caller which kind of work was queued.
type rateResponse struct {
	Queued  models.QueueItemType `json:"queued"`
	QueueID int64                `json:"queue_id"`
}

// RateNow rates whatever is currently playing. Nothing remote happens on the
// request path: a known video enqueues a rating item, an unknown one
// enqueues a search with a callback rating.
func (h *Handler) RateNow(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed request body", nil)
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "rating must be like or dislike", nil)
		return
	}

	np, err := h.ha.NowPlaying(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Home Assistant unreachable", err)
		return
	}
	if !np.Playing() || !h.ha.Tracked(np) {
		respondError(w, http.StatusBadRequest, "NOT_YOUTUBE", "Current media is not a YouTube playback", nil)
		return
	}
	if np.Title == "" || np.Duration <= 0 {
		respondError(w, http.StatusBadRequest, "NOT_YOUTUBE", "Current media has no title or duration", nil)
		return
	}

	dur := np.Duration
	contentHash := hash.Content(np.Title, &dur, np.Artist)

	if vid, err := h.store.LookupByContent(r.Context(), contentHash, np.Title, &dur); err == nil {
		payload, merr := models.EncodePayload(models.RatingPayload{
			YTVideoID: *vid.YTVideoID,
			Rating:    req.Rating,
		})
		if merr != nil {
			respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "Failed to encode rating", merr)
			return
		}
		id, qerr := h.store.Enqueue(r.Context(), models.QueueItemRating, payload)
		if qerr != nil {
			respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "Failed to enqueue rating", qerr)
			return
		}
		respondData(w, http.StatusAccepted, rateResponse{Queued: models.QueueItemRating, QueueID: id}, start)
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "QUERY_ERROR", "Cache lookup failed", err)
		return
	}

	payload, err := models.EncodePayload(models.SearchPayload{
		HATitle:        np.Title,
		HAArtist:       np.Artist,
		HAAlbum:        np.Album,
		HAContentID:    np.ContentID,
		HADuration:     dur,
		HAAppName:      np.AppName,
		CallbackRating: &req.Rating,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "Failed to encode search", err)
		return
	}
	id, err := h.store.Enqueue(r.Context(), models.QueueItemSearch, payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUEUE_ERROR", "Failed to enqueue search", err)
		return
	}
	respondData(w, http.StatusAccepted, rateResponse{Queued: models.QueueItemSearch, QueueID: id}, start)
}

// pagination clamps limit/offset query parameters to the configured bounds.
func (h *Handler) pagination(r *http.Request) (limit, offset int) {
	limit = getIntParam(r, "limit", h.cfg.API.DefaultPageSize)
	if limit < 1 {
		limit = h.cfg.API.DefaultPageSize
	}
	if limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.MaxPageSize
	}
	offset = getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
