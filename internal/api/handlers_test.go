// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/database"
	"github.com/phonographus/phonographus/internal/models"
)

type fakeStore struct {
	pingErr   error
	stats     *database.Stats
	statsMiss bool
	lookupHit *models.Video

	listLimit int
	enqueued  []models.QueueItemType
	payloads  []json.RawMessage
	retried   []int64
	retryErr  error
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeStore) GetStats(ctx context.Context) (*database.Stats, error) {
	if f.statsMiss {
		return nil, database.ErrNotFound
	}
	return f.stats, nil
}

func (f *fakeStore) RefreshStats(ctx context.Context) (*database.Stats, error) {
	f.statsMiss = false
	return f.stats, nil
}

func (f *fakeStore) ListVideos(ctx context.Context, limit, offset int) ([]*models.Video, error) {
	f.listLimit = limit
	return nil, nil
}

func (f *fakeStore) ListQueue(ctx context.Context, status models.QueueStatus, limit, offset int) ([]*models.QueueItem, error) {
	return nil, nil
}

func (f *fakeStore) CountQueueByStatus(ctx context.Context) (map[models.QueueStatus]int, error) {
	return map[models.QueueStatus]int{models.StatusPending: 1}, nil
}

func (f *fakeStore) RetryFailed(ctx context.Context, id int64) error {
	if f.retryErr != nil {
		return f.retryErr
	}
	f.retried = append(f.retried, id)
	return nil
}

func (f *fakeStore) Enqueue(ctx context.Context, itemType models.QueueItemType, payload json.RawMessage) (int64, error) {
	f.enqueued = append(f.enqueued, itemType)
	f.payloads = append(f.payloads, payload)
	return int64(len(f.enqueued)), nil
}

func (f *fakeStore) LookupByContent(ctx context.Context, contentHash, title string, duration *int) (*models.Video, error) {
	if f.lookupHit != nil {
		return f.lookupHit, nil
	}
	return nil, database.ErrNotFound
}

type fakeHA struct {
	np  *models.NowPlaying
	err error
}

func (f *fakeHA) NowPlaying(ctx context.Context) (*models.NowPlaying, error) {
	return f.np, f.err
}

func (f *fakeHA) Ping(ctx context.Context) error { return nil }

func (f *fakeHA) Tracked(np *models.NowPlaying) bool {
	return np != nil && np.AppName == "YouTube"
}

type fakePoller struct{ healthy bool }

func (f *fakePoller) Healthy() bool { return f.healthy }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Worker: config.WorkerConfig{PIDPath: filepath.Join(dir, "worker.pid")},
		Quota:  config.QuotaConfig{StatePath: filepath.Join(dir, "quota_state.json")},
		API: config.APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8537, Timeout: 10 * time.Second},
	}
}

func newTestRouter(t *testing.T, store *fakeStore, ha *fakeHA) http.Handler {
	t.Helper()
	cfg := testConfig(t)
	h := NewHandler(cfg, store, ha, &fakePoller{healthy: true})
	return NewRouter(cfg, h).Setup()
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return &resp
}

func playingYouTube() *models.NowPlaying {
	return &models.NowPlaying{
		State:    "playing",
		Title:    "Yesterday",
		Artist:   "The Beatles",
		Duration: 125,
		AppName:  "YouTube",
	}
}

func TestHealthDegradedWithoutWorker(t *testing.T) {
	router := newTestRouter(t, &fakeStore{}, &fakeHA{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	data, _ := json.Marshal(resp.Data)
	var report healthReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.Database {
		t.Error("database check failed")
	}
	if report.WorkerRunning {
		t.Error("worker reported running with no PID file")
	}
	if report.Status != "degraded" {
		t.Errorf("status = %q, want degraded", report.Status)
	}
}

func TestHealthUnavailableWithoutDatabase(t *testing.T) {
	router := newTestRouter(t, &fakeStore{pingErr: errors.New("locked")}, &fakeHA{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestStatsRefreshesOnFirstAccess(t *testing.T) {
	store := &fakeStore{
		stats:     &database.Stats{TotalVideos: 7},
		statsMiss: true,
	}
	router := newTestRouter(t, store, &fakeHA{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if store.statsMiss {
		t.Error("stats not refreshed on cache miss")
	}
}

func TestVideosClampsPageSize(t *testing.T) {
	store := &fakeStore{}
	router := newTestRouter(t, store, &fakeHA{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos?limit=5000", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.listLimit != 100 {
		t.Errorf("limit = %d, want clamped to 100", store.listLimit)
	}
}

func TestQueueRejectsUnknownStatus(t *testing.T) {
	router := newTestRouter(t, &fakeStore{}, &fakeHA{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/queue?status=bogus", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRetryQueueItem(t *testing.T) {
	store := &fakeStore{}
	router := newTestRouter(t, store, &fakeHA{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/queue/42/retry", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.retried) != 1 || store.retried[0] != 42 {
		t.Errorf("retried = %v", store.retried)
	}

	store.retryErr = database.ErrNotFound
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/queue/42/retry", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/queue/abc/retry", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func rateBody(rating string) *bytes.Buffer {
	return bytes.NewBufferString(`{"rating":"` + rating + `"}`)
}

func TestRateNowKnownVideoEnqueuesRating(t *testing.T) {
	store := &fakeStore{lookupHit: &models.Video{YTVideoID: strPtr("NrgmdOz227I")}}
	router := newTestRouter(t, store, &fakeHA{np: playingYouTube()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rate", rateBody("like")))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.enqueued) != 1 || store.enqueued[0] != models.QueueItemRating {
		t.Fatalf("enqueued = %v, want one rating item", store.enqueued)
	}
	var p models.RatingPayload
	if err := json.Unmarshal(store.payloads[0], &p); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if p.YTVideoID != "NrgmdOz227I" || p.Rating != models.RatingLike {
		t.Errorf("payload = %+v", p)
	}
}

func TestRateNowUnknownVideoEnqueuesSearchWithCallback(t *testing.T) {
	store := &fakeStore{}
	router := newTestRouter(t, store, &fakeHA{np: playingYouTube()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rate", rateBody("dislike")))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.enqueued) != 1 || store.enqueued[0] != models.QueueItemSearch {
		t.Fatalf("enqueued = %v, want one search item", store.enqueued)
	}
	var p models.SearchPayload
	if err := json.Unmarshal(store.payloads[0], &p); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if p.CallbackRating == nil || *p.CallbackRating != models.RatingDislike {
		t.Errorf("callback rating = %v", p.CallbackRating)
	}
	if p.HATitle != "Yesterday" || p.HADuration != 125 {
		t.Errorf("payload = %+v", p)
	}
}

func TestRateNowRejectsNonYouTubePlayback(t *testing.T) {
	cases := []*models.NowPlaying{
		{State: "playing", Title: "Some Show", Duration: 1400, AppName: "Netflix"},
		{State: "idle", AppName: "YouTube"},
		{State: "playing", AppName: "YouTube"}, // no title/duration
	}
	for i, np := range cases {
		store := &fakeStore{}
		router := newTestRouter(t, store, &fakeHA{np: np})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rate", rateBody("like")))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400", i, rec.Code)
		}
		if len(store.enqueued) != 0 {
			t.Errorf("case %d: work enqueued for non-YouTube media", i)
		}
	}
}

func TestRateNowValidatesRating(t *testing.T) {
	router := newTestRouter(t, &fakeStore{}, &fakeHA{np: playingYouTube()})

	for _, body := range []string{`{"rating":"love"}`, `{}`, `not json`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rate", bytes.NewBufferString(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestRateNowUpstreamFailure(t *testing.T) {
	router := newTestRouter(t, &fakeStore{}, &fakeHA{err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rate", rateBody("like")))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func strPtr(s string) *string { return &s }
