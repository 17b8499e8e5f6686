// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/database"
	"github.com/phonographus/phonographus/internal/models"
)

type fakeHA struct {
	np  *models.NowPlaying
	err error
}

func (f *fakeHA) NowPlaying(ctx context.Context) (*models.NowPlaying, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.np, nil
}

func (f *fakeHA) Ping(ctx context.Context) error { return nil }

func (f *fakeHA) Tracked(np *models.NowPlaying) bool {
	return np != nil && np.AppName == "YouTube"
}

type fakeStore struct {
	lookupHit *models.Video
	recent    bool

	plays    []string
	enqueued []json.RawMessage
}

func (f *fakeStore) LookupByContent(ctx context.Context, contentHash, title string, duration *int) (*models.Video, error) {
	if f.lookupHit != nil {
		return f.lookupHit, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) RecordPlay(ctx context.Context, ytVideoID string) error {
	f.plays = append(f.plays, ytVideoID)
	return nil
}

func (f *fakeStore) IsRecentlyNotFound(ctx context.Context, contentHash string, ttl time.Duration) (bool, error) {
	return f.recent, nil
}

func (f *fakeStore) Enqueue(ctx context.Context, itemType models.QueueItemType, payload json.RawMessage) (int64, error) {
	if itemType != models.QueueItemSearch {
		return 0, errors.New("unexpected item type")
	}
	f.enqueued = append(f.enqueued, payload)
	return int64(len(f.enqueued)), nil
}

func testConfig() *config.Config {
	return &config.Config{
		Poller: config.PollerConfig{
			Interval:     time.Millisecond,
			PlayCooldown: time.Hour,
			NotFoundTTL:  168 * time.Hour,
		},
	}
}

func playingTrack() *models.NowPlaying {
	return &models.NowPlaying{
		EntityID: "media_player.living_room",
		State:    "playing",
		Title:    "Yesterday",
		Artist:   "The Beatles",
		Duration: 125,
		AppName:  "YouTube",
	}
}

func strPtr(s string) *string { return &s }

func TestPollRecordsResolvedPlayOnce(t *testing.T) {
	store := &fakeStore{lookupHit: &models.Video{YTVideoID: strPtr("NrgmdOz227I")}}
	p := New(testConfig(), &fakeHA{np: playingTrack()}, store)
	ctx := context.Background()

	if err := p.poll(ctx); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if len(store.plays) != 1 || store.plays[0] != "NrgmdOz227I" {
		t.Fatalf("plays = %v", store.plays)
	}

	// Same track within the cooldown window: no second increment.
	if err := p.poll(ctx); err != nil {
		t.Fatalf("second poll failed: %v", err)
	}
	if len(store.plays) != 1 {
		t.Errorf("plays = %d, cooldown did not suppress", len(store.plays))
	}
}

func TestPollSkipsIdleAndForeignApps(t *testing.T) {
	cases := []*models.NowPlaying{
		{State: "idle", AppName: "YouTube"},
		{State: "paused", Title: "Yesterday", Duration: 125, AppName: "YouTube"},
		{State: "playing", Title: "Some Show", Duration: 1400, AppName: "Netflix"},
		{State: "playing", Duration: 125, AppName: "YouTube"},  // no title
		{State: "playing", Title: "Yesterday", AppName: "YouTube"}, // no duration
	}
	for i, np := range cases {
		store := &fakeStore{}
		p := New(testConfig(), &fakeHA{np: np}, store)
		if err := p.poll(context.Background()); err != nil {
			t.Fatalf("case %d: poll failed: %v", i, err)
		}
		if len(store.plays) != 0 || len(store.enqueued) != 0 {
			t.Errorf("case %d: poll acted on skippable state %+v", i, np)
		}
	}
}

func TestPollEnqueuesSearchOnMiss(t *testing.T) {
	store := &fakeStore{}
	p := New(testConfig(), &fakeHA{np: playingTrack()}, store)
	ctx := context.Background()

	if err := p.poll(ctx); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if len(store.enqueued) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(store.enqueued))
	}

	var payload models.SearchPayload
	if err := json.Unmarshal(store.enqueued[0], &payload); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if payload.HATitle != "Yesterday" || payload.HADuration != 125 {
		t.Errorf("payload = %+v", payload)
	}
	if payload.CallbackRating != nil {
		t.Error("poller search payload carries a callback rating")
	}

	// The cooldown guards the queue too: no duplicate search per tick.
	if err := p.poll(ctx); err != nil {
		t.Fatalf("second poll failed: %v", err)
	}
	if len(store.enqueued) != 1 {
		t.Errorf("enqueued = %d, duplicate search queued", len(store.enqueued))
	}
}

func TestPollHonorsNotFoundTTL(t *testing.T) {
	store := &fakeStore{recent: true}
	p := New(testConfig(), &fakeHA{np: playingTrack()}, store)

	if err := p.poll(context.Background()); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if len(store.enqueued) != 0 {
		t.Error("search enqueued for a recently-not-found track")
	}
}

func TestServeTurnsUnhealthyAfterConsecutiveFailures(t *testing.T) {
	p := New(testConfig(), &fakeHA{err: errors.New("connection refused")}, &fakeStore{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := p.Serve(ctx)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serve = %v, want unhealthy error before deadline", err)
	}
	if p.Healthy() {
		t.Error("poller still reports healthy")
	}
}

func TestBackoffCaps(t *testing.T) {
	base := 30 * time.Second
	if got := backoff(base, 1); got != base {
		t.Errorf("backoff(1) = %v, want %v", got, base)
	}
	if got := backoff(base, 3); got != 2*time.Minute {
		t.Errorf("backoff(3) = %v, want 2m", got)
	}
	if got := backoff(base, 9); got != maxBackoff {
		t.Errorf("backoff(9) = %v, want cap %v", got, maxBackoff)
	}
}
