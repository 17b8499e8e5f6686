// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package homeassistant reads the media player entity state over the Home
// Assistant REST API. The poller only ever needs one endpoint, GET
// /api/states/{entity_id}, so the client stays small; resilience against a
// flapping Home Assistant lives in the circuit breaker wrapper.
package homeassistant

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/models"
)

// maxErrorBodySize caps how much of an error response body is read back for
// diagnostics.
const maxErrorBodySize = 8 * 1024

// entityState mirrors the Home Assistant state object for a media_player
// entity. Only the attributes the tracker consumes are decoded.
type entityState struct {
	EntityID   string `json:"entity_id"`
	State      string `json:"state"`
	Attributes struct {
		MediaTitle     string  `json:"media_title"`
		MediaArtist    string  `json:"media_artist"`
		MediaAlbumName string  `json:"media_album_name"`
		MediaContentID string  `json:"media_content_id"`
		MediaDuration  float64 `json:"media_duration"`
		AppName        string  `json:"app_name"`
	} `json:"attributes"`
}

// Client talks to the Home Assistant REST API with a long-lived access token.
//
// Thread Safety: safe for concurrent use. Each request creates its own
// http.Request.
type Client struct {
	baseURL  string
	token    string
	entityID string
	appName  string
	client   *http.Client
}

// NewClient creates a Home Assistant client from configuration.
func NewClient(cfg *config.HomeAssistantConfig) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		token:    cfg.Token,
		entityID: cfg.EntityID,
		appName:  cfg.AppName,
		client: &http.Client{
			Timeout: timeoutOrDefault(cfg.Timeout),
		},
	}
}

// NowPlaying fetches the configured entity's current state and maps it onto
// the tracker's snapshot model. A non-playing entity still returns a snapshot;
// callers decide relevance via Playing and Tracked.
func (c *Client) NowPlaying(ctx context.Context) (*models.NowPlaying, error) {
	reqURL := fmt.Sprintf("%s/api/states/%s", c.baseURL, c.entityID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create state request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("home assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("home assistant state request for %s returned status %d: %s",
			c.entityID, resp.StatusCode, string(body))
	}

	var st entityState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode state response: %w", err)
	}

	return &models.NowPlaying{
		EntityID:  st.EntityID,
		State:     st.State,
		Title:     st.Attributes.MediaTitle,
		Artist:    st.Attributes.MediaArtist,
		Album:     st.Attributes.MediaAlbumName,
		ContentID: st.Attributes.MediaContentID,
		Duration:  int(st.Attributes.MediaDuration),
		AppName:   st.Attributes.AppName,
	}, nil
}

// Ping verifies the API is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("home assistant ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("home assistant ping returned status %d", resp.StatusCode)
	}
	return nil
}

// Tracked reports whether the snapshot comes from the app this tracker
// follows. Other casting sources on the same player are ignored.
func (c *Client) Tracked(np *models.NowPlaying) bool {
	return np != nil && strings.EqualFold(np.AppName, c.appName)
}

// readBodyForError reads at most maxErrorBodySize of a response body for
// error reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

// StateReader is the surface the poller depends on, implemented by both the
// raw client and the circuit breaker wrapper.
type StateReader interface {
	NowPlaying(ctx context.Context) (*models.NowPlaying, error)
	Ping(ctx context.Context) error
	Tracked(np *models.NowPlaying) bool
}

var (
	_ StateReader = (*Client)(nil)
	_ StateReader = (*BreakerClient)(nil)
)

// timeoutOrDefault guards against a zero timeout from hand-edited config.
func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
