// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package youtube

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/renameio/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/logging"
)

// scopeYouTube grants read/write access including ratings.
const scopeYouTube = "https://www.googleapis.com/auth/youtube"

// ErrNoToken is returned when no OAuth token has been persisted yet; the
// operator must run the one-time authorize flow.
var ErrNoToken = errors.New("no oauth token stored; run the authorize flow first")

// OAuthConfig builds the oauth2 config from application settings.
func OAuthConfig(cfg *config.YouTubeConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{scopeYouTube},
	}
}

// TokenFile persists the OAuth token as JSON with file mode 0600. Writes are
// atomic so a crash mid-refresh cannot leave a torn token on disk.
type TokenFile struct {
	path string
}

// NewTokenFile returns a token store at path.
func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// Load reads the persisted token. Returns ErrNoToken when the file does not
// exist.
func (t *TokenFile) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file %s: %w", t.path, err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", t.path, err)
	}
	return &tok, nil
}

// Save writes the token atomically with mode 0600.
func (t *TokenFile) Save(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := renameio.WriteFile(t.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file %s: %w", t.path, err)
	}
	return nil
}

// AuthCodeURL returns the consent URL for the one-time authorize flow.
// Offline access is requested so a refresh token is issued.
func AuthCodeURL(cfg *config.YouTubeConfig, state string) string {
	return OAuthConfig(cfg).AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and persists it.
func Exchange(ctx context.Context, cfg *config.YouTubeConfig, store *TokenFile, code string) (*oauth2.Token, error) {
	tok, err := OAuthConfig(cfg).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange failed: %w", err)
	}
	if err := store.Save(tok); err != nil {
		return nil, err
	}
	logging.Info().Msg("OAuth token persisted")
	return tok, nil
}

// persistingTokenSource wraps an oauth2.TokenSource and writes every rotated
// token back to the token file so refresh tokens survive restarts.
type persistingTokenSource struct {
	src   oauth2.TokenSource
	store *TokenFile

	mu   sync.Mutex
	last *oauth2.Token
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil || p.last.AccessToken != tok.AccessToken {
		if saveErr := p.store.Save(tok); saveErr != nil {
			logging.Error().Err(saveErr).Msg("Failed to persist refreshed OAuth token")
		}
		p.last = tok
	}
	return tok, nil
}

// tokenSource builds the refreshing, persisting token source used by the
// API client.
func tokenSource(ctx context.Context, cfg *config.YouTubeConfig, store *TokenFile) (oauth2.TokenSource, error) {
	tok, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &persistingTokenSource{
		src:   OAuthConfig(cfg).TokenSource(ctx, tok),
		store: store,
		last:  tok,
	}, nil
}
