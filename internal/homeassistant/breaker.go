// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package homeassistant

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/phonographus/phonographus/internal/config"
	"github.com/phonographus/phonographus/internal/logging"
	"github.com/phonographus/phonographus/internal/metrics"
	"github.com/phonographus/phonographus/internal/models"
)

// BreakerClient wraps Client with a circuit breaker so a down or slow Home
// Assistant stops costing a full request timeout on every poll cycle.
//
// The breaker uses real time for its recovery windows. Tests exercise the
// wrapped client directly or drive the breaker through failures.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[*models.NowPlaying]
	name   string
}

// breakerTripFailures is the consecutive-failure count that opens the
// circuit. At the default 30s poll interval this is two and a half minutes of
// outage before the breaker starts rejecting.
const breakerTripFailures = 5

// NewBreakerClient creates a state reader with circuit breaker protection.
// The circuit opens after 5 consecutive failures and probes again after 2
// minutes.
func NewBreakerClient(cfg *config.HomeAssistantConfig) *BreakerClient {
	client := NewClient(cfg)
	cbName := "home-assistant"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[*models.NowPlaying](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1, // One probe at a time in half-open state
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= breakerTripFailures
			if shouldTrip {
				logging.Warn().
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// NowPlaying fetches the entity state with circuit breaker protection.
func (b *BreakerClient) NowPlaying(ctx context.Context) (*models.NowPlaying, error) {
	np, err := b.cb.Execute(func() (*models.NowPlaying, error) {
		return b.client.NowPlaying(ctx)
	})
	b.observe(err)
	return np, err
}

// Ping verifies connectivity with circuit breaker protection.
func (b *BreakerClient) Ping(ctx context.Context) error {
	_, err := b.cb.Execute(func() (*models.NowPlaying, error) {
		return nil, b.client.Ping(ctx)
	})
	b.observe(err)
	return err
}

// Tracked reports whether the snapshot comes from the tracked app.
func (b *BreakerClient) Tracked(np *models.NowPlaying) bool {
	return b.client.Tracked(np)
}

// observe updates breaker metrics for one call outcome.
func (b *BreakerClient) observe(err error) {
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
}

// stateToFloat converts circuit breaker state to a numeric value for metrics.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to a string for logging.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
