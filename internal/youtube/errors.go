// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package youtube

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// Kind classifies a YouTube API failure. The worker matches on it
// exhaustively: each kind maps to exactly one handling policy.
type Kind int

const (
	// KindNetwork covers timeouts, transport failures, and 5xx responses.
	// Transient; the item fails and waits for an operator retry.
	KindNetwork Kind = iota

	// KindQuotaExceeded means the daily quota is spent. Not a generic
	// failure: it drives the worker's sleep-until-reset behavior.
	KindQuotaExceeded

	// KindVideoNotFound is a 404 on a single-id operation. Permanent.
	KindVideoNotFound

	// KindAuthentication is a 401/403 not attributable to quota. The worker
	// exits; credentials need operator attention.
	KindAuthentication

	// KindInvalidRequest is a 400 with a non-quota reason. Permanent; it
	// indicates a caller bug.
	KindInvalidRequest
)

// String returns the kind name used in logs and last_error text.
func (k Kind) String() string {
	switch k {
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindVideoNotFound:
		return "video_not_found"
	case KindAuthentication:
		return "authentication"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "network"
	}
}

// APIError wraps a YouTube API failure with its classification.
type APIError struct {
	Kind   Kind
	Method string
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube %s: %s: %v", e.Method, e.Kind, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// quotaReasons are googleapi error reasons that mean quota exhaustion.
var quotaReasons = map[string]struct{}{
	"quotaexceeded":      {},
	"ratelimitexceeded":  {},
	"dailylimitexceeded": {},
	"limitexceeded":      {},
}

// classify maps an API call failure onto the error taxonomy.
func classify(method string, err error) *APIError {
	apiErr := &APIError{Kind: KindNetwork, Method: method, Err: err}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return apiErr
	}

	if isQuotaError(gerr) {
		apiErr.Kind = KindQuotaExceeded
		return apiErr
	}

	switch {
	case gerr.Code == 404:
		apiErr.Kind = KindVideoNotFound
	case gerr.Code == 401 || gerr.Code == 403:
		apiErr.Kind = KindAuthentication
	case gerr.Code == 400:
		apiErr.Kind = KindInvalidRequest
	}
	return apiErr
}

// isQuotaError checks the structured reasons first, then falls back to
// message text, because the API is not consistent about where the quota
// signal lands.
func isQuotaError(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if _, ok := quotaReasons[strings.ToLower(item.Reason)]; ok {
			return true
		}
	}
	msg := strings.ToLower(gerr.Message)
	return strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit")
}

// ErrKind extracts the taxonomy kind from an error chain. The second return
// is false when err carries no APIError.
func ErrKind(err error) (Kind, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return KindNetwork, false
}

// IsQuotaExceeded reports whether err is a quota-exhaustion failure.
func IsQuotaExceeded(err error) bool {
	k, ok := ErrKind(err)
	return ok && k == KindQuotaExceeded
}

// IsAuthentication reports whether err is an authentication failure.
func IsAuthentication(err error) bool {
	k, ok := ErrKind(err)
	return ok && k == KindAuthentication
}
