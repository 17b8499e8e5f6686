// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordYouTubeCall(t *testing.T) {
	before := testutil.ToFloat64(YouTubeQuotaUnits.WithLabelValues("search.list"))

	RecordYouTubeCall("search.list", true, 100)
	RecordYouTubeCall("search.list", false, 100)

	after := testutil.ToFloat64(YouTubeQuotaUnits.WithLabelValues("search.list"))
	if after-before != 100 {
		t.Errorf("quota units delta = %v, want 100 (failed calls spend nothing)", after-before)
	}

	if got := testutil.ToFloat64(YouTubeAPICalls.WithLabelValues("search.list", "failure")); got < 1 {
		t.Errorf("failure counter = %v, want >= 1", got)
	}
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth(map[string]int{"pending": 3, "failed": 1})

	if got := testutil.ToFloat64(QueueDepth.WithLabelValues("pending")); got != 3 {
		t.Errorf("pending depth = %v, want 3", got)
	}
	// Absent statuses reset to zero rather than holding stale values.
	if got := testutil.ToFloat64(QueueDepth.WithLabelValues("processing")); got != 0 {
		t.Errorf("processing depth = %v, want 0", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/stats", "200"))
	RecordAPIRequest("GET", "/api/v1/stats", 200, 12*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/stats", "200"))
	if after-before != 1 {
		t.Errorf("request counter delta = %v, want 1", after-before)
	}
}
