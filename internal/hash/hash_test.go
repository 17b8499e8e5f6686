// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package hash

import "testing"

func intPtr(n int) *int { return &n }

func TestContentDeterministic(t *testing.T) {
	a := Content("Yesterday", intPtr(125), "The Beatles")
	b := Content("Yesterday", intPtr(125), "The Beatles")
	if a != b {
		t.Fatalf("same input produced different hashes: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64-char sha256 hex, got %d chars", len(a))
	}
}

func TestContentNormalizationInvariance(t *testing.T) {
	base := Content("Yesterday", intPtr(125), "The Beatles")
	cases := []struct {
		title  string
		artist string
	}{
		{"YESTERDAY", "the beatles"},
		{"  Yesterday  ", "The Beatles"},
		{"Yesterday (Official Video)", "The Beatles"},
		{"Yesterday [HD]", "The Beatles"},
		{"Yesterday - Official Audio", "The Beatles"},
	}
	for _, c := range cases {
		if got := Content(c.title, intPtr(125), c.artist); got != base {
			t.Errorf("Content(%q, 125, %q) = %s, want %s", c.title, c.artist, got, base)
		}
	}
}

func TestContentComponentSensitivity(t *testing.T) {
	base := Content("Yesterday", intPtr(125), "The Beatles")

	if got := Content("Tomorrow", intPtr(125), "The Beatles"); got == base {
		t.Error("different title produced same hash")
	}
	if got := Content("Yesterday", intPtr(126), "The Beatles"); got == base {
		t.Error("different duration produced same hash")
	}
	if got := Content("Yesterday", intPtr(125), "Oasis"); got == base {
		t.Error("different artist produced same hash")
	}
}

func TestContentNilDurationDistinctFromZero(t *testing.T) {
	withNil := Content("Yesterday", nil, "The Beatles")
	withZero := Content("Yesterday", intPtr(0), "The Beatles")
	if withNil == withZero {
		t.Error("nil duration and zero duration must hash differently")
	}
}

func TestContentNoArtist(t *testing.T) {
	with := Content("Yesterday", intPtr(125), "The Beatles")
	without := Content("Yesterday", intPtr(125), "")
	if with == without {
		t.Error("presence of artist must change the hash")
	}
}

func TestContentSeparatorPreventsAmbiguity(t *testing.T) {
	// ("a b", "") vs ("a", "b") must not collide once artist is prepended.
	a := Content("b", intPtr(10), "a")
	b := Content("a b", intPtr(10), "")
	if a == b {
		t.Error("separator failed to disambiguate artist vs title content")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Yesterday (Official Video) [HD]",
		"Song!!! with??? punctuation...",
		"  spaced   out   title  ",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizeStripsNoiseWords(t *testing.T) {
	got := Normalize("Flowers Official Music Video HD")
	if got != "flowers" {
		t.Errorf("Normalize = %q, want %q", got, "flowers")
	}
}
