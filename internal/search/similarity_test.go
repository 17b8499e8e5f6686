// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

package search

import "testing"

func TestSimilarityExactMatch(t *testing.T) {
	if got := Similarity("Bohemian Rhapsody", "bohemian rhapsody"); got != 1.0 {
		t.Errorf("exact (case-folded) match = %v, want 1.0", got)
	}
}

func TestSimilarityContainment(t *testing.T) {
	got := Similarity("Bohemian Rhapsody", "Queen - Bohemian Rhapsody (Official Video)")
	if got != 0.9 {
		t.Errorf("containment = %v, want 0.9", got)
	}
}

func TestSimilarityJaccard(t *testing.T) {
	// {bohemian, rhapsody} vs {rhapsody, live}: 1 shared of 3 total.
	got := Similarity("bohemian rhapsody", "rhapsody live")
	want := 1.0 / 3.0
	if got != want {
		t.Errorf("jaccard = %v, want %v", got, want)
	}
}

func TestSimilarityDisjoint(t *testing.T) {
	if got := Similarity("bohemian rhapsody", "something else"); got != 0 {
		t.Errorf("disjoint titles = %v, want 0", got)
	}
	if got := Similarity("", ""); got != 1.0 {
		t.Errorf("two empty strings = %v, want 1.0", got)
	}
}

func TestSimilarityOrdering(t *testing.T) {
	query := "Hello Adele"
	titles := []string{
		"Adele - Hello",                 // jaccard
		"Hello Adele",                   // exact
		"Hello Adele lyrics full video", // contains
	}
	exact := Similarity(query, titles[1])
	contains := Similarity(query, titles[2])
	partial := Similarity(query, titles[0])
	if !(exact > contains && contains > partial) {
		t.Errorf("ordering broken: exact=%v contains=%v partial=%v", exact, contains, partial)
	}
}
