// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package search resolves an observed track to a YouTube video. One text
// search fans out into two batched detail-fetch phases; the duration anchor
// decides acceptance, and every fetched video lands in the search cache.
package search

import "strings"

// Similarity scores a result title against the search query. Exact match
// scores 1.0, a title containing the whole query scores 0.9, anything else
// falls back to Jaccard overlap of the word sets. Comparison is
// case-insensitive.
func Similarity(query, title string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(strings.TrimSpace(title))

	if q == t {
		return 1.0
	}
	if q != "" && strings.Contains(t, q) {
		return 0.9
	}
	return jaccard(q, t)
}

// jaccard computes |A∩B| / |A∪B| over whitespace-split word sets.
func jaccard(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	intersection := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			intersection++
		}
	}
	union := len(wa) + len(wb) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
