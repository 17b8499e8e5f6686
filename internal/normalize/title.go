// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package normalize prepares noisy media-player titles for use as YouTube
// search queries, and parses the duration strings the platform returns.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxQueryLen bounds the search query sent to the platform.
const MaxQueryLen = 500

// longTitleThreshold triggers keyword extraction for very long titles.
const longTitleThreshold = 100

// disallowed matches everything outside word characters, whitespace,
// hyphens, and quotes. This removes emoji and decoration glyphs. Pipes,
// parentheses, and brackets survive because the segment and suffix steps
// below still need them.
var disallowed = regexp.MustCompile(`[^\w\s\-'"|()\[\]]`)

var spaces = regexp.MustCompile(`\s+`)

// trailingNoise matches a trailing parenthesized or bracketed suffix that is
// platform decoration rather than title content.
var trailingNoise = regexp.MustCompile(`(?i)\s*[(\[][^()\[\]]*\b(official|video|audio|lyric|lyrics|visualizer|visualiser|remaster|remastered|hd|hq|4k|mv|m/v)\b[^()\[\]]*[)\]]\s*$`)

// possessive matches "Artist's ..." name phrases in long titles.
var possessive = regexp.MustCompile(`\b[A-Z][\w.]*(?:\s+[A-Z][\w.]*){0,3}'s\b`)

// eventKeywords are phrases worth preserving when a long title is reduced.
var eventKeywords = []string{
	"super bowl",
	"halftime show",
	"concert",
	"live",
	"performance",
	"awards",
	"festival",
	"tour",
	"show",
}

// genericArtists are artist values that add no search signal.
var genericArtists = map[string]struct{}{
	"":        {},
	"youtube": {},
	"unknown": {},
}

// SearchQuery builds the query string actually sent to the platform's
// search endpoint from a raw media title and optional artist.
func SearchQuery(title, artist string) string {
	q := norm.NFC.String(title)
	q = truncateRunes(q, MaxQueryLen)
	q = disallowed.ReplaceAllString(q, " ")

	// Titles like "Song | Artist | Official Channel" carry the real title in
	// the first segment. A very short first segment usually means the split
	// cut mid-title, so keep two.
	if strings.Contains(q, "|") {
		segs := strings.Split(q, "|")
		first := strings.TrimSpace(segs[0])
		if len([]rune(first)) >= 10 || len(segs) < 2 {
			q = first
		} else {
			q = first + " " + strings.TrimSpace(segs[1])
		}
	}

	for {
		trimmed := trailingNoise.ReplaceAllString(q, "")
		if trimmed == q {
			break
		}
		q = trimmed
	}

	q = spaces.ReplaceAllString(strings.TrimSpace(q), " ")

	if len([]rune(q)) > longTitleThreshold {
		q = reduceLongTitle(q)
	}

	q = spaces.ReplaceAllString(strings.TrimSpace(q), " ")

	artist = strings.TrimSpace(artist)
	if _, generic := genericArtists[strings.ToLower(artist)]; !generic {
		if !strings.Contains(strings.ToLower(q), strings.ToLower(artist)) {
			q = strings.TrimSpace(q + " " + artist)
		}
	}

	return truncateRunes(q, MaxQueryLen)
}

// reduceLongTitle extracts the signal-bearing parts of an oversized title:
// possessive artist names and event phrases with two words of context on
// each side. Falls back to a word-boundary truncation when nothing matches.
func reduceLongTitle(title string) string {
	var parts []string

	for _, m := range possessive.FindAllString(title, -1) {
		if len([]rune(m)) < 30 {
			parts = append(parts, m)
		}
	}

	words := strings.Fields(title)
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}

	for _, kw := range eventKeywords {
		kwWords := strings.Fields(kw)
		for i := 0; i+len(kwWords) <= len(lower); i++ {
			if !matchAt(lower, i, kwWords) {
				continue
			}
			start := i - 2
			if start < 0 {
				start = 0
			}
			end := i + len(kwWords) + 2
			if end > len(words) {
				end = len(words)
			}
			parts = append(parts, strings.Join(words[start:end], " "))
		}
	}

	if len(parts) == 0 {
		return truncateWords(title, longTitleThreshold)
	}
	return strings.Join(parts, " ")
}

// matchAt reports whether kw occurs in words at offset i, ignoring trailing
// punctuation stripped by earlier steps.
func matchAt(words []string, i int, kw []string) bool {
	for j, k := range kw {
		if words[i+j] != k {
			return false
		}
	}
	return true
}

// truncateRunes truncates s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// truncateWords truncates s to at most n runes, cutting at a word boundary.
func truncateWords(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	cut := truncateRunes(s, n)
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
