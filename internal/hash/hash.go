// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package hash computes the deterministic content hash used to recognize a
// track across playbacks. Two observations of the same (artist, title,
// duration) triple hash identically regardless of casing, punctuation, or
// platform noise words in the title.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

// noiseWords are stripped from titles and artists before hashing. These are
// platform decorations, not content.
var noiseWords = map[string]struct{}{
	"official": {},
	"video":    {},
	"audio":    {},
	"hd":       {},
	"hq":       {},
	"lyrics":   {},
	"music":    {},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)
var whitespace = regexp.MustCompile(`\s+`)

// Normalize lowercases, strips non-alphanumeric characters (keeping spaces),
// collapses whitespace, and removes noise words. Normalize is idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnum.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if _, noise := noiseWords[w]; !noise {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Content returns the SHA-256 hex content hash over the normalized
// (artist, title, duration) triple.
//
// A nil duration is encoded as "-1" to distinguish "unknown" from a
// zero-length track. The artist, when present, is prepended with a "|"
// separator so that ("a|b", "") and ("a", "b") cannot collide.
func Content(title string, duration *int, artist string) string {
	dur := "-1"
	if duration != nil {
		dur = strconv.Itoa(*duration)
	}

	content := Normalize(title) + "|" + dur
	if artist != "" {
		content = Normalize(artist) + "|" + content
	}

	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
