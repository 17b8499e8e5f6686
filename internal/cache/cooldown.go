// Phonographus - Home Assistant to YouTube Playback Tracker and Rater
// Copyright 2026 Phonographus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/phonographus/phonographus

// Package cache provides the in-memory play cooldown used by the playback
// poller to suppress duplicate play counts while a track keeps playing.
package cache

import (
	"sync"
	"time"
)

// cooldownEntry is a node in the doubly-linked recency list.
type cooldownEntry struct {
	hash      string
	playedAt  time.Time
	expiresAt time.Time
	prev      *cooldownEntry
	next      *cooldownEntry
}

// Cooldown tracks the last recorded play per content hash with a TTL. It is
// an LRU so memory stays bounded no matter how varied the playback history
// is: a hashmap for O(1) lookup plus a doubly-linked list for O(1) eviction.
//
// The cooldown is deliberately not persisted. After a restart the first
// observation of a recently played track can count one extra play inside its
// window; that cost is accepted for the simplicity of in-memory state.
//
// Thread-safe.
type Cooldown struct {
	mu sync.RWMutex

	capacity int
	ttl      time.Duration

	items map[string]*cooldownEntry

	// head.next is most recently touched, tail.prev the least.
	head *cooldownEntry
	tail *cooldownEntry
}

// NewCooldown creates a cooldown tracker. The TTL is the minimum interval
// between two recorded plays of the same content hash.
func NewCooldown(capacity int, ttl time.Duration) *Cooldown {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	c := &Cooldown{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*cooldownEntry, capacity),
		head:     &cooldownEntry{},
		tail:     &cooldownEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Active reports whether the content hash is inside its cooldown window.
// It does not modify recency order.
func (c *Cooldown) Active(hash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.items[hash]
	return exists && !time.Now().After(entry.expiresAt)
}

// Touch records a play for the content hash, starting (or restarting) its
// cooldown window.
func (c *Cooldown) Touch(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if entry, exists := c.items[hash]; exists {
		entry.playedAt = now
		entry.expiresAt = now.Add(c.ttl)
		c.moveToFront(entry)
		return
	}

	entry := &cooldownEntry{
		hash:      hash,
		playedAt:  now,
		expiresAt: now.Add(c.ttl),
	}
	c.addToFront(entry)
	c.items[hash] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// LastPlayed returns the recorded play time for the hash if it is still
// inside its cooldown window.
func (c *Cooldown) LastPlayed(hash string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.items[hash]
	if !exists || time.Now().After(entry.expiresAt) {
		return time.Time{}, false
	}
	return entry.playedAt, true
}

// Remove drops the hash from the tracker. Returns true if it was present.
func (c *Cooldown) Remove(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[hash]
	if !exists {
		return false
	}
	c.removeEntry(entry)
	return true
}

// Len returns the number of tracked hashes, expired entries included.
func (c *Cooldown) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// CleanupExpired removes entries past their window and returns the count.
func (c *Cooldown) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		if now.After(entry.expiresAt) {
			c.removeEntry(entry)
			removed++
		}
		entry = prev
	}
	return removed
}

// list management, lock held

func (c *Cooldown) addToFront(entry *cooldownEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *Cooldown) moveToFront(entry *cooldownEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *Cooldown) removeEntry(entry *cooldownEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.hash)
}

func (c *Cooldown) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
