// Replay - Playback History and Statistics Engine
// Copyright 2026 Replay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/replaysrv/replay

// Package cache provides the duration cache used by the metadata resolver.
package cache

import (
	"sync"
	"time"
)

// entry is a node in the LRU list holding one resolved track duration.
type entry struct {
	key       string
	seconds   float64
	prev      *entry
	next      *entry
	expiresAt time.Time
}

// DurationCache is a thread-safe LRU cache with TTL, mapping filenames to
// resolved track lengths in seconds. O(1) Get, Add and eviction via a
// doubly-linked list plus hashmap.
//
// TTL matters here: track files can be re-uploaded with different lengths,
// so resolutions must eventually be re-checked against the metadata service.
type DurationCache struct {
	mu sync.RWMutex

	capacity int
	ttl      time.Duration

	items map[string]*entry

	// head.next is most recently used, tail.prev least recently used.
	head *entry
	tail *entry

	hits   int64
	misses int64
}

// NewDurationCache creates a cache with the given capacity and TTL.
func NewDurationCache(capacity int, ttl time.Duration) *DurationCache {
	if capacity <= 0 {
		capacity = 4096
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	c := &DurationCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry, capacity),
		head:     &entry{},
		tail:     &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the cached duration for filename, if present and not expired.
// Found entries become most recently used.
func (c *DurationCache) Get(filename string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[filename]
	if !ok {
		c.misses++
		return 0, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeEntry(e)
		c.misses++
		return 0, false
	}

	c.moveToFront(e)
	c.hits++
	return e.seconds, true
}

// Add inserts or refreshes a duration. At capacity, the least recently used
// entry is evicted.
func (c *DurationCache) Add(filename string, seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if e, ok := c.items[filename]; ok {
		e.seconds = seconds
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: filename, seconds: seconds, expiresAt: expiresAt}
	c.addToFront(e)
	c.items[filename] = e

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Remove drops a filename from the cache, reporting whether it was present.
func (c *DurationCache) Remove(filename string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[filename]; ok {
		c.removeEntry(e)
		return true
	}
	return false
}

// Len returns the current number of entries.
func (c *DurationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns hit/miss counters and the current size.
func (c *DurationCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.items)
}

// Internal methods, called with the lock held.

func (c *DurationCache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *DurationCache) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *DurationCache) removeEntry(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}

func (c *DurationCache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
