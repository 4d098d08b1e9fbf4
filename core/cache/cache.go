// Package cache holds the process-local memory cache and the bounded
// context window of recently touched items. Neither structure is persisted;
// both are rebuilt by re-querying the store after a restart.
//
// The cache is intended for a single logical owner (one agent instance per
// engine instance) and is not synchronized. Callers sharing an engine across
// goroutines must serialize access externally.
package cache

import (
	"github.com/google/uuid"

	"github.com/engramdb/engram/model"
)

// DefaultWindowCapacity bounds the context window when no capacity is given.
const DefaultWindowCapacity = 200

// Cache maps durable identities to their latest known memory items and keeps
// a recency-ordered context window of bounded capacity. The identity map is
// process-lifetime-scoped; only the window is bounded.
type Cache struct {
	items    map[uuid.UUID]*model.MemoryItem
	window   []*model.MemoryItem
	capacity int
}

// New creates a cache with the given context window capacity.
// Non-positive capacities fall back to DefaultWindowCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	return &Cache{
		items:    make(map[uuid.UUID]*model.MemoryItem),
		window:   make([]*model.MemoryItem, 0, capacity),
		capacity: capacity,
	}
}

// Put stores or refreshes the cache entry for the item's identity and moves
// the item to the most-recent end of the context window. Items without an
// identity are ignored; only persisted items are cacheable.
func (c *Cache) Put(item *model.MemoryItem) {
	if item == nil || !item.Persisted() {
		return
	}

	c.items[item.ID] = item
	c.updateContextWindow(item)
}

// updateContextWindow applies the move-to-end recency discipline: an existing
// occurrence of the identity is removed first, the item is appended at the
// most-recent end, and the least-recent entries are evicted down to capacity.
func (c *Cache) updateContextWindow(item *model.MemoryItem) {
	for i, existing := range c.window {
		if existing.ID == item.ID {
			c.window = append(c.window[:i], c.window[i+1:]...)
			break
		}
	}

	c.window = append(c.window, item)

	for len(c.window) > c.capacity {
		c.window = c.window[1:]
	}
}

// Get returns the cached item for an identity, or nil.
func (c *Cache) Get(id uuid.UUID) *model.MemoryItem {
	return c.items[id]
}

// Match scans the cache for items matching the category and carrying ALL of
// the given tags, up to limit. This is deliberately stricter than the
// store's any-overlap tag filter: a cache hit is a cheap local prefilter,
// not a ranked search. An empty category matches every category.
func (c *Cache) Match(category string, tags []string, limit int) []*model.MemoryItem {
	var matches []*model.MemoryItem
	for _, item := range c.items {
		if category != "" && item.Category != category {
			continue
		}
		if !item.HasAllTags(tags) {
			continue
		}
		matches = append(matches, item)
		if limit > 0 && len(matches) >= limit {
			break
		}
	}
	return matches
}

// Remove drops the identity from the cache and scans the whole context
// window, dropping every occurrence.
func (c *Cache) Remove(id uuid.UUID) {
	delete(c.items, id)

	filtered := c.window[:0]
	for _, item := range c.window {
		if item.ID != id {
			filtered = append(filtered, item)
		}
	}
	c.window = filtered
}

// Window returns a copy of the context window, least-recent first.
func (c *Cache) Window() []*model.MemoryItem {
	window := make([]*model.MemoryItem, len(c.window))
	copy(window, c.window)
	return window
}

// Len returns the number of cached identities.
func (c *Cache) Len() int {
	return len(c.items)
}

// Capacity returns the context window bound.
func (c *Cache) Capacity() int {
	return c.capacity
}
