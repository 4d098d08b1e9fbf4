package cache

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramdb/engram/model"
)

func persistedItem(category string, tags ...string) *model.MemoryItem {
	item := model.NewMemoryItem(fmt.Sprintf("content %s", uuid.NewString()))
	item.ID = uuid.New()
	item.Category = category
	item.Tags = tags
	return item
}

func TestCachePut(t *testing.T) {
	t.Run("Put caches persisted items", func(t *testing.T) {
		c := New(10)
		item := persistedItem("note")

		c.Put(item)

		assert.Equal(t, item, c.Get(item.ID))
		assert.Equal(t, 1, c.Len())
	})

	t.Run("Put ignores transient items", func(t *testing.T) {
		c := New(10)

		c.Put(model.NewMemoryItem("not persisted"))
		c.Put(nil)

		assert.Equal(t, 0, c.Len())
		assert.Empty(t, c.Window())
	})

	t.Run("Put refreshes an existing identity", func(t *testing.T) {
		c := New(10)
		item := persistedItem("note")
		c.Put(item)

		updated := *item
		updated.Content = "newer content"
		c.Put(&updated)

		assert.Equal(t, "newer content", c.Get(item.ID).Content)
		assert.Len(t, c.Window(), 1, "Expected no duplicate window entry for the same identity")
	})
}

func TestContextWindowBound(t *testing.T) {
	t.Run("Window holds the N most recent items in recency order", func(t *testing.T) {
		const capacity = 5
		const extra = 3
		c := New(capacity)

		var items []*model.MemoryItem
		for i := 0; i < capacity+extra; i++ {
			item := persistedItem("note")
			items = append(items, item)
			c.Put(item)
		}

		window := c.Window()
		require.Len(t, window, capacity, "Expected window to hold exactly its capacity")

		for i, item := range window {
			assert.Equal(t, items[extra+i].ID, item.ID, "Expected the %d most recent items in insertion order", capacity)
		}
	})

	t.Run("Touching an item moves it to the most-recent end", func(t *testing.T) {
		c := New(3)
		first := persistedItem("note")
		second := persistedItem("note")
		third := persistedItem("note")

		c.Put(first)
		c.Put(second)
		c.Put(third)
		c.Put(first)

		window := c.Window()
		require.Len(t, window, 3)
		assert.Equal(t, second.ID, window[0].ID)
		assert.Equal(t, third.ID, window[1].ID)
		assert.Equal(t, first.ID, window[2].ID, "Expected re-touched item at the most-recent end")
	})

	t.Run("Eviction drops the least recent item", func(t *testing.T) {
		c := New(2)
		first := persistedItem("note")
		second := persistedItem("note")
		third := persistedItem("note")

		c.Put(first)
		c.Put(second)
		c.Put(third)

		window := c.Window()
		require.Len(t, window, 2)
		assert.Equal(t, second.ID, window[0].ID)
		assert.Equal(t, third.ID, window[1].ID)
	})

	t.Run("Non-positive capacity falls back to the default", func(t *testing.T) {
		c := New(0)

		assert.Equal(t, DefaultWindowCapacity, c.Capacity())
	})
}

func TestCacheMatch(t *testing.T) {
	t.Run("Match requires all given tags", func(t *testing.T) {
		c := New(10)
		item := persistedItem("note", "a", "b")
		c.Put(item)

		assert.Len(t, c.Match("", []string{"a"}, 10), 1)
		assert.Len(t, c.Match("", []string{"a", "b"}, 10), 1)
		assert.Empty(t, c.Match("", []string{"a", "c"}, 10), "Expected AND-tag semantics in the cache prefilter")
	})

	t.Run("Match filters by category", func(t *testing.T) {
		c := New(10)
		c.Put(persistedItem("note", "a"))
		c.Put(persistedItem("task", "a"))

		assert.Len(t, c.Match("note", nil, 10), 1)
		assert.Len(t, c.Match("", nil, 10), 2, "Expected empty category to match all categories")
		assert.Empty(t, c.Match("project", nil, 10))
	})

	t.Run("Match respects the limit", func(t *testing.T) {
		c := New(10)
		for i := 0; i < 5; i++ {
			c.Put(persistedItem("note"))
		}

		assert.Len(t, c.Match("note", nil, 3), 3)
	})
}

func TestCacheRemove(t *testing.T) {
	t.Run("Remove drops the identity from cache and window", func(t *testing.T) {
		c := New(10)
		keep := persistedItem("note")
		drop := persistedItem("note")
		c.Put(keep)
		c.Put(drop)

		c.Remove(drop.ID)

		assert.Nil(t, c.Get(drop.ID))
		window := c.Window()
		require.Len(t, window, 1)
		assert.Equal(t, keep.ID, window[0].ID)
	})

	t.Run("Remove of an unknown identity is a no-op", func(t *testing.T) {
		c := New(10)
		c.Put(persistedItem("note"))

		c.Remove(uuid.New())

		assert.Equal(t, 1, c.Len())
		assert.Len(t, c.Window(), 1)
	})
}
