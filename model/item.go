package model

import (
	"time"

	"github.com/google/uuid"
)

// MemoryItem is the in-memory representation of one remembered unit of
// content, prior to or independent of durable storage. An item with ID set
// corresponds to exactly one stored entity; items without ID are transient
// and are assigned one on first successful persist.
type MemoryItem struct {
	ID          uuid.UUID `json:"id,omitempty"`        // Durable identity, uuid.Nil until persisted
	EntityID    string    `json:"entity_id,omitempty"` // Store key within the category, set on persist
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags,omitempty"`
	Importance  float64   `json:"importance"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewMemoryItem creates a transient item with default content type,
// category and importance.
func NewMemoryItem(content string) *MemoryItem {
	return &MemoryItem{
		Content:     content,
		ContentType: "text",
		Category:    "general",
		Importance:  0.5,
		Metadata:    Metadata{},
		CreatedAt:   time.Now(),
	}
}

// Persisted reports whether the item has a durable identity.
func (m *MemoryItem) Persisted() bool {
	return m.ID != uuid.Nil
}

// HasAllTags reports whether every given tag is present on the item.
// This is the strict match used by the cache prefilter, deliberately
// narrower than the store's any-overlap tag filter.
func (m *MemoryItem) HasAllTags(tags []string) bool {
	for _, tag := range tags {
		found := false
		for _, own := range m.Tags {
			if own == tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
