package model

import (
	"time"

	"github.com/google/uuid"
)

// Entity is a stored row in the entity vector store. The pair
// (EntityType, EntityID) is unique; storing the same pair again fully
// replaces content, embedding, metadata and tags and bumps UpdatedAt.
type Entity struct {
	ID         uuid.UUID `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
}

// Key returns the unique (entity_type, entity_id) key as a single string,
// used for result de-duplication.
func (e *Entity) Key() string {
	return e.EntityType + ":" + e.EntityID
}

// ToMemoryItem converts a stored entity into the in-memory item shape used
// by the cache and context window. Content type and importance are read back
// from the metadata written on store, falling back to the item defaults.
func (e *Entity) ToMemoryItem() *MemoryItem {
	contentType := "text"
	if v, ok := e.Metadata["content_type"].(string); ok && v != "" {
		contentType = v
	}
	importance := 0.5
	if v, ok := e.Metadata["importance"].(float64); ok {
		importance = v
	}

	return &MemoryItem{
		ID:          e.ID,
		EntityID:    e.EntityID,
		Content:     e.Content,
		ContentType: contentType,
		Category:    e.EntityType,
		Tags:        e.Tags,
		Importance:  importance,
		Embedding:   e.Embedding,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt,
	}
}
