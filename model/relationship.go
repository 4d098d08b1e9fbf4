package model

import (
	"time"

	"github.com/google/uuid"
)

// Direction indicates how a related entity is connected to the queried one.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing" // queried entity is the source
	DirectionIncoming Direction = "incoming" // queried entity is the target
)

// Relationship is a typed directed edge between two entities. Uniqueness is
// the full 5-tuple (source type/id, target type/id, relationship type);
// creating the same edge again replaces the metadata.
//
// Edges have no lifecycle tied to their endpoints. Deleting an entity leaves
// its edges in place; joined queries then surface them without content.
type Relationship struct {
	ID               uuid.UUID `json:"id"`
	SourceType       string    `json:"source_type"`
	SourceID         string    `json:"source_id"`
	TargetType       string    `json:"target_type"`
	TargetID         string    `json:"target_id"`
	RelationshipType string    `json:"relationship_type"`
	Metadata         Metadata  `json:"metadata,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// RelatedEntity is one edge endpoint as seen from a queried entity, with the
// related entity's content left-joined in. Entity is nil for a dangling edge
// whose endpoint no longer exists.
type RelatedEntity struct {
	Relationship *Relationship `json:"relationship"`
	Direction    Direction     `json:"direction"`
	EntityType   string        `json:"entity_type"` // the other endpoint's type
	EntityID     string        `json:"entity_id"`   // the other endpoint's id
	Entity       *Entity       `json:"entity,omitempty"`
}

// RelatedQuery configures a related-entity lookup.
type RelatedQuery struct {
	RelationshipTypes []string
	TargetEntityTypes []string // filter on the other endpoint's entity type
	AsSource          bool
	AsTarget          bool
	Limit             int
}

// DefaultRelatedQuery queries both directions with a limit of 10.
func DefaultRelatedQuery() RelatedQuery {
	return RelatedQuery{
		AsSource: true,
		AsTarget: true,
		Limit:    10,
	}
}
