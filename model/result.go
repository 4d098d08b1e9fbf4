package model

// MatchType distinguishes entities surfaced by similarity from entities
// pulled in via relationship expansion.
type MatchType string

const (
	MatchTypeDirect  MatchType = "direct"
	MatchTypeRelated MatchType = "related"
)

// SearchResult is one entry of a ranked search result set. Direct matches
// come first in similarity-descending order; related matches follow in the
// order their source entity was processed, with the connecting relationship
// attached.
type SearchResult struct {
	Entity     *Entity   `json:"entity"`
	Similarity float64   `json:"similarity,omitempty"`
	MatchType  MatchType `json:"match_type"`
	// Set on related matches only
	RelationshipType     string    `json:"relationship_type,omitempty"`
	Direction            Direction `json:"direction,omitempty"`
	RelationshipMetadata Metadata  `json:"relationship_metadata,omitempty"`
}
