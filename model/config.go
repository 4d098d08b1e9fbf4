package model

// SearchConfig configures a semantic memory search.
type SearchConfig struct {
	// Vector search parameters
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"` // minimum similarity, exclusive

	// Filters
	EntityTypes    []string `json:"entity_types,omitempty"`    // allow-list, OR
	Tags           []string `json:"tags,omitempty"`            // match on any overlap, OR
	MetadataFilter Metadata `json:"metadata_filter,omitempty"` // exact string-form equality, AND

	// Relationship expansion
	ExpandRelationships bool `json:"expand_relationships"`

	// Result shaping
	IncludeContent bool `json:"include_content"`
}

// DefaultSearchConfig returns a sensible default configuration.
func DefaultSearchConfig() *SearchConfig {
	return &SearchConfig{
		Limit:          10,
		Threshold:      0.7,
		IncludeContent: true,
	}
}
