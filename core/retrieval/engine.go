package retrieval

import (
	"context"

	"github.com/engramdb/engram/model"
)

// relatedFanOut caps how many related entities are fetched per direct match
// during relationship expansion.
const relatedFanOut = 5

// EntitiesStore is the slice of the entity store the engine needs.
type EntitiesStore interface {
	SearchEntitiesBySimilarity(ctx context.Context, embedding []float32, config *model.SearchConfig) ([]*model.Entity, error)
}

// RelationshipsStore is the slice of the relationship graph the engine needs.
type RelationshipsStore interface {
	SelectRelatedEntities(ctx context.Context, entityType string, entityID string, query model.RelatedQuery) ([]*model.RelatedEntity, error)
}

// Engine turns a query embedding into a ranked, optionally graph-expanded
// result set. Direct similarity matches come first in similarity-descending
// order; related entities are appended afterwards in the order their source
// entity was processed, with no cross-ranking between the two groups.
type Engine struct {
	entities      EntitiesStore
	relationships RelationshipsStore
}

// NewEngine creates a new retrieval engine
func NewEngine(entities EntitiesStore, relationships RelationshipsStore) *Engine {
	return &Engine{
		entities:      entities,
		relationships: relationships,
	}
}

// Search performs similarity search with the config's filters and, when
// requested, expands each direct match through the relationship graph.
// A (entity_type, entity_id) pair never appears twice in the combined
// result list; expansion stops once the total reaches twice the limit.
func (e *Engine) Search(ctx context.Context, embedding []float32, config *model.SearchConfig) ([]*model.SearchResult, error) {
	if config == nil {
		config = model.DefaultSearchConfig()
	}

	directMatches, err := e.entities.SearchEntitiesBySimilarity(ctx, embedding, config)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(directMatches))
	results := make([]*model.SearchResult, 0, len(directMatches))
	for _, entity := range directMatches {
		seen[entity.Key()] = true
		results = append(results, &model.SearchResult{
			Entity:     entity,
			Similarity: entity.Similarity,
			MatchType:  model.MatchTypeDirect,
		})
	}

	if config.ExpandRelationships {
		results, err = e.expand(ctx, results, directMatches, seen, config)
		if err != nil {
			return nil, err
		}
	}

	if !config.IncludeContent {
		for _, result := range results {
			if result.Entity != nil {
				result.Entity.Content = ""
			}
		}
	}

	return results, nil
}

// expand walks the direct matches in order, pulling in up to relatedFanOut
// related entities each, skipping entities already in the result set.
func (e *Engine) expand(
	ctx context.Context,
	results []*model.SearchResult,
	directMatches []*model.Entity,
	seen map[string]bool,
	config *model.SearchConfig,
) ([]*model.SearchResult, error) {
	maxResults := 2 * config.Limit

	for _, source := range directMatches {
		if len(results) >= maxResults {
			break
		}

		related, err := e.relationships.SelectRelatedEntities(ctx, source.EntityType, source.EntityID, model.RelatedQuery{
			AsSource: true,
			AsTarget: true,
			Limit:    relatedFanOut,
		})
		if err != nil {
			return nil, err
		}

		for _, rel := range related {
			if len(results) >= maxResults {
				break
			}

			key := rel.EntityType + ":" + rel.EntityID
			if seen[key] {
				continue
			}
			seen[key] = true

			entity := rel.Entity
			if entity == nil {
				// Dangling edge: the endpoint entity no longer exists, so
				// only its key survives in the result.
				entity = &model.Entity{
					EntityType: rel.EntityType,
					EntityID:   rel.EntityID,
				}
			}

			results = append(results, &model.SearchResult{
				Entity:               entity,
				MatchType:            model.MatchTypeRelated,
				RelationshipType:     rel.Relationship.RelationshipType,
				Direction:            rel.Direction,
				RelationshipMetadata: rel.Relationship.Metadata,
			})
		}
	}

	return results, nil
}
