// Package engram is a semantic memory engine for agents: a content
// addressable store of embedding vectors with metadata and tag filtering, a
// directed relationship graph between stored entities, a process-local
// recency cache with a bounded context window, and a deterministic chunking
// pipeline feeding it. Persistence and nearest-neighbor search are delegated
// to Postgres with the pgvector extension.
package engram

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/engramdb/engram/core/cache"
	"github.com/engramdb/engram/core/pipeline"
	"github.com/engramdb/engram/core/retrieval"
	"github.com/engramdb/engram/database"
	"github.com/engramdb/engram/helper"
	"github.com/engramdb/engram/model"
	loadSql "github.com/engramdb/engram/sql"
)

// Engine provides a unified interface to the memory subsystems
type Engine struct {
	DB            *helper.Database
	Entities      database.EntitiesDBHandlerFunctions
	Relationships database.RelationshipsDBHandlerFunctions
	Pipeline      *pipeline.Pipeline // Optional chunking/embedding pipeline
	Retrieval     *retrieval.Engine  // Search orchestrator
	Cache         *cache.Cache       // Process-local cache and context window
	// Logging
	log *slog.Logger
}

// NewEngine creates a new Engine with all handlers initialized.
// embeddingDim fixes the vector dimension for the whole store;
// windowCapacity bounds the context window.
func NewEngine(config *helper.DatabaseConfiguration, embeddingDim int, windowCapacity int) (*Engine, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("engram", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	entities, err := database.NewEntitiesDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	relationships, err := database.NewRelationshipsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create relationships handler", err)
	}

	return &Engine{
		DB:            db,
		Entities:      entities,
		Relationships: relationships,
		Retrieval:     retrieval.NewEngine(entities, relationships),
		Cache:         cache.New(windowCapacity),
		log:           logger,
	}, nil
}

// Close closes the database connection
func (e *Engine) Close() error {
	if e.DB != nil {
		return e.DB.Close()
	}
	return nil
}

// SetPipeline sets the chunking/embedding pipeline
func (e *Engine) SetPipeline(p *pipeline.Pipeline) {
	e.Pipeline = p
}

// UseDefaultPipeline sets up the fixed-width chunking and local embedding
// pipeline. This uses FixedChunker with the given chunk size and
// DefaultEmbedder with the all-MiniLM-L6-v2 model (384 dimensions).
func (e *Engine) UseDefaultPipeline(chunkSize int) error {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	e.Pipeline = pipeline.NewPipeline(pipeline.FixedChunker(chunkSize), embedder)
	return nil
}

// StoreEntity upserts an entity keyed by (entityType, entityID), replacing
// content, embedding, metadata and tags if the key already exists, and
// returns the durable identity. The cache and context window are refreshed
// with the stored state. Concurrent stores on the same key are
// last-write-wins; there is no version check.
func (e *Engine) StoreEntity(
	ctx context.Context,
	entityType string,
	entityID string,
	content string,
	embedding []float32,
	metadata model.Metadata,
	tags []string,
) (uuid.UUID, error) {
	entity := &model.Entity{
		EntityType: entityType,
		EntityID:   entityID,
		Content:    content,
		Embedding:  embedding,
		Metadata:   metadata,
		Tags:       tags,
	}

	if err := e.Entities.UpsertEntity(ctx, entity); err != nil {
		return uuid.Nil, err
	}

	e.Cache.Put(entity.ToMemoryItem())
	e.log.Info("Stored entity",
		slog.String("entity_type", entityType),
		slog.String("entity_id", entityID),
		slog.String("id", entity.ID.String()),
	)

	return entity.ID, nil
}

// Remember embeds and stores a single memory item, assigning its durable
// identity on first persist. The item's category maps to the entity type;
// items that were persisted before keep their store key, so remembering the
// same item again replaces the stored record.
func (e *Engine) Remember(ctx context.Context, item *model.MemoryItem) (uuid.UUID, error) {
	if item.Content == "" {
		return uuid.Nil, helper.NewValidationError("remember", fmt.Errorf("item content is empty"))
	}

	if len(item.Embedding) == 0 {
		if e.Pipeline == nil {
			return uuid.Nil, helper.NewEmbeddingError("remember", fmt.Errorf("no pipeline set, use SetPipeline() first"))
		}
		embedding, err := e.Pipeline.Embed(item.Content)
		if err != nil {
			return uuid.Nil, err
		}
		item.Embedding = embedding
	}

	if item.EntityID == "" {
		item.EntityID = uuid.NewString()
	}

	// The item keeps the merged map so its cache entry mirrors the durable
	// record.
	item.Metadata = item.Metadata.Merged(model.Metadata{
		"content_type": item.ContentType,
		"importance":   item.Importance,
	})

	id, err := e.StoreEntity(ctx, item.Category, item.EntityID, item.Content, item.Embedding, item.Metadata, item.Tags)
	if err != nil {
		return uuid.Nil, err
	}

	item.ID = id
	e.Cache.Put(item)

	return id, nil
}

// ChunkAndStore splits text into chunks via the pipeline, embeds each chunk
// and stores all of them as one atomic batch. Each resulting item carries
// chunk_index, total_chunks and original_length on top of the caller's
// metadata. On any failure the whole batch is rolled back and the caller can
// retry the full text.
func (e *Engine) ChunkAndStore(
	ctx context.Context,
	text string,
	category string,
	tags []string,
	metadata model.Metadata,
) ([]*model.MemoryItem, error) {
	if e.Pipeline == nil {
		return nil, helper.NewError("chunk and store", fmt.Errorf("no pipeline set, use SetPipeline() first"))
	}
	if text == "" {
		return nil, helper.NewValidationError("chunk and store", fmt.Errorf("text is empty"))
	}

	items, err := e.Pipeline.Process(text, category, tags, metadata)
	if err != nil {
		return nil, err
	}

	entities := make([]*model.Entity, len(items))
	for i, item := range items {
		item.EntityID = uuid.NewString()
		entities[i] = &model.Entity{
			EntityType: item.Category,
			EntityID:   item.EntityID,
			Content:    item.Content,
			Embedding:  item.Embedding,
			Metadata:   item.Metadata,
			Tags:       item.Tags,
		}
	}

	if err := e.Entities.UpsertEntities(ctx, entities); err != nil {
		return nil, err
	}

	for i, entity := range entities {
		items[i].ID = entity.ID
		e.Cache.Put(items[i])
	}

	e.log.Info("Chunked and stored text",
		slog.Int("num_chunks", len(items)),
		slog.String("category", category),
	)

	return items, nil
}

// Retrieve returns up to limit items matching the category and tags. The
// cache is scanned first with a strict all-tags match; any cache hit is
// returned without touching the store, trading freshness for a saved round
// trip. On a cache miss the store is queried with its broader any-tag
// overlap filter and the cache and context window are refreshed with the
// returned items.
func (e *Engine) Retrieve(ctx context.Context, query string, category string, tags []string, limit int) ([]*model.MemoryItem, error) {
	if cached := e.Cache.Match(category, tags, limit); len(cached) > 0 {
		// Served items count as touched and move to the recent end of the
		// context window.
		for _, item := range cached {
			e.Cache.Put(item)
		}
		e.log.Debug("Retrieve served from cache",
			slog.String("query", query),
			slog.Int("num_items", len(cached)),
		)
		return cached, nil
	}

	entities, err := e.Entities.SelectEntitiesByFilter(ctx, category, tags, limit)
	if err != nil {
		return nil, err
	}

	items := make([]*model.MemoryItem, len(entities))
	for i, entity := range entities {
		items[i] = entity.ToMemoryItem()
		e.Cache.Put(items[i])
	}

	return items, nil
}

// GetEntity retrieves an entity by its durable identity, refreshing the
// cache and context window on a hit. A missing identity returns (nil, nil).
func (e *Engine) GetEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	entity, err := e.Entities.SelectEntity(ctx, id)
	if err != nil || entity == nil {
		return nil, err
	}

	e.Cache.Put(entity.ToMemoryItem())
	return entity, nil
}

// GetEntityByKey retrieves an entity by its (entity_type, entity_id) key,
// refreshing the cache and context window on a hit.
func (e *Engine) GetEntityByKey(ctx context.Context, entityType string, entityID string) (*model.Entity, error) {
	entity, err := e.Entities.SelectEntityByKey(ctx, entityType, entityID)
	if err != nil || entity == nil {
		return nil, err
	}

	e.Cache.Put(entity.ToMemoryItem())
	return entity, nil
}

// Forget removes the durable record for an identity, then scrubs it from the
// cache and context window. Forgetting an unknown identity returns
// (false, nil).
func (e *Engine) Forget(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted, err := e.Entities.DeleteEntity(ctx, id)
	if err != nil {
		return false, err
	}

	e.Cache.Remove(id)
	return deleted, nil
}

// CreateRelationship upserts a directed edge between two entities, keyed by
// the full 5-tuple; creating the same edge again replaces its metadata.
// Returns the edge's identity.
func (e *Engine) CreateRelationship(
	ctx context.Context,
	sourceType string,
	sourceID string,
	targetType string,
	targetID string,
	relationshipType string,
	metadata model.Metadata,
) (uuid.UUID, error) {
	relationship := &model.Relationship{
		SourceType:       sourceType,
		SourceID:         sourceID,
		TargetType:       targetType,
		TargetID:         targetID,
		RelationshipType: relationshipType,
		Metadata:         metadata,
	}

	if err := e.Relationships.UpsertRelationship(ctx, relationship); err != nil {
		return uuid.Nil, err
	}

	return relationship.ID, nil
}

// GetRelatedEntities returns the edges touching the given entity in the
// requested directions, annotated with direction and the related entity's
// content where it still exists.
func (e *Engine) GetRelatedEntities(ctx context.Context, entityType string, entityID string, query model.RelatedQuery) ([]*model.RelatedEntity, error) {
	return e.Relationships.SelectRelatedEntities(ctx, entityType, entityID, query)
}

// SearchMemory embeds the query text and performs a ranked similarity
// search, optionally expanded through the relationship graph. A failing
// embedding provider is fatal to the call.
func (e *Engine) SearchMemory(ctx context.Context, query string, config *model.SearchConfig) ([]*model.SearchResult, error) {
	if e.Pipeline == nil {
		return nil, helper.NewEmbeddingError("search memory", fmt.Errorf("no pipeline set, use SetPipeline() first"))
	}

	embedding, err := e.Pipeline.Embed(query)
	if err != nil {
		return nil, err
	}

	return e.SearchMemoryByEmbedding(ctx, embedding, config)
}

// SearchMemoryByEmbedding is SearchMemory for callers that already hold a
// query embedding.
func (e *Engine) SearchMemoryByEmbedding(ctx context.Context, embedding []float32, config *model.SearchConfig) ([]*model.SearchResult, error) {
	return e.Retrieval.Search(ctx, embedding, config)
}

// ContextWindow returns a snapshot of the recently touched items,
// least-recent first.
func (e *Engine) ContextWindow() []*model.MemoryItem {
	return e.Cache.Window()
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (e *Engine) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return e.Entities.ChangeIndexType(ctx, indexType, params)
}
