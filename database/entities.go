package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/engramdb/engram/helper"
	"github.com/engramdb/engram/model"
	loadSql "github.com/engramdb/engram/sql"
)

// EntitiesDBHandlerFunctions defines the interface for entity store operations.
type EntitiesDBHandlerFunctions interface {
	UpsertEntity(ctx context.Context, entity *model.Entity) error
	UpsertEntities(ctx context.Context, entities []*model.Entity) error
	SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error)
	SelectEntityByKey(ctx context.Context, entityType string, entityID string) (*model.Entity, error)
	SelectEntitiesByFilter(ctx context.Context, entityType string, tags []string, limit int) ([]*model.Entity, error)
	SearchEntitiesBySimilarity(ctx context.Context, embedding []float32, config *model.SearchConfig) ([]*model.Entity, error)
	DeleteEntity(ctx context.Context, id uuid.UUID) (bool, error)
	ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error
	EmbeddingDim() int
}

// EntitiesDBHandler handles entity-related database operations. All rows
// share one fixed embedding dimension; inputs of any other length are
// rejected before touching the database.
type EntitiesDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewEntitiesDBHandler creates a new entities database handler.
// It loads the entity SQL functions and creates the table with the given
// embedding dimension. If force is true, the SQL functions are reloaded
// even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, embeddingDim int, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewValidationError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates the tag, metadata and vector indexes.
func (h *EntitiesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// EmbeddingDim returns the fixed embedding dimension of the store.
func (h *EntitiesDBHandler) EmbeddingDim() int {
	return h.embeddingDim
}

func (h *EntitiesDBHandler) validateEmbedding(embedding []float32) error {
	if len(embedding) != h.embeddingDim {
		return helper.NewValidationError(
			"embedding dimension validation",
			fmt.Errorf("expected embedding of dimension %d, got %d", h.embeddingDim, len(embedding)),
		)
	}
	return nil
}

// UpsertEntity stores an entity, replacing content, embedding, metadata and
// tags if the (entity_type, entity_id) key already exists. The entity's ID
// and timestamps are populated from the database. Concurrent upserts on the
// same key are last-write-wins; the statement is atomic so a cancelled call
// leaves no partial state.
func (h *EntitiesDBHandler) UpsertEntity(ctx context.Context, entity *model.Entity) error {
	if err := h.validateEmbedding(entity.Embedding); err != nil {
		return err
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_entity($1, $2, $3, $4, $5, $6)`,
		entity.EntityType,
		entity.EntityID,
		entity.Content,
		pgvector.NewVector(entity.Embedding),
		entity.Metadata,
		pq.Array(entity.Tags),
	)

	err := scanEntity(row, entity)
	if err != nil {
		return helper.NewStoreError("scan", err)
	}

	return nil
}

// batchEntity is the wire shape of one batch element for upsert_entities.
type batchEntity struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Content    string         `json:"content"`
	Embedding  []float32      `json:"embedding"`
	Metadata   model.Metadata `json:"metadata"`
	Tags       []string       `json:"tags"`
}

// UpsertEntities stores a batch of entities atomically in a single statement
// and round trip. Either every entity is durably stored or none is. Keys
// within one batch must be distinct.
func (h *EntitiesDBHandler) UpsertEntities(ctx context.Context, entities []*model.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	items := make([]batchEntity, len(entities))
	for i, entity := range entities {
		if err := h.validateEmbedding(entity.Embedding); err != nil {
			return err
		}
		items[i] = batchEntity{
			EntityType: entity.EntityType,
			EntityID:   entity.EntityID,
			Content:    entity.Content,
			Embedding:  entity.Embedding,
			Metadata:   entity.Metadata,
			Tags:       entity.Tags,
		}
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return helper.NewError("marshal batch", err)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM upsert_entities($1)`,
		payload,
	)
	if err != nil {
		return helper.NewStoreError("query", err)
	}
	defer rows.Close()

	// RETURNING order is not guaranteed, so stored rows are matched back to
	// the input entities by key.
	byKey := make(map[string]*model.Entity, len(entities))
	for _, entity := range entities {
		byKey[entity.Key()] = entity
	}

	stored := 0
	for rows.Next() {
		row := &model.Entity{}
		if err := scanEntity(rows, row); err != nil {
			return helper.NewStoreError("scan", err)
		}
		entity, ok := byKey[row.Key()]
		if !ok {
			return helper.NewStoreError("match batch row", fmt.Errorf("stored row %s has no batch entity", row.Key()))
		}
		*entity = *row
		stored++
	}

	if err := rows.Err(); err != nil {
		return helper.NewStoreError("rows error", err)
	}
	if stored != len(entities) {
		return helper.NewStoreError("row count", fmt.Errorf("expected %d stored rows, got %d", len(entities), stored))
	}

	return nil
}

// SelectEntity retrieves an entity by its durable identity.
// A missing row returns (nil, nil).
func (h *EntitiesDBHandler) SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_entity($1)`,
		id,
	)

	entity := &model.Entity{}
	err := scanEntity(row, entity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewStoreError("scan", err)
	}

	return entity, nil
}

// SelectEntityByKey retrieves an entity by its (entity_type, entity_id) key.
// A missing row returns (nil, nil).
func (h *EntitiesDBHandler) SelectEntityByKey(ctx context.Context, entityType string, entityID string) (*model.Entity, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_entity_by_key($1, $2)`,
		entityType,
		entityID,
	)

	entity := &model.Entity{}
	err := scanEntity(row, entity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewStoreError("scan", err)
	}

	return entity, nil
}

// SelectEntitiesByFilter retrieves entities by type and tag overlap, most
// recently updated first. An empty entityType matches all types; tags match
// if the entity carries at least one of them.
func (h *EntitiesDBHandler) SelectEntitiesByFilter(ctx context.Context, entityType string, tags []string, limit int) ([]*model.Entity, error) {
	var entityTypeParam interface{}
	if entityType != "" {
		entityTypeParam = entityType
	}
	var tagsParam interface{}
	if len(tags) > 0 {
		tagsParam = pq.Array(tags)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_entities_by_filter($1, $2, $3)`,
		entityTypeParam,
		tagsParam,
		limit,
	)
	if err != nil {
		return nil, helper.NewStoreError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		if err := scanEntity(rows, entity); err != nil {
			return nil, helper.NewStoreError("scan", err)
		}
		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewStoreError("rows error", err)
	}

	return entities, nil
}

// SearchEntitiesBySimilarity performs vector similarity search with the
// config's filters. Rows with similarity at or below the threshold are
// excluded; results are ordered by descending similarity and capped at the
// config's limit.
func (h *EntitiesDBHandler) SearchEntitiesBySimilarity(ctx context.Context, embedding []float32, config *model.SearchConfig) ([]*model.Entity, error) {
	if err := h.validateEmbedding(embedding); err != nil {
		return nil, err
	}

	var entityTypesParam interface{}
	if len(config.EntityTypes) > 0 {
		entityTypesParam = pq.Array(config.EntityTypes)
	}
	var tagsParam interface{}
	if len(config.Tags) > 0 {
		tagsParam = pq.Array(config.Tags)
	}
	var metadataParam interface{}
	if len(config.MetadataFilter) > 0 {
		metadataParam = config.MetadataFilter
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM search_entities_by_similarity($1, $2, $3, $4, $5, $6)`,
		pgvector.NewVector(embedding),
		entityTypesParam,
		tagsParam,
		metadataParam,
		config.Limit,
		config.Threshold,
	)
	if err != nil {
		return nil, helper.NewStoreError("query", err)
	}
	defer rows.Close()

	var results []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		var embeddingVector pgvector.Vector

		err := rows.Scan(
			&entity.ID,
			&entity.EntityType,
			&entity.EntityID,
			&entity.Content,
			&embeddingVector,
			&entity.Metadata,
			pq.Array(&entity.Tags),
			&entity.CreatedAt,
			&entity.UpdatedAt,
			&entity.Similarity,
		)
		if err != nil {
			return nil, helper.NewStoreError("scan", err)
		}

		entity.Embedding = embeddingVector.Slice()
		results = append(results, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewStoreError("rows error", err)
	}

	return results, nil
}

// DeleteEntity removes an entity by its durable identity. Deleting a
// non-existent entity returns (false, nil). Relationships referencing the
// entity are left in place.
func (h *EntitiesDBHandler) DeleteEntity(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_entity($1)`,
		id,
	).Scan(&deleted)
	if err != nil {
		return false, helper.NewStoreError("exec", err)
	}

	return deleted, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row scanner, entity *model.Entity) error {
	var embeddingVector pgvector.Vector

	err := row.Scan(
		&entity.ID,
		&entity.EntityType,
		&entity.EntityID,
		&entity.Content,
		&embeddingVector,
		&entity.Metadata,
		pq.Array(&entity.Tags),
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return err
	}

	entity.Embedding = embeddingVector.Slice()
	return nil
}
