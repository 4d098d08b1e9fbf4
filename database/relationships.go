package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/engramdb/engram/helper"
	"github.com/engramdb/engram/model"
	loadSql "github.com/engramdb/engram/sql"
)

// RelationshipsDBHandlerFunctions defines the interface for relationship
// graph operations.
type RelationshipsDBHandlerFunctions interface {
	UpsertRelationship(ctx context.Context, relationship *model.Relationship) error
	SelectRelationship(ctx context.Context, id uuid.UUID) (*model.Relationship, error)
	SelectRelatedEntities(ctx context.Context, entityType string, entityID string, query model.RelatedQuery) ([]*model.RelatedEntity, error)
	DeleteRelationship(ctx context.Context, id uuid.UUID) (bool, error)
}

// RelationshipsDBHandler handles relationship-related database operations
type RelationshipsDBHandler struct {
	db *helper.Database
}

// NewRelationshipsDBHandler creates a new relationships database handler.
// It loads the relationship SQL functions and creates the table. If force is
// true, the SQL functions are reloaded even if they already exist.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
	}

	err := loadSql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	err = relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// CreateTable creates the 'relationships' table in the database.
// If the table already exists, it does not create it again.
// It also creates the endpoint and type indexes.
func (h *RelationshipsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relationships();`)
	if err != nil {
		log.Panicf("error initializing relationships table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relationships")

	return nil
}

// UpsertRelationship stores a directed edge, replacing the metadata if the
// 5-tuple (source type/id, target type/id, relationship type) already
// exists. The relationship's ID and creation time are populated from the
// database.
func (h *RelationshipsDBHandler) UpsertRelationship(ctx context.Context, relationship *model.Relationship) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_relationship($1, $2, $3, $4, $5, $6)`,
		relationship.SourceType,
		relationship.SourceID,
		relationship.TargetType,
		relationship.TargetID,
		relationship.RelationshipType,
		relationship.Metadata,
	)

	err := row.Scan(
		&relationship.ID,
		&relationship.SourceType,
		&relationship.SourceID,
		&relationship.TargetType,
		&relationship.TargetID,
		&relationship.RelationshipType,
		&relationship.Metadata,
		&relationship.CreatedAt,
	)
	if err != nil {
		return helper.NewStoreError("scan", err)
	}

	return nil
}

// SelectRelationship retrieves a relationship by ID.
// A missing row returns (nil, nil).
func (h *RelationshipsDBHandler) SelectRelationship(ctx context.Context, id uuid.UUID) (*model.Relationship, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_relationship($1)`,
		id,
	)

	relationship := &model.Relationship{}
	err := row.Scan(
		&relationship.ID,
		&relationship.SourceType,
		&relationship.SourceID,
		&relationship.TargetType,
		&relationship.TargetID,
		&relationship.RelationshipType,
		&relationship.Metadata,
		&relationship.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewStoreError("scan", err)
	}

	return relationship, nil
}

// SelectRelatedEntities returns the edges touching the given entity in the
// requested directions, each annotated with its direction and the related
// entity's content when that entity still exists (left-join: dangling edges
// are kept with a nil Entity). When both directions are requested, outgoing
// results come first and the concatenation is capped at query.Limit. If
// neither direction is requested the result is empty.
func (h *RelationshipsDBHandler) SelectRelatedEntities(ctx context.Context, entityType string, entityID string, query model.RelatedQuery) ([]*model.RelatedEntity, error) {
	if !query.AsSource && !query.AsTarget {
		return nil, nil
	}

	var related []*model.RelatedEntity

	if query.AsSource {
		outgoing, err := h.selectRelatedDirectional(ctx, `select_related_as_source`, entityType, entityID, query, model.DirectionOutgoing)
		if err != nil {
			return nil, err
		}
		related = append(related, outgoing...)
	}

	if query.AsTarget {
		incoming, err := h.selectRelatedDirectional(ctx, `select_related_as_target`, entityType, entityID, query, model.DirectionIncoming)
		if err != nil {
			return nil, err
		}
		related = append(related, incoming...)
	}

	if query.Limit > 0 && len(related) > query.Limit {
		related = related[:query.Limit]
	}

	return related, nil
}

// DeleteRelationship removes a relationship by ID. Deleting a non-existent
// relationship returns (false, nil).
func (h *RelationshipsDBHandler) DeleteRelationship(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_relationship($1)`,
		id,
	).Scan(&deleted)
	if err != nil {
		return false, helper.NewStoreError("exec", err)
	}

	return deleted, nil
}

func (h *RelationshipsDBHandler) selectRelatedDirectional(
	ctx context.Context,
	function string,
	entityType string,
	entityID string,
	query model.RelatedQuery,
	direction model.Direction,
) ([]*model.RelatedEntity, error) {
	var relationshipTypesParam interface{}
	if len(query.RelationshipTypes) > 0 {
		relationshipTypesParam = pq.Array(query.RelationshipTypes)
	}
	var targetTypesParam interface{}
	if len(query.TargetEntityTypes) > 0 {
		targetTypesParam = pq.Array(query.TargetEntityTypes)
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT * FROM %s($1, $2, $3, $4, $5)`, function),
		entityType,
		entityID,
		relationshipTypesParam,
		targetTypesParam,
		query.Limit,
	)
	if err != nil {
		return nil, helper.NewStoreError("query", err)
	}
	defer rows.Close()

	var related []*model.RelatedEntity
	for rows.Next() {
		relationship := &model.Relationship{}

		var entityPK uuid.NullUUID
		var entityContent sql.NullString
		var entityMetadata model.Metadata
		var entityTags []string
		var entityCreatedAt, entityUpdatedAt sql.NullTime

		err := rows.Scan(
			&relationship.ID,
			&relationship.SourceType,
			&relationship.SourceID,
			&relationship.TargetType,
			&relationship.TargetID,
			&relationship.RelationshipType,
			&relationship.Metadata,
			&relationship.CreatedAt,
			&entityPK,
			&entityContent,
			&entityMetadata,
			pq.Array(&entityTags),
			&entityCreatedAt,
			&entityUpdatedAt,
		)
		if err != nil {
			return nil, helper.NewStoreError("scan", err)
		}

		otherType, otherID := relationship.TargetType, relationship.TargetID
		if direction == model.DirectionIncoming {
			otherType, otherID = relationship.SourceType, relationship.SourceID
		}

		result := &model.RelatedEntity{
			Relationship: relationship,
			Direction:    direction,
			EntityType:   otherType,
			EntityID:     otherID,
		}

		if entityPK.Valid {
			result.Entity = &model.Entity{
				ID:         entityPK.UUID,
				EntityType: otherType,
				EntityID:   otherID,
				Content:    entityContent.String,
				Metadata:   entityMetadata,
				Tags:       entityTags,
				CreatedAt:  entityCreatedAt.Time,
				UpdatedAt:  entityUpdatedAt.Time,
			}
		}

		related = append(related, result)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewStoreError("rows error", err)
	}

	return related, nil
}
