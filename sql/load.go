package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed relationships.sql
var relationshipsSQL string

// Function lists for verification
var EntitiesFunctions = []string{
	"init_entities",
	"upsert_entity",
	"upsert_entities",
	"select_entity",
	"select_entity_by_key",
	"select_entities_by_filter",
	"search_entities_by_similarity",
	"delete_entity",
}

var RelationshipsFunctions = []string{
	"init_relationships",
	"upsert_relationship",
	"select_relationship",
	"select_related_as_source",
	"select_related_as_target",
	"delete_relationship",
}

// Init initializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadEntitiesSql loads entity-related SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, EntitiesFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing entities functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(entitiesSQL)
	if err != nil {
		return fmt.Errorf("error executing entities SQL: %w", err)
	}

	exist, err := checkFunctions(db, EntitiesFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL entities functions loaded successfully")
	return nil
}

// LoadRelationshipsSql loads relationship-related SQL functions
func LoadRelationshipsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, RelationshipsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing relationships functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(relationshipsSQL)
	if err != nil {
		return fmt.Errorf("error executing relationships SQL: %w", err)
	}

	exist, err := checkFunctions(db, RelationshipsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL relationships functions loaded successfully")
	return nil
}

// checkFunctions reports whether all named SQL functions already exist
func checkFunctions(db *sql.DB, functions []string) (bool, error) {
	for _, function := range functions {
		var exists bool
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			function,
		).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("error checking function %s: %w", function, err)
		}
		if !exists {
			return false, nil
		}
	}
	return true, nil
}
