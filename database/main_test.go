package database

import (
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/engramdb/engram/helper"
	loadSql "github.com/engramdb/engram/sql"
)

// testEmbeddingDim keeps test vectors small enough to reason about.
const testEmbeddingDim = 3

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
}

func initDB(t *testing.T) *helper.Database {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	db := helper.NewTestDatabase(dbConfig)

	err = loadSql.Init(db.Instance)
	require.NoError(t, err)

	// Each test starts from empty tables.
	_, err = db.Instance.Exec(`DROP TABLE IF EXISTS relationships; DROP TABLE IF EXISTS entities;`)
	require.NoError(t, err)

	return db
}

func initHandlers(t *testing.T) (*EntitiesDBHandler, *RelationshipsDBHandler) {
	db := initDB(t)

	entities, err := NewEntitiesDBHandler(db, testEmbeddingDim, true)
	require.NoError(t, err)

	relationships, err := NewRelationshipsDBHandler(db, true)
	require.NoError(t, err)

	return entities, relationships
}
