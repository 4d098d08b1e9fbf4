package helper

import (
	"context"
	"log"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDatabaseName     = "engram_test"
	testDatabaseUser     = "postgres"
	testDatabasePassword = "postgres"
)

// MustStartPostgresContainer starts a throwaway Postgres container with the
// pgvector extension available. It returns the terminate function and the
// mapped host port. Intended to be called once from TestMain.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	dbContainer, err := postgres.Run(
		ctx,
		"pgvector/pgvector:pg17",
		postgres.WithDatabase(testDatabaseName),
		postgres.WithUsername(testDatabaseUser),
		postgres.WithPassword(testDatabasePassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, "", err
	}

	mappedPort, err := dbContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, "", err
	}

	return dbContainer.Terminate, mappedPort.Port(), nil
}

// SetTestDatabaseConfigEnvs points the database configuration envs at the
// test container for the duration of the test.
func SetTestDatabaseConfigEnvs(t *testing.T, port string) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", port)
	t.Setenv("DB_USER", testDatabaseUser)
	t.Setenv("DB_PASSWORD", testDatabasePassword)
	t.Setenv("DB_NAME", testDatabaseName)
	t.Setenv("DB_SSLMODE", "disable")
}

// NewTestDatabase connects to the test container with a quiet logger.
// It panics on connection failure like NewDatabase.
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db := NewDatabase("engram_test", config, logger)
	if err := db.Instance.Ping(); err != nil {
		log.Panicf("error pinging test database: %v", err)
	}

	return db
}
