package helper

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the Postgres connection parameters,
// parsed from the environment.
type DatabaseConfiguration struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"engram"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// NewDatabaseConfiguration loads the database configuration from the
// environment. A .env file in the working directory is loaded first if
// present.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	_ = godotenv.Load()

	config, err := env.ParseAs[DatabaseConfiguration]()
	if err != nil {
		return nil, NewError("parse database configuration", err)
	}

	return &config, nil
}

// ConnectionString builds the lib/pq DSN for the configuration.
func (c *DatabaseConfiguration) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Database wraps the sql.DB instance together with the logger used by all
// database handlers.
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens and pings a Postgres connection. It panics if the
// database is not reachable, as nothing can run without it.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	instance, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		log.Panicf("error opening database connection: %v", err)
	}

	instance.SetMaxOpenConns(25)
	instance.SetMaxIdleConns(5)
	instance.SetConnMaxLifetime(5 * time.Minute)

	if err := instance.Ping(); err != nil {
		log.Panicf("error pinging database: %v", err)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host))

	return &Database{
		Name:     name,
		Instance: instance,
		Logger:   logger,
	}
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	if d.Instance != nil {
		return d.Instance.Close()
	}
	return nil
}
