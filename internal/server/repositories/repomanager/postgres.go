// Package repomanager selects the directory backend and applies its schema
// migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/credengine/internal/server/migrations"
	"github.com/dmitrijs2005/credengine/internal/server/repositories/directory"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends the PostgreSQL-backed directory and
// exposes a schema migration hook.
type PostgresRepositoryManager struct {
	db *sql.DB
}

// Directory returns the directory repository wrapped in the single
// directory lock.
func (m *PostgresRepositoryManager) Directory() directory.Repository {
	return directory.NewSerialized(directory.NewPostgresRepository(m.db))
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{db: db}, nil
}

// MemoryRepositoryManager serves an in-process directory. Used when no
// database DSN is configured.
type MemoryRepositoryManager struct {
	dir *directory.Serialized
}

func NewMemoryRepositoryManager(repo *directory.MemoryRepository) RepositoryManager {
	return &MemoryRepositoryManager{dir: directory.NewSerialized(repo)}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Directory() directory.Repository { return m.dir }
