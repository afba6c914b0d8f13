// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"casesync/internal/dbx"
	"casesync/internal/server/migrations"
	"casesync/internal/server/repositories/cases"
	"casesync/internal/server/repositories/dictionaries"
	"casesync/internal/server/repositories/synchistory"
	"casesync/internal/server/repositories/users"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Dictionaries returns a dictionaries.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Dictionaries(db dbx.DBTX) dictionaries.Repository {
	return dictionaries.NewPostgresRepository(db)
}

// Cases returns a cases.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Cases(db dbx.DBTX) cases.Repository {
	return cases.NewPostgresRepository(db)
}

// SyncHistory returns a synchistory.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) SyncHistory(db dbx.DBTX) synchistory.Repository {
	return synchistory.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
