// Package dictionaries provides the PostgreSQL-backed dictionary registry.
// Dictionary source is stored verbatim; parsing it is the job of external
// collaborators.
package dictionaries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"casesync/internal/common"
	"casesync/internal/dbx"
	"casesync/internal/server/models"
)

// PostgresRepository implements dictionary storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, d *models.Dictionary) (*models.Dictionary, error) {
	query := `
		INSERT INTO dictionaries (name, label, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at;
	`
	row := r.db.QueryRowContext(ctx, query, d.Name, d.Label, d.Content)
	if err := row.Scan(&d.ID, &d.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	// Seed the revision counter so AppendEntry never races on first use.
	counter := `
		INSERT INTO dictionary_revisions (dictionary_id, last_revision)
		VALUES ($1, 0)
		ON CONFLICT (dictionary_id) DO NOTHING;
	`
	if _, err := r.db.ExecContext(ctx, counter, d.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return d, nil
}

func (r *PostgresRepository) UpdateContent(ctx context.Context, name, label, content string) error {
	query := `UPDATE dictionaries SET label = $2, content = $3 WHERE name = $1;`
	res, err := r.db.ExecContext(ctx, query, name, label, content)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrDictionaryUnknown
	}
	return nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Dictionary, error) {
	query := `SELECT id, name, label, content, created_at FROM dictionaries WHERE name = $1;`

	var d models.Dictionary
	row := r.db.QueryRowContext(ctx, query, name)
	if err := row.Scan(&d.ID, &d.Name, &d.Label, &d.Content, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrDictionaryUnknown
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &d, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Dictionary, error) {
	query := `SELECT id, name, label, created_at FROM dictionaries ORDER BY name;`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select dictionaries: %w", err)
	}
	defer rows.Close()

	var result []*models.Dictionary
	for rows.Next() {
		var d models.Dictionary
		if err := rows.Scan(&d.ID, &d.Name, &d.Label, &d.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
