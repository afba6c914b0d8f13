package dictionaries

import (
	"context"

	"casesync/internal/server/models"
)

type Repository interface {
	// Create registers a dictionary and its revision counter row.
	Create(ctx context.Context, d *models.Dictionary) (*models.Dictionary, error)
	// UpdateContent replaces the stored label and source of an existing
	// dictionary.
	UpdateContent(ctx context.Context, name, label, content string) error
	// GetByName returns common.ErrDictionaryUnknown when name is not
	// registered.
	GetByName(ctx context.Context, name string) (*models.Dictionary, error)
	// List returns all registered dictionaries without their content.
	List(ctx context.Context) ([]*models.Dictionary, error)
}
