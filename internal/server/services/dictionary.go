// This file implements DictionaryService, the registry of dictionaries that
// case storage is partitioned by.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"casesync/internal/common"
	"casesync/internal/server/models"
	"casesync/internal/server/repositories/repomanager"
)

// DictionaryService manages the dictionary registry.
type DictionaryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewDictionaryService constructs a DictionaryService.
func NewDictionaryService(db *sql.DB, m repomanager.RepositoryManager) *DictionaryService {
	return &DictionaryService{db: db, repomanager: m}
}

// Save registers a dictionary, or replaces the stored content when the name
// is already registered. Re-uploading a dictionary is how deployments are
// updated, so an existing name is not a conflict.
func (s *DictionaryService) Save(ctx context.Context, name, label, content string) (*models.Dictionary, error) {
	repo := s.repomanager.Dictionaries(s.db)

	existing, err := repo.GetByName(ctx, name)
	if err == nil {
		if err := repo.UpdateContent(ctx, name, label, content); err != nil {
			return nil, fmt.Errorf("error updating dictionary: %w", err)
		}
		existing.Label, existing.Content = label, content
		return existing, nil
	}
	if !errors.Is(err, common.ErrDictionaryUnknown) {
		return nil, err
	}

	d := &models.Dictionary{Name: name, Label: label, Content: content}
	created, err := repo.Create(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("error creating dictionary: %w", err)
	}
	return created, nil
}

// Get returns a dictionary with its content, or common.ErrDictionaryUnknown.
func (s *DictionaryService) Get(ctx context.Context, name string) (*models.Dictionary, error) {
	return s.repomanager.Dictionaries(s.db).GetByName(ctx, name)
}

// List returns all registered dictionaries without content.
func (s *DictionaryService) List(ctx context.Context) ([]*models.Dictionary, error) {
	return s.repomanager.Dictionaries(s.db).List(ctx)
}
