package synchistory

import (
	"context"
	"sync"
	"time"

	"casesync/internal/common"
	"casesync/internal/server/models"
)

// InMemoryRepository is a ledger held entirely in memory. It honors the
// same contract as the PostgreSQL implementation and backs unit tests and
// single-process deployments without a database.
type InMemoryRepository struct {
	mu           sync.Mutex
	dictionaries map[int64]*dictionaryLedger
}

type dictionaryLedger struct {
	mu           sync.Mutex
	lastRevision int64
	entries      map[int64]*models.SyncHistoryEntry
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{dictionaries: make(map[int64]*dictionaryLedger)}
}

// ledgerFor returns the per-dictionary ledger, creating it on first use.
// Each dictionary has its own lock, so appends for different dictionaries
// never block each other.
func (r *InMemoryRepository) ledgerFor(dictionaryID int64) *dictionaryLedger {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.dictionaries[dictionaryID]
	if !ok {
		l = &dictionaryLedger{entries: make(map[int64]*models.SyncHistoryEntry)}
		r.dictionaries[dictionaryID] = l
	}
	return l
}

func (r *InMemoryRepository) AppendEntry(_ context.Context, dictionaryID int64, device, username string, direction models.SyncDirection, universe string) (int64, error) {
	l := r.ledgerFor(dictionaryID)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastRevision++
	revision := l.lastRevision
	l.entries[revision] = &models.SyncHistoryEntry{
		Revision:  revision,
		Device:    device,
		Username:  username,
		Universe:  universe,
		Direction: direction,
		CreatedAt: time.Now().UTC(),
	}
	return revision, nil
}

func (r *InMemoryRepository) LastEntryForDevice(_ context.Context, dictionaryID int64, device string) (*models.SyncHistoryEntry, error) {
	l := r.ledgerFor(dictionaryID)
	l.mu.Lock()
	defer l.mu.Unlock()

	var last *models.SyncHistoryEntry
	for _, e := range l.entries {
		if e.Device != device {
			continue
		}
		if last == nil || e.Revision > last.Revision {
			last = e
		}
	}
	if last == nil {
		return nil, common.ErrorNotFound
	}
	copied := *last
	return &copied, nil
}

func (r *InMemoryRepository) EntryAtRevision(_ context.Context, dictionaryID int64, revision int64) (*models.SyncHistoryEntry, error) {
	l := r.ledgerFor(dictionaryID)
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[revision]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *InMemoryRepository) DeleteEntry(_ context.Context, dictionaryID int64, revision int64) (int64, error) {
	l := r.ledgerFor(dictionaryID)
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[revision]; !ok {
		return 0, nil
	}
	delete(l.entries, revision)
	return 1, nil
}
