package cases

import (
	"context"

	"github.com/google/uuid"

	"casesync/internal/clock"
	"casesync/internal/server/models"
)

type Repository interface {
	// ClockSnapshot returns the stored clock for every listed GUID that
	// exists in the dictionary. Callers needing snapshot isolation run it
	// inside dbx.WithSnapshotTx.
	ClockSnapshot(ctx context.Context, dictionaryID int64, guids []uuid.UUID) (map[uuid.UUID]clock.VectorClock, error)

	// Commit upserts the reconciled batch, stamping every record with the
	// given revision. All-or-nothing: the caller wraps it in a
	// transaction together with the ledger bookkeeping.
	Commit(ctx context.Context, dictionaryID int64, batch []*models.Case, revision int64) error

	// SelectSince returns cases committed after sinceRevision, restricted
	// to case keys under the universe prefix when universe is non-empty,
	// ordered by revision.
	SelectSince(ctx context.Context, dictionaryID int64, sinceRevision int64, universe string) ([]*models.Case, error)

	// ClaimUnprocessed marks up to limit cases as taken by the blob
	// breakout and returns them. Concurrent claimers skip each other's
	// rows.
	ClaimUnprocessed(ctx context.Context, dictionaryID int64, limit int) ([]*models.Case, error)

	// ResetUnprocessed returns claimed cases to the queue after a failed
	// breakout chunk.
	ResetUnprocessed(ctx context.Context, dictionaryID int64, guids []uuid.UUID) error
}
