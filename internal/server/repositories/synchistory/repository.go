// Package synchistory implements the append-only revision ledger of
// completed synchronization events. Revision numbers are strictly
// increasing per dictionary; the ledger is what makes pulls incremental
// (each device resumes from its last recorded revision) and scope-safe
// (a device may never silently widen its universe between two syncs).
package synchistory

import (
	"context"
	"strings"

	"casesync/internal/server/models"
)

type Repository interface {
	// AppendEntry records a completed sync and returns its revision,
	// strictly increasing per dictionary. Two concurrent appends for the
	// same dictionary always receive two different, ordered revisions;
	// appends for different dictionaries do not contend.
	AppendEntry(ctx context.Context, dictionaryID int64, device, username string, direction models.SyncDirection, universe string) (int64, error)

	// LastEntryForDevice returns the most recent entry (by revision) for
	// the device, or common.ErrorNotFound when the device never synced
	// this dictionary.
	LastEntryForDevice(ctx context.Context, dictionaryID int64, device string) (*models.SyncHistoryEntry, error)

	// EntryAtRevision returns the entry recorded at revision, or
	// common.ErrorNotFound.
	EntryAtRevision(ctx context.Context, dictionaryID int64, revision int64) (*models.SyncHistoryEntry, error)

	// DeleteEntry removes a ledger entry and returns the count removed
	// (0 or 1). Used to compensate a failed sync transaction: an orphaned
	// entry would advance a device's watermark past records it never
	// received.
	DeleteEntry(ctx context.Context, dictionaryID int64, revision int64) (int64, error)
}

// IsUniverseNonWidening reports whether current is the same universe as
// previous, or a further restriction of it. The universe is built by
// successive restriction, each clause appended to the previous string, so
// "at least as long and previous is a literal prefix" is exactly
// "not wider".
func IsUniverseNonWidening(current, previous string) bool {
	if current == previous {
		return true
	}
	return len(current) >= len(previous) && strings.HasPrefix(current, previous)
}
