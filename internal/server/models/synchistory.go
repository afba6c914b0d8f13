package models

import "time"

// SyncDirection tells whether a sync history entry was recorded for a
// client push or a client pull.
type SyncDirection string

const (
	SyncPut SyncDirection = "put"
	SyncGet SyncDirection = "get"
)

// SyncHistoryEntry is one completed synchronization event. Entries are
// immutable once written; they are only superseded by later entries or
// deleted when a failed sync transaction is compensated.
type SyncHistoryEntry struct {
	Revision   int64 // ledger-assigned, strictly increasing per dictionary
	Device     string
	Username   string
	Dictionary string
	Universe   string
	Direction  SyncDirection
	CreatedAt  time.Time
}
