// Package services contains server-side business logic. This file implements
// SyncService, the orchestrator of a synchronization session: reconciling
// pushed batches against stored clocks, serving incremental pulls, and
// keeping the revision ledger consistent with what clients actually received.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"casesync/internal/clock"
	"casesync/internal/common"
	"casesync/internal/dbx"
	"casesync/internal/logging"
	"casesync/internal/server/config"
	"casesync/internal/server/models"
	"casesync/internal/server/reconcile"
	"casesync/internal/server/repositories/repomanager"
	"casesync/internal/server/repositories/synchistory"
)

// PushResult reports the outcome of a push: the ledger revision stamped on
// the accepted records, plus which entries were dropped as stale.
type PushResult struct {
	Revision int64
	Accepted int
	Rejected []uuid.UUID
}

// PullResult carries the incremental batch and the revision the client
// should use as its next watermark.
type PullResult struct {
	Cases    []*models.Case
	Revision int64
}

// SyncService runs synchronization sessions against the case store and the
// revision ledger.
type SyncService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	engine      *reconcile.Engine
	logger      logging.Logger
}

// NewSyncService constructs a SyncService using repositories and server config.
func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *SyncService {
	return &SyncService{
		db:          db,
		repomanager: m,
		engine:      reconcile.NewEngine(cfg.ServerDeviceID),
		logger:      logger.With("module", "sync"),
	}
}

// Push reconciles a pushed batch against the stored clocks and commits the
// survivors under a fresh ledger revision.
//
// The ledger entry is appended before the commit transaction: its revision
// counter update is a single atomic statement with its own retry loop, so it
// cannot live inside the commit transaction. If the commit then fails, the
// orphaned entry is removed again; leaving it would advance the device's
// watermark past records that were never stored.
//
// A push whose entries are all dropped still records a ledger entry: the
// device did complete a sync, and its next pull resumes from here.
func (s *SyncService) Push(ctx context.Context, device, username, dictionary, universe string, batch []*models.Case) (*PushResult, error) {
	dict, err := s.repomanager.Dictionaries(s.db).GetByName(ctx, dictionary)
	if err != nil {
		return nil, err
	}

	guids := make([]uuid.UUID, len(batch))
	for i, c := range batch {
		guids[i] = c.GUID
	}

	var serverClocks map[uuid.UUID]clock.VectorClock
	if err := dbx.WithSnapshotTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		var snapErr error
		serverClocks, snapErr = s.repomanager.Cases(tx).ClockSnapshot(ctx, dict.ID, guids)
		return snapErr
	}); err != nil {
		return nil, fmt.Errorf("error reading clock snapshot: %w", err)
	}

	accepted := s.engine.Reconcile(batch, serverClocks)

	history := s.repomanager.SyncHistory(s.db)
	revision, err := history.AppendEntry(ctx, dict.ID, device, username, models.SyncPut, universe)
	if err != nil {
		return nil, fmt.Errorf("error appending sync history: %w", err)
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Cases(tx).Commit(ctx, dict.ID, accepted, revision)
	}); err != nil {
		if _, delErr := history.DeleteEntry(ctx, dict.ID, revision); delErr != nil {
			s.logger.Error(ctx, "orphaned ledger entry could not be removed",
				"dictionary", dictionary, "revision", revision, "error", delErr)
		}
		return nil, fmt.Errorf("error committing batch: %w", err)
	}

	s.logger.Info(ctx, "push completed",
		"dictionary", dictionary, "device", device, "revision", revision,
		"accepted", len(accepted), "rejected", len(batch)-len(accepted))

	return &PushResult{
		Revision: revision,
		Accepted: len(accepted),
		Rejected: rejectedGUIDs(batch, accepted),
	}, nil
}

// Pull returns cases committed after sinceRevision, restricted to the
// device's universe, and records the pull in the ledger. A device asking
// for a wider universe than its previous sync is refused without touching
// the ledger.
func (s *SyncService) Pull(ctx context.Context, device, username, dictionary, universe string, sinceRevision int64) (*PullResult, error) {
	dict, err := s.repomanager.Dictionaries(s.db).GetByName(ctx, dictionary)
	if err != nil {
		return nil, err
	}

	history := s.repomanager.SyncHistory(s.db)

	last, err := history.LastEntryForDevice(ctx, dict.ID, device)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error reading sync history: %w", err)
	}
	if last != nil && !synchistory.IsUniverseNonWidening(universe, last.Universe) {
		return nil, common.ErrScopeWidened
	}

	result, err := s.repomanager.Cases(s.db).SelectSince(ctx, dict.ID, sinceRevision, universe)
	if err != nil {
		return nil, fmt.Errorf("error selecting cases: %w", err)
	}

	revision, err := history.AppendEntry(ctx, dict.ID, device, username, models.SyncGet, universe)
	if err != nil {
		return nil, fmt.Errorf("error appending sync history: %w", err)
	}

	s.logger.Info(ctx, "pull completed",
		"dictionary", dictionary, "device", device, "revision", revision,
		"since", sinceRevision, "cases", len(result))

	return &PullResult{Cases: result, Revision: revision}, nil
}

// ResumeWatermark returns the revision of the device's last recorded sync,
// or common.ErrorNotFound when the device never synced this dictionary.
func (s *SyncService) ResumeWatermark(ctx context.Context, device, dictionary string) (int64, error) {
	dict, err := s.repomanager.Dictionaries(s.db).GetByName(ctx, dictionary)
	if err != nil {
		return 0, err
	}

	last, err := s.repomanager.SyncHistory(s.db).LastEntryForDevice(ctx, dict.ID, device)
	if err != nil {
		return 0, err
	}
	return last.Revision, nil
}

func rejectedGUIDs(batch, accepted []*models.Case) []uuid.UUID {
	kept := make(map[uuid.UUID]struct{}, len(accepted))
	for _, c := range accepted {
		kept[c.GUID] = struct{}{}
	}
	var rejected []uuid.UUID
	for _, c := range batch {
		if _, ok := kept[c.GUID]; !ok {
			rejected = append(rejected, c.GUID)
		}
	}
	return rejected
}
