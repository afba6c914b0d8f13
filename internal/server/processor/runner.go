// Package processor implements the blob breakout: a background runner that
// decompresses newly synced case payloads into queryable JSON rows, one
// bounded worker per dictionary. Sync latency stays independent of how
// expensive the breakout is, because pushes only touch the compressed blob.
package processor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"casesync/internal/logging"
	"casesync/internal/server/config"
	"casesync/internal/server/models"
	"casesync/internal/server/repositories/cases"
	"casesync/internal/server/repositories/repomanager"
)

// Runner periodically breaks out unprocessed cases, dictionary by
// dictionary.
type Runner struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	jobs        JobsRepository
	archiver    Archiver
	logger      logging.Logger

	workers   int
	chunkSize int
	interval  time.Duration
	timeLimit time.Duration
}

// NewRunner constructs a Runner. archiver may be nil (archiving off).
func NewRunner(db *sql.DB, m repomanager.RepositoryManager, jobs JobsRepository, archiver Archiver, cfg *config.Config, logger logging.Logger) *Runner {
	return &Runner{
		db:          db,
		repomanager: m,
		jobs:        jobs,
		archiver:    archiver,
		logger:      logger.With("module", "processor"),
		workers:     cfg.ProcessorWorkers,
		chunkSize:   cfg.ProcessorChunkSize,
		interval:    cfg.ProcessorInterval,
		timeLimit:   cfg.ProcessorTimeLimit,
	}
}

// Run loops until the context is cancelled, starting one breakout pass per
// interval. A pass that overruns the next tick is not started twice: ticks
// are consumed only when the previous pass finished.
func (r *Runner) Run(ctx context.Context) error {
	if r.workers <= 0 {
		r.logger.Info(ctx, "breakout disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error(ctx, "breakout pass failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single breakout pass over all dictionaries, bounded by
// the configured time limit and worker count. Only one instance runs per
// database; others skip the pass.
func (r *Runner) RunOnce(ctx context.Context) error {
	locked, err := r.jobs.TryLock(ctx)
	if err != nil {
		return err
	}
	if !locked {
		r.logger.Debug(ctx, "another breakout instance holds the lock")
		return nil
	}
	defer func() {
		if err := r.jobs.Unlock(ctx); err != nil {
			r.logger.Warn(ctx, "breakout unlock failed", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeLimit)
	defer cancel()

	dicts, err := r.repomanager.Dictionaries(r.db).List(ctx)
	if err != nil {
		return fmt.Errorf("error listing dictionaries: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, d := range dicts {
		g.Go(func() error {
			return r.processDictionary(ctx, d)
		})
	}
	return g.Wait()
}

// processDictionary drains the dictionary's unprocessed queue chunk by
// chunk. A failed chunk is returned to the queue and recorded as a failed
// job; later chunks of other dictionaries are unaffected.
func (r *Runner) processDictionary(ctx context.Context, dict *models.Dictionary) error {
	repo := r.repomanager.Cases(r.db)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := repo.ClaimUnprocessed(ctx, dict.ID, r.chunkSize)
		if err != nil {
			return fmt.Errorf("dictionary %s: error claiming cases: %w", dict.Name, err)
		}
		if len(chunk) == 0 {
			return nil
		}

		jobID := ulid.Make().String()
		if err := r.jobs.CreateJob(ctx, jobID, dict.ID); err != nil {
			r.release(ctx, repo, dict.ID, chunk)
			return fmt.Errorf("dictionary %s: error creating job: %w", dict.Name, err)
		}

		if err := r.processChunk(ctx, dict, jobID, chunk); err != nil {
			r.release(ctx, repo, dict.ID, chunk)
			if finishErr := r.jobs.FinishJob(ctx, jobID, 0, err.Error()); finishErr != nil {
				r.logger.Error(ctx, "failed job could not be recorded", "job", jobID, "error", finishErr)
			}
			return fmt.Errorf("dictionary %s: %w", dict.Name, err)
		}

		if err := r.jobs.FinishJob(ctx, jobID, len(chunk), ""); err != nil {
			return fmt.Errorf("dictionary %s: error finishing job: %w", dict.Name, err)
		}

		r.logger.Info(ctx, "chunk broken out",
			"dictionary", dict.Name, "job", jobID, "cases", len(chunk))

		if len(chunk) < r.chunkSize {
			return nil
		}
	}
}

func (r *Runner) processChunk(ctx context.Context, dict *models.Dictionary, jobID string, chunk []*models.Case) error {
	entries := make([]CaseJSON, 0, len(chunk))
	for _, c := range chunk {
		questionnaire, err := cases.DecompressPayload(c.Payload)
		if err != nil {
			return fmt.Errorf("case %s: %w", c.GUID, err)
		}
		entries = append(entries, CaseJSON{
			GUID:          c.GUID,
			CaseIDs:       c.CaseIDs,
			Revision:      c.Revision,
			Questionnaire: questionnaire,
		})
	}

	if err := r.jobs.StoreCaseJSON(ctx, dict.ID, entries); err != nil {
		return err
	}

	if r.archiver != nil {
		body, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("error encoding archive chunk: %w", err)
		}
		key := fmt.Sprintf("breakouts/%s/%s.json", dict.Name, jobID)
		if err := r.archiver.Archive(ctx, key, body); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) release(ctx context.Context, repo cases.Repository, dictionaryID int64, chunk []*models.Case) {
	guids := make([]uuid.UUID, len(chunk))
	for i, c := range chunk {
		guids[i] = c.GUID
	}
	if err := repo.ResetUnprocessed(ctx, dictionaryID, guids); err != nil {
		r.logger.Error(ctx, "claimed cases could not be released", "error", err)
	}
}
