package processor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"casesync/internal/dbx"
)

// CaseJSON is one broken-out questionnaire ready for reporting queries.
type CaseJSON struct {
	GUID          uuid.UUID
	CaseIDs       string
	Revision      int64
	Questionnaire string
}

// JobsRepository records breakout runs and stores their output.
type JobsRepository interface {
	// TryLock takes the processor's advisory lock. Only one breakout
	// instance may run against a database at a time.
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error

	CreateJob(ctx context.Context, jobID string, dictionaryID int64) error
	// FinishJob closes a job with status done, or failed when jobErr is
	// non-empty.
	FinishJob(ctx context.Context, jobID string, caseCount int, jobErr string) error

	StoreCaseJSON(ctx context.Context, dictionaryID int64, entries []CaseJSON) error
}

// processorLockKey identifies the breakout's advisory lock. Arbitrary but
// fixed; all instances must agree on it.
const processorLockKey = 0x43535750

type PostgresJobsRepository struct {
	db dbx.DBTX
}

func NewPostgresJobsRepository(db dbx.DBTX) *PostgresJobsRepository {
	return &PostgresJobsRepository{db: db}
}

func (r *PostgresJobsRepository) TryLock(ctx context.Context) (bool, error) {
	var locked bool
	err := r.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1);`, processorLockKey).Scan(&locked)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return locked, nil
}

func (r *PostgresJobsRepository) Unlock(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_unlock($1);`, processorLockKey); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) CreateJob(ctx context.Context, jobID string, dictionaryID int64) error {
	query := `INSERT INTO breakout_jobs (id, dictionary_id) VALUES ($1, $2);`
	if _, err := r.db.ExecContext(ctx, query, jobID, dictionaryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) FinishJob(ctx context.Context, jobID string, caseCount int, jobErr string) error {
	status := "done"
	if jobErr != "" {
		status = "failed"
	}
	query := `
		UPDATE breakout_jobs
		SET case_count = $2, status = $3, error = $4, finished_at = now()
		WHERE id = $1;
	`
	if _, err := r.db.ExecContext(ctx, query, jobID, caseCount, status, jobErr); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) StoreCaseJSON(ctx context.Context, dictionaryID int64, entries []CaseJSON) error {
	query := `
		INSERT INTO case_json (dictionary_id, guid, caseids, revision, questionnaire)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (dictionary_id, guid)
		DO UPDATE SET
			caseids = EXCLUDED.caseids,
			revision = EXCLUDED.revision,
			questionnaire = EXCLUDED.questionnaire,
			processed_at = now();
	`
	for _, e := range entries {
		if _, err := r.db.ExecContext(ctx, query, dictionaryID, e.GUID, e.CaseIDs, e.Revision, e.Questionnaire); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}
