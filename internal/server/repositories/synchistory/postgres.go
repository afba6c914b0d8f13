package synchistory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"

	"casesync/internal/common"
	"casesync/internal/dbx"
	"casesync/internal/server/models"
)

// appendMaxRetries bounds the internal retry of a lost concurrent-append
// race; past that the conflict surfaces to the caller.
const appendMaxRetries = 3

// PostgresRepository implements the ledger over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// AppendEntry bumps the per-dictionary counter and records the entry in one
// statement, so the revision assignment is atomic with respect to
// concurrent callers. Serialization failures and deadlocks are retried
// with a bounded constant backoff.
func (r *PostgresRepository) AppendEntry(ctx context.Context, dictionaryID int64, device, username string, direction models.SyncDirection, universe string) (int64, error) {
	query := `
		WITH bump AS (
			UPDATE dictionary_revisions
			SET last_revision = last_revision + 1
			WHERE dictionary_id = $1
			RETURNING last_revision
		)
		INSERT INTO sync_history (dictionary_id, revision, device, username, direction, universe)
		SELECT $1, last_revision, $2, $3, $4, $5 FROM bump
		RETURNING revision;
	`

	var revision int64
	backoff := retry.WithMaxRetries(appendMaxRetries, retry.NewConstant(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		row := r.db.QueryRowContext(ctx, query, dictionaryID, device, username, string(direction), universe)
		if err := row.Scan(&revision); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// no counter row: the dictionary was never registered
				return common.ErrDictionaryUnknown
			}
			if isAppendConflict(err) {
				return retry.RetryableError(fmt.Errorf("%w: %w", common.ErrLedgerAppendConflict, err))
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return revision, nil
}

// isAppendConflict matches the transient PostgreSQL failures worth
// retrying: serialization_failure (40001) and deadlock_detected (40P01).
func isAppendConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func (r *PostgresRepository) LastEntryForDevice(ctx context.Context, dictionaryID int64, device string) (*models.SyncHistoryEntry, error) {
	query := `
		SELECT h.revision, h.device, h.username, d.name, h.universe, h.direction, h.created_at
		FROM sync_history h
		JOIN dictionaries d ON d.id = h.dictionary_id
		WHERE h.dictionary_id = $1 AND h.device = $2
		ORDER BY h.revision DESC
		LIMIT 1;
	`
	return r.scanEntry(r.db.QueryRowContext(ctx, query, dictionaryID, device))
}

func (r *PostgresRepository) EntryAtRevision(ctx context.Context, dictionaryID int64, revision int64) (*models.SyncHistoryEntry, error) {
	query := `
		SELECT h.revision, h.device, h.username, d.name, h.universe, h.direction, h.created_at
		FROM sync_history h
		JOIN dictionaries d ON d.id = h.dictionary_id
		WHERE h.dictionary_id = $1 AND h.revision = $2;
	`
	return r.scanEntry(r.db.QueryRowContext(ctx, query, dictionaryID, revision))
}

func (r *PostgresRepository) DeleteEntry(ctx context.Context, dictionaryID int64, revision int64) (int64, error) {
	query := `DELETE FROM sync_history WHERE dictionary_id = $1 AND revision = $2;`
	res, err := r.db.ExecContext(ctx, query, dictionaryID, revision)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) scanEntry(row *sql.Row) (*models.SyncHistoryEntry, error) {
	var e models.SyncHistoryEntry
	var direction string
	err := row.Scan(&e.Revision, &e.Device, &e.Username, &e.Dictionary, &e.Universe, &direction, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	e.Direction = models.SyncDirection(direction)
	return &e, nil
}
