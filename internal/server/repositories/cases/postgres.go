// Package cases provides PostgreSQL-backed storage for case records: the
// consistent clock snapshots reconciliation reads, the atomic batch commit
// that stamps revisions, and the incremental queries pulls are built on.
package cases

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"casesync/internal/clock"
	"casesync/internal/dbx"
	"casesync/internal/server/models"
)

// PostgresRepository implements case storage over a dbx.DBTX (*sql.DB or
// *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ClockSnapshot(ctx context.Context, dictionaryID int64, guids []uuid.UUID) (map[uuid.UUID]clock.VectorClock, error) {
	if len(guids) == 0 {
		return map[uuid.UUID]clock.VectorClock{}, nil
	}

	placeholders := make([]string, len(guids))
	args := make([]any, 0, len(guids)+1)
	args = append(args, dictionaryID)
	for i, guid := range guids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, guid)
	}

	query := fmt.Sprintf(
		`SELECT guid, clock FROM cases WHERE dictionary_id = $1 AND guid IN (%s);`,
		strings.Join(placeholders, ","),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select case clocks: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[uuid.UUID]clock.VectorClock, len(guids))
	for rows.Next() {
		var guid uuid.UUID
		var raw []byte
		if err := rows.Scan(&guid, &raw); err != nil {
			return nil, err
		}
		vc, err := clock.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", guid, err)
		}
		snapshot[guid] = vc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *PostgresRepository) Commit(ctx context.Context, dictionaryID int64, batch []*models.Case, revision int64) error {
	query := `
		INSERT INTO cases (dictionary_id, guid, caseids, label, payload, clock, revision,
			deleted, verified, broken_out,
			partial_save_mode, partial_save_field_name, partial_save_level_key,
			partial_save_record_occurrence, partial_save_item_occurrence, partial_save_subitem_occurrence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (dictionary_id, guid)
		DO UPDATE SET
			caseids = EXCLUDED.caseids,
			label = EXCLUDED.label,
			payload = EXCLUDED.payload,
			clock = EXCLUDED.clock,
			revision = EXCLUDED.revision,
			deleted = EXCLUDED.deleted,
			verified = EXCLUDED.verified,
			broken_out = FALSE,
			partial_save_mode = EXCLUDED.partial_save_mode,
			partial_save_field_name = EXCLUDED.partial_save_field_name,
			partial_save_level_key = EXCLUDED.partial_save_level_key,
			partial_save_record_occurrence = EXCLUDED.partial_save_record_occurrence,
			partial_save_item_occurrence = EXCLUDED.partial_save_item_occurrence,
			partial_save_subitem_occurrence = EXCLUDED.partial_save_subitem_occurrence,
			modified_time = now();
	`

	for _, c := range batch {
		clockJSON, err := json.Marshal(c.Clock)
		if err != nil {
			return fmt.Errorf("marshal clock for case %s: %w", c.GUID, err)
		}
		ps := nullPartialSave(c.PartialSave)
		_, err = r.db.ExecContext(ctx, query,
			dictionaryID, c.GUID, c.CaseIDs, c.Label, c.Payload, clockJSON, revision,
			c.Deleted, c.Verified,
			ps.mode, ps.fieldName, ps.levelKey, ps.recordOcc, ps.itemOcc, ps.subitemOcc,
		)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		c.Revision = revision
	}
	return nil
}

func (r *PostgresRepository) SelectSince(ctx context.Context, dictionaryID int64, sinceRevision int64, universe string) ([]*models.Case, error) {
	query := `
		SELECT guid, caseids, label, payload, clock, revision, deleted, verified,
			partial_save_mode, partial_save_field_name, partial_save_level_key,
			partial_save_record_occurrence, partial_save_item_occurrence, partial_save_subitem_occurrence
		FROM cases
		WHERE dictionary_id = $1 AND revision > $2
	`
	args := []any{dictionaryID, sinceRevision}
	if universe != "" {
		query += ` AND caseids LIKE $3 `
		args = append(args, likePrefix(universe))
	}
	query += ` ORDER BY revision, caseids;`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select cases: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

func (r *PostgresRepository) ClaimUnprocessed(ctx context.Context, dictionaryID int64, limit int) ([]*models.Case, error) {
	// SKIP LOCKED keeps concurrent breakout workers off each other's rows.
	query := `
		UPDATE cases SET broken_out = TRUE
		WHERE (dictionary_id, guid) IN (
			SELECT dictionary_id, guid FROM cases
			WHERE dictionary_id = $1 AND NOT broken_out
			ORDER BY revision
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING guid, caseids, label, payload, clock, revision, deleted, verified,
			partial_save_mode, partial_save_field_name, partial_save_level_key,
			partial_save_record_occurrence, partial_save_item_occurrence, partial_save_subitem_occurrence;
	`
	rows, err := r.db.QueryContext(ctx, query, dictionaryID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim cases: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

func (r *PostgresRepository) ResetUnprocessed(ctx context.Context, dictionaryID int64, guids []uuid.UUID) error {
	if len(guids) == 0 {
		return nil
	}

	placeholders := make([]string, len(guids))
	args := make([]any, 0, len(guids)+1)
	args = append(args, dictionaryID)
	for i, guid := range guids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, guid)
	}

	query := fmt.Sprintf(
		`UPDATE cases SET broken_out = FALSE WHERE dictionary_id = $1 AND guid IN (%s);`,
		strings.Join(placeholders, ","),
	)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// likePrefix escapes LIKE metacharacters so the universe is matched as a
// literal prefix.
func likePrefix(universe string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(universe) + "%"
}

type partialSaveColumns struct {
	mode       sql.NullString
	fieldName  sql.NullString
	levelKey   sql.NullString
	recordOcc  sql.NullInt16
	itemOcc    sql.NullInt16
	subitemOcc sql.NullInt16
}

func nullPartialSave(ps *models.PartialSave) partialSaveColumns {
	if ps == nil {
		return partialSaveColumns{}
	}
	return partialSaveColumns{
		mode:       sql.NullString{String: ps.Mode, Valid: true},
		fieldName:  sql.NullString{String: ps.Field.Name, Valid: true},
		levelKey:   sql.NullString{String: ps.Field.LevelKey, Valid: true},
		recordOcc:  sql.NullInt16{Int16: int16(ps.Field.RecordOccurrence), Valid: true},
		itemOcc:    sql.NullInt16{Int16: int16(ps.Field.ItemOccurrence), Valid: true},
		subitemOcc: sql.NullInt16{Int16: int16(ps.Field.SubitemOccurrence), Valid: true},
	}
}

func (c partialSaveColumns) toModel() *models.PartialSave {
	if !c.mode.Valid {
		return nil
	}
	return &models.PartialSave{
		Mode: c.mode.String,
		Field: models.PartialSaveField{
			Name:              c.fieldName.String,
			LevelKey:          c.levelKey.String,
			RecordOccurrence:  int(c.recordOcc.Int16),
			ItemOccurrence:    int(c.itemOcc.Int16),
			SubitemOccurrence: int(c.subitemOcc.Int16),
		},
	}
}

func scanCases(rows *sql.Rows) ([]*models.Case, error) {
	var result []*models.Case
	for rows.Next() {
		var item models.Case
		var rawClock []byte
		var ps partialSaveColumns
		if err := rows.Scan(
			&item.GUID, &item.CaseIDs, &item.Label, &item.Payload, &rawClock,
			&item.Revision, &item.Deleted, &item.Verified,
			&ps.mode, &ps.fieldName, &ps.levelKey,
			&ps.recordOcc, &ps.itemOcc, &ps.subitemOcc,
		); err != nil {
			return nil, err
		}
		vc, err := clock.Decode(rawClock)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", item.GUID, err)
		}
		item.Clock = vc
		item.PartialSave = ps.toModel()
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
