package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertQualityChecks persists failing validator results for a patch set.
func (s *Store) InsertQualityChecks(ctx context.Context, checks []*QualityCheck) error {
	if len(checks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quality tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, check := range checks {
		if check.ID == "" {
			check.ID = uuid.NewString()
		}
		check.CheckedAt = now
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO quality_checks (check_id, patch_set_id, entry_key, validator, level, message, details_json, checked_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			check.ID, nullableString(check.PatchSetID), check.EntryKey, check.Validator,
			check.Level, check.Message, nullableString(check.DetailsJSON),
			timestamp(now)); err != nil {
			return fmt.Errorf("insert quality check: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit quality tx: %w", err)
	}
	return nil
}

// QualityChecksForSet returns persisted checks for a patch set, newest first.
func (s *Store) QualityChecksForSet(ctx context.Context, patchSetID string) ([]*QualityCheck, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT check_id, patch_set_id, entry_key, validator, level, message, details_json, checked_at
        FROM quality_checks WHERE patch_set_id = ?
        ORDER BY checked_at DESC, entry_key`, patchSetID)
	if err != nil {
		return nil, fmt.Errorf("query quality checks: %w", err)
	}
	defer rows.Close()

	var checks []*QualityCheck
	for rows.Next() {
		var check QualityCheck
		var patchSet, details sql.NullString
		var checkedAt string
		if err := rows.Scan(&check.ID, &patchSet, &check.EntryKey, &check.Validator,
			&check.Level, &check.Message, &details, &checkedAt); err != nil {
			return nil, fmt.Errorf("scan quality check: %w", err)
		}
		check.PatchSetID = patchSet.String
		check.DetailsJSON = details.String
		if check.CheckedAt, err = parseTimeString(checkedAt); err != nil {
			return nil, fmt.Errorf("parse checked_at: %w", err)
		}
		checks = append(checks, &check)
	}
	return checks, rows.Err()
}
