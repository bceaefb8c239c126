package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrIllegalTransition signals a patch set status change the lifecycle
// does not allow.
var ErrIllegalTransition = errors.New("catalog: illegal status transition")

// CreatePatchSet inserts a new draft patch set and returns its ID.
func (s *Store) CreatePatchSet(ctx context.Context, name, description, version string) (string, error) {
	id := uuid.NewString()
	now := timestamp(time.Now())
	if _, err := s.db.ExecContext(ctx, `
        INSERT INTO patch_sets (patch_set_id, name, description, version, status, signature, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
		id, name, nullableString(description), nullableString(version),
		string(PatchDraft), now, now); err != nil {
		return "", fmt.Errorf("insert patch set: %w", err)
	}
	return id, nil
}

// GetPatchSet returns a patch set by ID or ErrNotFound.
func (s *Store) GetPatchSet(ctx context.Context, id string) (*PatchSetRecord, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT patch_set_id, name, description, version, status, signature, created_at, updated_at
        FROM patch_sets WHERE patch_set_id = ?`, id)
	record, err := scanPatchSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: patch set %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get patch set: %w", err)
	}
	return record, nil
}

// ListPatchSets returns patch sets, optionally filtered by status, newest
// first.
func (s *Store) ListPatchSets(ctx context.Context, status PatchStatus) ([]*PatchSetRecord, error) {
	query := `
        SELECT patch_set_id, name, description, version, status, signature, created_at, updated_at
        FROM patch_sets`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query patch sets: %w", err)
	}
	defer rows.Close()

	var records []*PatchSetRecord
	for rows.Next() {
		record, err := scanPatchSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patch set: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdatePatchSetStatus moves a patch set along its lifecycle, recording a
// signature when one is provided. Illegal transitions are refused with the
// current status intact.
func (s *Store) UpdatePatchSetStatus(ctx context.Context, id string, next PatchStatus, signature string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	row := tx.QueryRowContext(ctx, "SELECT status FROM patch_sets WHERE patch_set_id = ?", id)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: patch set %s", ErrNotFound, id)
		}
		return fmt.Errorf("scan patch set status: %w", err)
	}
	if !PatchStatus(current).CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, next)
	}

	now := timestamp(time.Now())
	if signature != "" {
		_, err = tx.ExecContext(ctx,
			"UPDATE patch_sets SET status = ?, signature = ?, updated_at = ? WHERE patch_set_id = ?",
			string(next), signature, now, id)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE patch_sets SET status = ?, updated_at = ? WHERE patch_set_id = ?",
			string(next), now, id)
	}
	if err != nil {
		return fmt.Errorf("update patch set status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition tx: %w", err)
	}
	return nil
}

// InsertPatchItem adds an item to a draft patch set. The unique index on
// (set, container, namespace, locale) rejects duplicate targets.
func (s *Store) InsertPatchItem(ctx context.Context, item *PatchItemRecord) (string, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now()
	item.CreatedAt = now
	if _, err := s.db.ExecContext(ctx, `
        INSERT INTO patch_items (patch_item_id, patch_set_id, target_container_id, namespace, locale, policy,
            expected_blob_hash, expected_entry_count, target_member_path, upstream_anchor_blob, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.PatchSetID, item.TargetContainerID, item.Namespace, item.Locale, item.Policy,
		nullableString(item.ExpectedBlobHash), item.ExpectedEntryCount,
		nullableString(item.TargetMemberPath), nullableString(item.UpstreamAnchorBlob),
		timestamp(now)); err != nil {
		return "", fmt.Errorf("insert patch item: %w", err)
	}
	return item.ID, nil
}

// GetPatchItem returns a patch item by ID or ErrNotFound.
func (s *Store) GetPatchItem(ctx context.Context, id string) (*PatchItemRecord, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT patch_item_id, patch_set_id, target_container_id, namespace, locale, policy,
            expected_blob_hash, expected_entry_count, target_member_path, upstream_anchor_blob, created_at
        FROM patch_items WHERE patch_item_id = ?`, id)
	item, err := scanPatchItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: patch item %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get patch item: %w", err)
	}
	return item, nil
}

// ItemsForSet returns a patch set's items in deterministic target order.
func (s *Store) ItemsForSet(ctx context.Context, patchSetID string) ([]*PatchItemRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT patch_item_id, patch_set_id, target_container_id, namespace, locale, policy,
            expected_blob_hash, expected_entry_count, target_member_path, upstream_anchor_blob, created_at
        FROM patch_items WHERE patch_set_id = ?
        ORDER BY target_container_id, namespace, locale`, patchSetID)
	if err != nil {
		return nil, fmt.Errorf("query patch items: %w", err)
	}
	defer rows.Close()

	var items []*PatchItemRecord
	for rows.Next() {
		item, err := scanPatchItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patch item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanPatchSet(row rowScanner) (*PatchSetRecord, error) {
	var record PatchSetRecord
	var description, version, signature sql.NullString
	var status, createdAt, updatedAt string
	if err := row.Scan(&record.ID, &record.Name, &description, &version, &status, &signature, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	record.Description = description.String
	record.Version = version.String
	record.Signature = signature.String
	record.Status = PatchStatus(status)
	var err error
	if record.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if record.UpdatedAt, err = parseTimeString(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &record, nil
}

func scanPatchItem(row rowScanner) (*PatchItemRecord, error) {
	var item PatchItemRecord
	var expectedBlob, memberPath, anchorBlob sql.NullString
	var expectedCount sql.NullInt64
	var createdAt string
	if err := row.Scan(&item.ID, &item.PatchSetID, &item.TargetContainerID, &item.Namespace, &item.Locale,
		&item.Policy, &expectedBlob, &expectedCount, &memberPath, &anchorBlob, &createdAt); err != nil {
		return nil, err
	}
	item.ExpectedBlobHash = expectedBlob.String
	item.ExpectedEntryCount = int(expectedCount.Int64)
	item.TargetMemberPath = memberPath.String
	item.UpstreamAnchorBlob = anchorBlob.String
	var err error
	if item.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &item, nil
}
