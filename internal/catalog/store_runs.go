package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreatePlan records a pending writeback plan for a patch set.
func (s *Store) CreatePlan(ctx context.Context, patchSetID string) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
        INSERT INTO writeback_plans (plan_id, patch_set_id, status, created_at)
        VALUES (?, ?, ?, ?)`,
		id, patchSetID, string(PlanPending), timestamp(time.Now())); err != nil {
		return "", fmt.Errorf("insert plan: %w", err)
	}
	return id, nil
}

// GetPlan returns a writeback plan by ID or ErrNotFound.
func (s *Store) GetPlan(ctx context.Context, id string) (*PlanRecord, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT plan_id, patch_set_id, status, created_at
        FROM writeback_plans WHERE plan_id = ?`, id)
	var record PlanRecord
	var status, createdAt string
	err := row.Scan(&record.ID, &record.PatchSetID, &status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: plan %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	record.Status = PlanStatus(status)
	if record.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &record, nil
}

// UpdatePlanStatus moves a plan along its lifecycle. Illegal transitions
// are refused with the current status intact.
func (s *Store) UpdatePlanStatus(ctx context.Context, id string, next PlanStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin plan transition tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	row := tx.QueryRowContext(ctx, "SELECT status FROM writeback_plans WHERE plan_id = ?", id)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: plan %s", ErrNotFound, id)
		}
		return fmt.Errorf("scan plan status: %w", err)
	}
	if !PlanStatus(current).CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, next)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE writeback_plans SET status = ? WHERE plan_id = ?", string(next), id); err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plan transition tx: %w", err)
	}
	return nil
}

// CreateRun opens a running apply-run row for a plan.
func (s *Store) CreateRun(ctx context.Context, planID string, dryRun, force bool) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
        INSERT INTO apply_runs (run_id, plan_id, status, dry_run, force, started_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		id, planID, string(RunRunning), boolToInt(dryRun), boolToInt(force),
		timestamp(time.Now())); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// CompleteRun closes a run with its terminal status and completion time.
func (s *Store) CompleteRun(ctx context.Context, id string, status RunStatus) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE apply_runs SET status = ?, completed_at = ? WHERE run_id = ?",
		string(status), timestamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("run rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	return nil
}

// GetRun returns an apply run by ID or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT run_id, plan_id, status, dry_run, force, started_at, completed_at
        FROM apply_runs WHERE run_id = ?`, id)
	record, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return record, nil
}

// RunsForPlan returns a plan's runs newest first.
func (s *Store) RunsForPlan(ctx context.Context, planID string) ([]*RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT run_id, plan_id, status, dry_run, force, started_at, completed_at
        FROM apply_runs WHERE plan_id = ?
        ORDER BY started_at DESC`, planID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// RunningRunCount counts apply runs still executing.
func (s *Store) RunningRunCount(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM apply_runs WHERE status = ?", string(RunRunning))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count running runs: %w", err)
	}
	return count, nil
}

// InsertApplyResult appends the per-item audit row for a run.
func (s *Store) InsertApplyResult(ctx context.Context, result *ResultRecord) (string, error) {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.RollbackStatus == "" {
		result.RollbackStatus = RollbackNotNeeded
	}
	now := time.Now()
	result.CreatedAt = now
	if _, err := s.db.ExecContext(ctx, `
        INSERT INTO apply_results (result_id, run_id, patch_item_id, status, strategy, target_path,
            before_hash, after_hash, expected_hash, backup_path, error_message, rollback_status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.RunID, result.PatchItemID, string(result.Status),
		nullableString(result.Strategy), nullableString(result.TargetPath),
		nullableString(result.BeforeHash), nullableString(result.AfterHash),
		nullableString(result.ExpectedHash), nullableString(result.BackupPath),
		nullableString(result.ErrorMessage), string(result.RollbackStatus),
		timestamp(now)); err != nil {
		return "", fmt.Errorf("insert apply result: %w", err)
	}
	return result.ID, nil
}

// ResultsForRun returns a run's per-item results in creation order.
func (s *Store) ResultsForRun(ctx context.Context, runID string) ([]*ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT result_id, run_id, patch_item_id, status, strategy, target_path,
            before_hash, after_hash, expected_hash, backup_path, error_message, rollback_status, created_at
        FROM apply_results WHERE run_id = ?
        ORDER BY created_at, result_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query apply results: %w", err)
	}
	defer rows.Close()

	var records []*ResultRecord
	for rows.Next() {
		record, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan apply result: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdateResultRollback records the rollback outcome for one result row.
func (s *Store) UpdateResultRollback(ctx context.Context, resultID string, status RollbackStatus) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE apply_results SET rollback_status = ? WHERE result_id = ?",
		string(status), resultID)
	if err != nil {
		return fmt.Errorf("update rollback status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rollback rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: result %s", ErrNotFound, resultID)
	}
	return nil
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var record RunRecord
	var status, startedAt string
	var completedAt sql.NullString
	var dryRun, force int
	if err := row.Scan(&record.ID, &record.PlanID, &status, &dryRun, &force, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	record.Status = RunStatus(status)
	record.DryRun = dryRun != 0
	record.Force = force != 0
	var err error
	if record.StartedAt, err = parseTimeString(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if completedAt.Valid {
		completed, err := parseTimeString(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		record.CompletedAt = &completed
	}
	return &record, nil
}

func scanResult(row rowScanner) (*ResultRecord, error) {
	var record ResultRecord
	var status, rollback, createdAt string
	var strategy, targetPath, beforeHash, afterHash, expectedHash, backupPath, errorMessage sql.NullString
	if err := row.Scan(&record.ID, &record.RunID, &record.PatchItemID, &status,
		&strategy, &targetPath, &beforeHash, &afterHash, &expectedHash,
		&backupPath, &errorMessage, &rollback, &createdAt); err != nil {
		return nil, err
	}
	record.Status = ResultStatus(status)
	record.Strategy = strategy.String
	record.TargetPath = targetPath.String
	record.BeforeHash = beforeHash.String
	record.AfterHash = afterHash.String
	record.ExpectedHash = expectedHash.String
	record.BackupPath = backupPath.String
	record.ErrorMessage = errorMessage.String
	record.RollbackStatus = RollbackStatus(rollback)
	var err error
	if record.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &record, nil
}
