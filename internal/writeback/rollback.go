package writeback

import (
	"context"
	"fmt"

	"lingotool/internal/catalog"
	"lingotool/internal/logging"
	"lingotool/internal/patch"
)

// RollbackError attributes one rollback failure to its item.
type RollbackError struct {
	PatchItemID string
	TargetPath  string
	Err         error
}

// RollbackOutcome summarizes one rollback attempt.
type RollbackOutcome struct {
	RunID      string
	Success    bool
	RolledBack int
	Errors     []RollbackError
}

// RollbackRun undoes every successfully applied item of a run using the
// recorded strategy and backup. Backups are never re-derived: a success
// result whose strategy needs a backup but has none recorded is a hard
// failure, reported and not retried.
func (e *Executor) RollbackRun(ctx context.Context, runID string) (*RollbackOutcome, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.DryRun {
		return nil, patch.Wrap(patch.ErrValidation, "writeback", "rollback",
			"dry runs mutate nothing, there is nothing to roll back", nil)
	}
	results, err := e.store.ResultsForRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	outcome := &RollbackOutcome{RunID: runID, Success: true}
	for _, result := range results {
		if result.Status != catalog.ResultSuccess {
			continue
		}
		strategy, ok := e.strategies[result.Strategy]
		if !ok {
			outcome.Success = false
			outcome.Errors = append(outcome.Errors, RollbackError{
				PatchItemID: result.PatchItemID,
				TargetPath:  result.TargetPath,
				Err:         fmt.Errorf("unknown strategy %q", result.Strategy),
			})
			e.markRollback(ctx, result.ID, catalog.RollbackFailed)
			continue
		}
		if result.Strategy == StrategyArchive && result.BackupPath == "" {
			outcome.Success = false
			outcome.Errors = append(outcome.Errors, RollbackError{
				PatchItemID: result.PatchItemID,
				TargetPath:  result.TargetPath,
				Err:         patch.Wrap(patch.ErrIntegrity, "writeback", "rollback", "no backup recorded", nil),
			})
			e.markRollback(ctx, result.ID, catalog.RollbackFailed)
			continue
		}

		release, err := e.locks.acquire(ctx, result.TargetPath)
		if err == nil {
			err = strategy.Rollback(result.TargetPath, result.BackupPath)
			release()
		}
		if err != nil {
			outcome.Success = false
			outcome.Errors = append(outcome.Errors, RollbackError{
				PatchItemID: result.PatchItemID,
				TargetPath:  result.TargetPath,
				Err:         err,
			})
			e.markRollback(ctx, result.ID, catalog.RollbackFailed)
			continue
		}
		outcome.RolledBack++
		e.markRollback(ctx, result.ID, catalog.RollbackSuccess)
		e.logger.Info("item rolled back",
			logging.String(logging.FieldPatchItemID, result.PatchItemID),
			logging.String(logging.FieldTarget, result.TargetPath))
	}

	if outcome.Success {
		if err := e.store.CompleteRun(ctx, runID, catalog.RunRolledBack); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

func (e *Executor) markRollback(ctx context.Context, resultID string, status catalog.RollbackStatus) {
	if err := e.store.UpdateResultRollback(ctx, resultID, status); err != nil {
		e.logger.Error("record rollback status", logging.Error(err))
	}
}
