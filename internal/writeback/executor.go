package writeback

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"lingotool/internal/catalog"
	"lingotool/internal/config"
	"lingotool/internal/lang"
	"lingotool/internal/logging"
	"lingotool/internal/patch"
)

// Executor turns published patch sets into plans and drives their
// application, auditing every item as an apply result.
type Executor struct {
	store   *catalog.Store
	patches *patch.Service
	cfg     *config.Config
	logger  *slog.Logger
	locks   *pathLocks

	overlay    *OverlayStrategy
	archive    *ArchiveStrategy
	directory  DirectoryStrategy
	strategies map[string]Strategy
}

// NewExecutor wires the executor against the catalog and patch service.
func NewExecutor(store *catalog.Store, patches *patch.Service, cfg *config.Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Executor{
		store:   store,
		patches: patches,
		cfg:     cfg,
		logger:  logger.With(logging.String(logging.FieldComponent, "writeback")),
		locks:   newPathLocks(cfg.Paths.BackupDir),
		overlay: &OverlayStrategy{
			Root:       cfg.Paths.OverlayDir,
			PackName:   cfg.Writeback.PackName,
			PackFormat: cfg.Writeback.PackFormat,
		},
		archive: &ArchiveStrategy{
			BackupDir:        cfg.Paths.BackupDir,
			VerifyAfterWrite: cfg.Writeback.VerifyAfterWrite,
		},
		directory: DirectoryStrategy{},
	}
	e.strategies = map[string]Strategy{
		e.overlay.Name():   e.overlay,
		e.archive.Name():   e.archive,
		e.directory.Name(): e.directory,
	}
	return e
}

// CreatePlan records a pending plan for a published patch set.
func (e *Executor) CreatePlan(ctx context.Context, patchSetID string) (string, error) {
	set, err := e.store.GetPatchSet(ctx, patchSetID)
	if err != nil {
		return "", err
	}
	if set.Status != catalog.PatchPublished {
		return "", patch.Wrap(patch.ErrConflict, "writeback", "create plan",
			fmt.Sprintf("set %s is %s, only published sets plan", patchSetID, set.Status), nil)
	}
	planID, err := e.store.CreatePlan(ctx, patchSetID)
	if err != nil {
		return "", err
	}
	e.logger.Info("plan created",
		logging.String(logging.FieldPlanID, planID),
		logging.String(logging.FieldPatchSetID, patchSetID))
	return planID, nil
}

// RunOutcome is the aggregate of one plan execution.
type RunOutcome struct {
	RunID   string
	PlanID  string
	Success bool
	Results []*Result
}

// ExecutePlan applies a plan's items one at a time. A dry run performs
// precondition checks without mutating anything. With force set,
// precondition mismatches are applied anyway instead of marked conflict.
// Cancellation stops scheduling further items; already-recorded results
// stand and the remaining items are marked skipped.
func (e *Executor) ExecutePlan(ctx context.Context, planID string, dryRun, force bool) (*RunOutcome, error) {
	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	items, err := e.patches.Items(ctx, plan.PatchSetID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, patch.Wrap(patch.ErrValidation, "writeback", "execute plan", "plan has no items", nil)
	}

	if !dryRun {
		if err := e.store.UpdatePlanStatus(ctx, planID, catalog.PlanExecuting); err != nil {
			return nil, err
		}
	}
	runID, err := e.store.CreateRun(ctx, planID, dryRun, force)
	if err != nil {
		return nil, err
	}
	e.logger.Info("run started",
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldPlanID, planID),
		logging.Bool("dry_run", dryRun),
		logging.Bool("force", force),
		logging.Int("items", len(items)))

	outcome := &RunOutcome{RunID: runID, PlanID: planID, Success: true}
	cancelled := false
	for _, item := range items {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			outcome.Results = append(outcome.Results, e.recordResult(ctx, runID, &Result{
				PatchItemID:  item.ID,
				Status:       catalog.ResultSkipped,
				ExpectedHash: item.ExpectedBlobHash,
				ErrorMessage: "run cancelled",
			}))
			continue
		}
		result := e.applyItem(ctx, item, dryRun, force)
		if result.Status == catalog.ResultFailed || result.Status == catalog.ResultConflict {
			outcome.Success = false
		}
		outcome.Results = append(outcome.Results, e.recordResult(ctx, runID, result))
	}
	if cancelled {
		outcome.Success = false
	}

	runStatus := catalog.RunSuccess
	if !outcome.Success {
		runStatus = catalog.RunFailed
	}
	if err := e.store.CompleteRun(ctx, runID, runStatus); err != nil {
		return outcome, err
	}

	if !dryRun {
		planStatus := catalog.PlanCompleted
		if !outcome.Success {
			planStatus = catalog.PlanFailed
		}
		if err := e.store.UpdatePlanStatus(ctx, planID, planStatus); err != nil {
			return outcome, err
		}
		if outcome.Success {
			if err := e.patches.MarkApplied(ctx, plan.PatchSetID); err != nil &&
				!errors.Is(err, catalog.ErrIllegalTransition) {
				return outcome, err
			}
		}
	}

	e.logger.Info("run finished",
		logging.String(logging.FieldRunID, runID),
		logging.String("status", string(runStatus)))
	return outcome, nil
}

func (e *Executor) applyItem(ctx context.Context, item *patch.Item, dryRun, force bool) *Result {
	strategy, artifactPath, err := e.selectStrategy(ctx, item)
	if err != nil {
		return failedResult(item, "", "", err)
	}

	lockPath := artifactPath
	if strategy.Name() == StrategyOverlay {
		lockPath = e.overlay.targetPath(item)
	}
	release, err := e.locks.acquire(ctx, lockPath)
	if err != nil {
		return failedResult(item, strategy.Name(), lockPath, err)
	}
	defer release()

	if !force {
		currentHash, err := e.currentContentHash(ctx, item, artifactPath)
		if err != nil {
			return failedResult(item, strategy.Name(), artifactPath, err)
		}
		if ok, conflict := item.PreconditionOK(currentHash); !ok {
			return &Result{
				PatchItemID:  item.ID,
				Status:       catalog.ResultConflict,
				Strategy:     strategy.Name(),
				TargetPath:   artifactPath,
				BeforeHash:   currentHash,
				ExpectedHash: item.ExpectedBlobHash,
				ErrorMessage: conflict,
			}
		}
	}

	if dryRun {
		return &Result{
			PatchItemID:  item.ID,
			Status:       catalog.ResultSkipped,
			Strategy:     strategy.Name(),
			TargetPath:   artifactPath,
			ExpectedHash: item.ExpectedBlobHash,
		}
	}

	result := strategy.Apply(&Request{Item: item, ArtifactPath: artifactPath})
	e.logger.Info("item applied",
		logging.String(logging.FieldPatchItemID, item.ID),
		logging.String(logging.FieldStrategy, result.Strategy),
		logging.String(logging.FieldTarget, result.TargetPath),
		logging.String("status", string(result.Status)))
	return result
}

// selectStrategy resolves the physical artifact and picks the strategy:
// overlay policy always overlays; otherwise the artifact's physical type
// decides, with overlay as the safe default when the type is ambiguous.
func (e *Executor) selectStrategy(ctx context.Context, item *patch.Item) (Strategy, string, error) {
	if item.Policy == patch.PolicyOverlay {
		return e.overlay, "", nil
	}
	artifact, err := e.store.ContainerArtifact(ctx, item.TargetContainerID)
	if err != nil {
		return nil, "", err
	}
	switch artifact.Type {
	case catalog.ArtifactArchive:
		return e.archive, artifact.Path, nil
	case catalog.ArtifactDirectory:
		return e.directory, artifact.Path, nil
	default:
		return e.overlay, artifact.Path, nil
	}
}

// currentContentHash resolves the live content hash of the item's target
// inside its artifact. An absent member or file yields the empty hash.
func (e *Executor) currentContentHash(ctx context.Context, item *patch.Item, artifactPath string) (string, error) {
	if artifactPath == "" {
		// Overlay-only target: drift is judged against the original
		// artifact when one is known.
		artifact, err := e.store.ContainerArtifact(ctx, item.TargetContainerID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return "", nil
			}
			return "", err
		}
		artifactPath = artifact.Path
		if artifact.Type == catalog.ArtifactArchive {
			return archiveMemberHash(artifactPath, item.MemberPath())
		}
		return fileContentHash(joinArtifactMember(artifactPath, item.MemberPath()))
	}

	if info, err := os.Stat(artifactPath); err == nil && info.IsDir() {
		return fileContentHash(joinArtifactMember(artifactPath, item.MemberPath()))
	}
	return archiveMemberHash(artifactPath, item.MemberPath())
}

func (e *Executor) recordResult(ctx context.Context, runID string, result *Result) *Result {
	record := &catalog.ResultRecord{
		RunID:        runID,
		PatchItemID:  result.PatchItemID,
		Status:       result.Status,
		Strategy:     result.Strategy,
		TargetPath:   result.TargetPath,
		BeforeHash:   result.BeforeHash,
		AfterHash:    result.AfterHash,
		ExpectedHash: result.ExpectedHash,
		BackupPath:   result.BackupPath,
		ErrorMessage: result.ErrorMessage,
	}
	if _, err := e.store.InsertApplyResult(ctx, record); err != nil {
		e.logger.Error("record apply result",
			logging.String(logging.FieldRunID, runID),
			logging.Error(err))
	}
	return result
}

func fileContentHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	entries, err := lang.ParseEntries(data)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	return lang.HashEntries(entries), nil
}

func archiveMemberHash(archivePath, member string) (string, error) {
	reader, err := zip.OpenReader(archivePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer reader.Close()

	for _, f := range reader.File {
		if f.Name != member {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open member %s: %w", member, err)
		}
		data, readErr := io.ReadAll(rc)
		rc.Close()
		if readErr != nil {
			return "", fmt.Errorf("read member %s: %w", member, readErr)
		}
		entries, parseErr := lang.ParseEntries(data)
		if parseErr != nil {
			return "", fmt.Errorf("parse member %s: %w", member, parseErr)
		}
		return lang.HashEntries(entries), nil
	}
	return "", nil
}
