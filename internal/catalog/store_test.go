package catalog_test

import (
	"context"
	"errors"
	"testing"

	"lingotool/internal/catalog"
	"lingotool/internal/lang"
	"lingotool/internal/testsupport"
)

func TestStoreBlobDeduplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entries := lang.Entries{"item.sword": "Sword", "item.shield": "Shield"}

	hash, created, err := store.StoreBlob(ctx, entries)
	if err != nil {
		t.Fatalf("StoreBlob failed: %v", err)
	}
	if !created {
		t.Fatal("expected first store to create the blob")
	}

	// Same content in different key order must converge on one row.
	again, created, err := store.StoreBlob(ctx, lang.Entries{"item.shield": "Shield", "item.sword": "Sword"})
	if err != nil {
		t.Fatalf("StoreBlob repeat failed: %v", err)
	}
	if created {
		t.Fatal("expected repeat store to reuse the blob")
	}
	if again != hash {
		t.Fatalf("hash mismatch: %s vs %s", again, hash)
	}

	blob, err := store.GetBlob(ctx, hash)
	if err != nil {
		t.Fatalf("GetBlob failed: %v", err)
	}
	if blob.EntryCount != 2 {
		t.Fatalf("expected 2 entries, got %d", blob.EntryCount)
	}
	parsed, err := blob.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if parsed["item.sword"] != "Sword" {
		t.Fatalf("unexpected entries: %#v", parsed)
	}
}

func TestGetBlobMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.GetBlob(context.Background(), "deadbeef")
	if !errors.Is(err, catalog.ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestBlobReferencesAndGC(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	containerID := testsupport.NewContainer(t, store, "/tmp/example.jar", "examplemod")
	referenced := testsupport.MustStoreBlob(t, store, lang.Entries{"a": "1"})
	orphan := testsupport.MustStoreBlob(t, store, lang.Entries{"b": "2"})

	if _, err := store.UpsertLanguageFile(ctx, containerID, "en_us", "examplemod",
		"assets/examplemod/lang/en_us.json", referenced, 1); err != nil {
		t.Fatalf("UpsertLanguageFile failed: %v", err)
	}

	refs, err := store.BlobReferences(ctx, referenced)
	if err != nil {
		t.Fatalf("BlobReferences failed: %v", err)
	}
	if len(refs) != 1 || refs[0].ContainerID != containerID {
		t.Fatalf("unexpected references: %#v", refs)
	}

	candidates, err := store.GarbageCollect(ctx, true)
	if err != nil {
		t.Fatalf("dry-run GC failed: %v", err)
	}
	if len(candidates) != 1 || candidates[0] != orphan {
		t.Fatalf("expected only the orphan as candidate, got %v", candidates)
	}

	deleted, err := store.GarbageCollect(ctx, false)
	if err != nil {
		t.Fatalf("GC failed: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != orphan {
		t.Fatalf("expected orphan deletion, got %v", deleted)
	}

	if _, err := store.GetBlob(ctx, orphan); !errors.Is(err, catalog.ErrBlobNotFound) {
		t.Fatalf("expected orphan gone, got %v", err)
	}
	if _, err := store.GetBlob(ctx, referenced); err != nil {
		t.Fatalf("referenced blob must survive GC: %v", err)
	}
}

func TestGarbageCollectRefusesDuringRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.MustStoreBlob(t, store, lang.Entries{"x": "1"})

	setID, err := store.CreatePatchSet(ctx, "set", "", "1.0")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}
	planID, err := store.CreatePlan(ctx, setID)
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	runID, err := store.CreateRun(ctx, planID, false, false)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if _, err := store.GarbageCollect(ctx, false); !errors.Is(err, catalog.ErrStoreBusy) {
		t.Fatalf("expected ErrStoreBusy, got %v", err)
	}

	if err := store.CompleteRun(ctx, runID, catalog.RunSuccess); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	if _, err := store.GarbageCollect(ctx, false); err != nil {
		t.Fatalf("GC after run completion failed: %v", err)
	}
}

func TestDiffAndMergeBlobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	hashA := testsupport.MustStoreBlob(t, store, lang.Entries{"k1": "old", "k2": "same"})
	hashB := testsupport.MustStoreBlob(t, store, lang.Entries{"k1": "new", "k2": "same", "k3": "added"})

	diff, err := store.DiffBlobs(ctx, hashA, hashB)
	if err != nil {
		t.Fatalf("DiffBlobs failed: %v", err)
	}
	if len(diff) != 2 {
		t.Fatalf("expected 2 changes, got %d: %#v", len(diff), diff)
	}
	if change := diff["k1"]; change.Old == nil || *change.Old != "old" || change.New == nil || *change.New != "new" {
		t.Fatalf("unexpected k1 change: %#v", change)
	}
	if change := diff["k3"]; change.Old != nil || change.New == nil {
		t.Fatalf("unexpected k3 change: %#v", change)
	}

	merged, err := store.MergeBlobs(ctx, lang.MergeFirstWin, hashA, hashB)
	if err != nil {
		t.Fatalf("MergeBlobs failed: %v", err)
	}
	blob, err := store.GetBlob(ctx, merged)
	if err != nil {
		t.Fatalf("GetBlob merged failed: %v", err)
	}
	entries, err := blob.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if entries["k1"] != "old" || entries["k3"] != "added" {
		t.Fatalf("unexpected merge result: %#v", entries)
	}
}

func TestFindSimilarBlobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	reference := testsupport.MustStoreBlob(t, store, lang.Entries{"a": "1", "b": "2", "c": "3"})
	near := testsupport.MustStoreBlob(t, store, lang.Entries{"a": "x", "b": "y", "c": "z", "d": "w"})
	far := testsupport.MustStoreBlob(t, store, lang.Entries{"q": "1"})

	matches, err := store.FindSimilarBlobs(ctx, reference, 0.5, 10)
	if err != nil {
		t.Fatalf("FindSimilarBlobs failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Blob.Hash != near {
		t.Fatalf("expected %s, got %s", near, matches[0].Blob.Hash)
	}
	if matches[0].Similarity != 0.75 {
		t.Fatalf("expected similarity 0.75, got %f", matches[0].Similarity)
	}

	matches, err = store.FindSimilarBlobs(ctx, reference, 0.0, 10)
	if err != nil {
		t.Fatalf("FindSimilarBlobs failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[1].Blob.Hash != far {
		t.Fatalf("expected weakest match last, got %s", matches[1].Blob.Hash)
	}
}

func TestBlobStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	containerID := testsupport.NewContainer(t, store, "/tmp/example.jar", "examplemod")
	hash := testsupport.MustStoreBlob(t, store, lang.Entries{"a": "1", "b": "2"})

	for _, locale := range []string{"en_us", "de_de", "fr_fr"} {
		if _, err := store.UpsertLanguageFile(ctx, containerID, locale, "examplemod",
			"assets/examplemod/lang/"+locale+".json", hash, 2); err != nil {
			t.Fatalf("UpsertLanguageFile %s failed: %v", locale, err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalBlobs != 1 || stats.TotalEntries != 2 {
		t.Fatalf("unexpected totals: %#v", stats)
	}
	if stats.TotalReferences != 3 {
		t.Fatalf("expected 3 references, got %d", stats.TotalReferences)
	}
	if stats.DedupRatio != 3.0 {
		t.Fatalf("expected dedup ratio 3.0, got %f", stats.DedupRatio)
	}
}

func TestPatchSetLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	id, err := store.CreatePatchSet(ctx, "winter-update", "seasonal strings", "1.2.0")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}

	set, err := store.GetPatchSet(ctx, id)
	if err != nil {
		t.Fatalf("GetPatchSet failed: %v", err)
	}
	if set.Status != catalog.PatchDraft {
		t.Fatalf("expected draft, got %s", set.Status)
	}

	// Draft cannot jump straight to applied.
	err = store.UpdatePatchSetStatus(ctx, id, catalog.PatchApplied, "")
	if !errors.Is(err, catalog.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}

	if err := store.UpdatePatchSetStatus(ctx, id, catalog.PatchPublished, "sig-abc"); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	set, err = store.GetPatchSet(ctx, id)
	if err != nil {
		t.Fatalf("GetPatchSet failed: %v", err)
	}
	if set.Status != catalog.PatchPublished || set.Signature != "sig-abc" {
		t.Fatalf("unexpected published record: %#v", set)
	}

	if err := store.UpdatePatchSetStatus(ctx, id, catalog.PatchApplied, ""); err != nil {
		t.Fatalf("apply transition failed: %v", err)
	}
	if err := store.UpdatePatchSetStatus(ctx, id, catalog.PatchArchived, ""); err != nil {
		t.Fatalf("archive transition failed: %v", err)
	}
	err = store.UpdatePatchSetStatus(ctx, id, catalog.PatchDraft, "")
	if !errors.Is(err, catalog.ErrIllegalTransition) {
		t.Fatalf("archived must be terminal, got %v", err)
	}
}

func TestPatchItemsUniqueTarget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	setID, err := store.CreatePatchSet(ctx, "set", "", "")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}

	item := &catalog.PatchItemRecord{
		PatchSetID:         setID,
		TargetContainerID:  "container-1",
		Namespace:          "examplemod",
		Locale:             "de_de",
		Policy:             "replace",
		ExpectedBlobHash:   "hash-1",
		ExpectedEntryCount: 3,
		TargetMemberPath:   "assets/examplemod/lang/de_de.json",
	}
	if _, err := store.InsertPatchItem(ctx, item); err != nil {
		t.Fatalf("InsertPatchItem failed: %v", err)
	}

	duplicate := &catalog.PatchItemRecord{
		PatchSetID:        setID,
		TargetContainerID: "container-1",
		Namespace:         "examplemod",
		Locale:            "de_de",
		Policy:            "merge",
	}
	if _, err := store.InsertPatchItem(ctx, duplicate); err == nil {
		t.Fatal("expected duplicate target rejection")
	}

	items, err := store.ItemsForSet(ctx, setID)
	if err != nil {
		t.Fatalf("ItemsForSet failed: %v", err)
	}
	if len(items) != 1 || items[0].ExpectedBlobHash != "hash-1" {
		t.Fatalf("unexpected items: %#v", items)
	}
}

func TestApplyRunAudit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	setID, err := store.CreatePatchSet(ctx, "set", "", "")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}
	planID, err := store.CreatePlan(ctx, setID)
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	runID, err := store.CreateRun(ctx, planID, false, true)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	resultID, err := store.InsertApplyResult(ctx, &catalog.ResultRecord{
		RunID:       runID,
		PatchItemID: "item-1",
		Status:      catalog.ResultSuccess,
		Strategy:    "overlay",
		TargetPath:  "/tmp/overlay/pack/assets/examplemod/lang/de_de.json",
		AfterHash:   "hash-after",
		BackupPath:  "/tmp/backups/x.bak",
	})
	if err != nil {
		t.Fatalf("InsertApplyResult failed: %v", err)
	}
	if err := store.CompleteRun(ctx, runID, catalog.RunSuccess); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != catalog.RunSuccess || !run.Force || run.DryRun {
		t.Fatalf("unexpected run record: %#v", run)
	}
	if run.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	results, err := store.ResultsForRun(ctx, runID)
	if err != nil {
		t.Fatalf("ResultsForRun failed: %v", err)
	}
	if len(results) != 1 || results[0].RollbackStatus != catalog.RollbackNotNeeded {
		t.Fatalf("unexpected results: %#v", results)
	}

	if err := store.UpdateResultRollback(ctx, resultID, catalog.RollbackSuccess); err != nil {
		t.Fatalf("UpdateResultRollback failed: %v", err)
	}
	results, err = store.ResultsForRun(ctx, runID)
	if err != nil {
		t.Fatalf("ResultsForRun failed: %v", err)
	}
	if results[0].RollbackStatus != catalog.RollbackSuccess {
		t.Fatalf("rollback status not recorded: %#v", results[0])
	}
}

func TestPlanLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	setID, err := store.CreatePatchSet(ctx, "set", "", "")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}
	planID, err := store.CreatePlan(ctx, setID)
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}

	if err := store.UpdatePlanStatus(ctx, planID, catalog.PlanCompleted); !errors.Is(err, catalog.ErrIllegalTransition) {
		t.Fatalf("pending plan must not complete directly, got %v", err)
	}
	if err := store.UpdatePlanStatus(ctx, planID, catalog.PlanExecuting); err != nil {
		t.Fatalf("pending -> executing failed: %v", err)
	}
	if err := store.UpdatePlanStatus(ctx, planID, catalog.PlanCompleted); err != nil {
		t.Fatalf("executing -> completed failed: %v", err)
	}

	// A finished plan stays finished; re-execution needs a fresh plan.
	if err := store.UpdatePlanStatus(ctx, planID, catalog.PlanExecuting); !errors.Is(err, catalog.ErrIllegalTransition) {
		t.Fatalf("completed plan must not re-execute, got %v", err)
	}
	plan, err := store.GetPlan(ctx, planID)
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if plan.Status != catalog.PlanCompleted {
		t.Fatalf("refused transition must leave status intact, got %s", plan.Status)
	}

	if err := store.UpdatePlanStatus(ctx, "missing", catalog.PlanExecuting); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("unknown plan must return ErrNotFound, got %v", err)
	}
}

func TestQualityChecksPersist(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	setID, err := store.CreatePatchSet(ctx, "set", "", "")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}

	checks := []*catalog.QualityCheck{
		{
			PatchSetID: setID,
			EntryKey:   "item.sword.desc",
			Validator:  "placeholder_consistency",
			Level:      "error",
			Message:    "placeholder count mismatch",
		},
		{
			PatchSetID: setID,
			EntryKey:   "item.shield.desc",
			Validator:  "length_ratio",
			Level:      "warning",
			Message:    "translation much longer than source",
		},
	}
	if err := store.InsertQualityChecks(ctx, checks); err != nil {
		t.Fatalf("InsertQualityChecks failed: %v", err)
	}

	stored, err := store.QualityChecksForSet(ctx, setID)
	if err != nil {
		t.Fatalf("QualityChecksForSet failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(stored))
	}
}
