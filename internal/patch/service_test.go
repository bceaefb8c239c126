package patch_test

import (
	"context"
	"errors"
	"testing"

	"lingotool/internal/catalog"
	"lingotool/internal/lang"
	"lingotool/internal/logging"
	"lingotool/internal/patch"
	"lingotool/internal/quality"
	"lingotool/internal/testsupport"
)

func newService(t *testing.T) (*patch.Service, *catalog.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	service := patch.NewService(store, quality.NewGate(cfg), logging.NewNop())
	containerID := testsupport.NewContainer(t, store, "/tmp/example.jar", "examplemod")
	return service, store, containerID
}

func TestGeneratePatchItemSetsAnchor(t *testing.T) {
	service, store, containerID := newService(t)
	ctx := context.Background()

	upstream := testsupport.MustStoreBlob(t, store, lang.Entries{"item.sword": "Sword"})
	if _, err := store.UpsertLanguageFile(ctx, containerID, "en_us", "examplemod",
		"assets/examplemod/lang/en_us.json", upstream, 1); err != nil {
		t.Fatalf("UpsertLanguageFile failed: %v", err)
	}

	item, err := service.GeneratePatchItem(ctx, containerID, "en-US", "examplemod",
		lang.Entries{"item.sword": "Blade"}, patch.PolicyMerge)
	if err != nil {
		t.Fatalf("GeneratePatchItem failed: %v", err)
	}
	if item.Locale != "en_us" {
		t.Fatalf("locale not normalized: %q", item.Locale)
	}
	if item.UpstreamAnchorBlob != upstream {
		t.Fatalf("expected anchor %s, got %s", upstream, item.UpstreamAnchorBlob)
	}

	// A target with no existing language file carries no anchor.
	fresh, err := service.GeneratePatchItem(ctx, containerID, "fr_fr", "examplemod",
		lang.Entries{"item.sword": "Épée"}, patch.PolicyCreateIfMissing)
	if err != nil {
		t.Fatalf("GeneratePatchItem failed: %v", err)
	}
	if fresh.UpstreamAnchorBlob != "" {
		t.Fatalf("unexpected anchor %s", fresh.UpstreamAnchorBlob)
	}
}

func TestGenerateDiffPatch(t *testing.T) {
	service, _, containerID := newService(t)
	ctx := context.Background()

	source := lang.Entries{"a": "1", "b": "2"}
	target := lang.Entries{"a": "1", "b": "changed", "c": "3"}

	item, err := service.GenerateDiffPatch(ctx, containerID, "de_de", source, target, patch.PolicyMerge)
	if err != nil {
		t.Fatalf("GenerateDiffPatch failed: %v", err)
	}
	if len(item.Content) != 2 || item.Content["b"] != "changed" || item.Content["c"] != "3" {
		t.Fatalf("expected changed keys only, got %#v", item.Content)
	}

	full, err := service.GenerateDiffPatch(ctx, containerID, "de_de", source, target, patch.PolicyReplace)
	if err != nil {
		t.Fatalf("GenerateDiffPatch replace failed: %v", err)
	}
	if len(full.Content) != 3 {
		t.Fatalf("replace must carry full content, got %#v", full.Content)
	}

	empty, err := service.GenerateDiffPatch(ctx, containerID, "de_de", source, source.Clone(), patch.PolicyMerge)
	if err != nil {
		t.Fatalf("GenerateDiffPatch empty failed: %v", err)
	}
	if empty != nil {
		t.Fatalf("identical entries must yield no item, got %#v", empty)
	}
}

func TestAddItemStoresContentBlob(t *testing.T) {
	service, store, containerID := newService(t)
	ctx := context.Background()

	set, err := service.CreatePatchSet(ctx, "update", "", "1.0")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}

	content := lang.Entries{"item.sword": "Schwert"}
	item, err := service.GeneratePatchItem(ctx, containerID, "de_de", "examplemod", content, patch.PolicyOverlay)
	if err != nil {
		t.Fatalf("GeneratePatchItem failed: %v", err)
	}
	if _, err := service.AddItemToSet(ctx, set.ID, item); err != nil {
		t.Fatalf("AddItemToSet failed: %v", err)
	}
	if item.ExpectedBlobHash != lang.HashEntries(content) {
		t.Fatalf("expected hash of content, got %s", item.ExpectedBlobHash)
	}
	if _, err := store.GetBlob(ctx, item.ExpectedBlobHash); err != nil {
		t.Fatalf("content blob not stored: %v", err)
	}

	// Same target twice in one set is a conflict.
	again, err := service.GeneratePatchItem(ctx, containerID, "de_de", "examplemod",
		lang.Entries{"item.shield": "Schild"}, patch.PolicyOverlay)
	if err != nil {
		t.Fatalf("GeneratePatchItem failed: %v", err)
	}
	if _, err := service.AddItemToSet(ctx, set.ID, again); !errors.Is(err, patch.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPublishBlockedByQualityGate(t *testing.T) {
	service, store, containerID := newService(t)
	ctx := context.Background()

	upstream := testsupport.MustStoreBlob(t, store, lang.Entries{"greeting": "Hello %s!"})
	if _, err := store.UpsertLanguageFile(ctx, containerID, "fr_fr", "examplemod",
		"assets/examplemod/lang/fr_fr.json", upstream, 1); err != nil {
		t.Fatalf("UpsertLanguageFile failed: %v", err)
	}

	set, err := service.CreatePatchSet(ctx, "bad-translation", "", "")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}
	item, err := service.GeneratePatchItem(ctx, containerID, "fr_fr", "examplemod",
		lang.Entries{"greeting": "Bonjour!"}, patch.PolicyMerge)
	if err != nil {
		t.Fatalf("GeneratePatchItem failed: %v", err)
	}
	if _, err := service.AddItemToSet(ctx, set.ID, item); err != nil {
		t.Fatalf("AddItemToSet failed: %v", err)
	}

	report, err := service.PublishPatchSet(ctx, set.ID)
	if !errors.Is(err, patch.ErrQualityGate) {
		t.Fatalf("expected ErrQualityGate, got %v", err)
	}
	if report.Published {
		t.Fatal("report must not claim publication")
	}
	failures := report.Quality.Failures["greeting"]
	if len(failures) == 0 || failures[0].Validator != "placeholder_consistency" {
		t.Fatalf("expected placeholder failure, got %#v", failures)
	}

	// Status unchanged, failing results persisted for audit.
	record, err := store.GetPatchSet(ctx, set.ID)
	if err != nil {
		t.Fatalf("GetPatchSet failed: %v", err)
	}
	if record.Status != catalog.PatchDraft {
		t.Fatalf("failed publish must leave draft, got %s", record.Status)
	}
	checks, err := store.QualityChecksForSet(ctx, set.ID)
	if err != nil {
		t.Fatalf("QualityChecksForSet failed: %v", err)
	}
	if len(checks) == 0 {
		t.Fatal("expected persisted quality checks")
	}
}

func TestPublishHappyPath(t *testing.T) {
	service, store, containerID := newService(t)
	ctx := context.Background()

	set, err := service.CreatePatchSet(ctx, "good-translation", "clean strings", "1.0")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}
	item, err := service.GeneratePatchItem(ctx, containerID, "de_de", "examplemod",
		lang.Entries{"item.sword": "Schwert"}, patch.PolicyOverlay)
	if err != nil {
		t.Fatalf("GeneratePatchItem failed: %v", err)
	}
	if _, err := service.AddItemToSet(ctx, set.ID, item); err != nil {
		t.Fatalf("AddItemToSet failed: %v", err)
	}

	report, err := service.PublishPatchSet(ctx, set.ID)
	if err != nil {
		t.Fatalf("PublishPatchSet failed: %v", err)
	}
	if !report.Published || report.Signature == "" {
		t.Fatalf("unexpected report: %#v", report)
	}

	record, err := store.GetPatchSet(ctx, set.ID)
	if err != nil {
		t.Fatalf("GetPatchSet failed: %v", err)
	}
	if record.Status != catalog.PatchPublished || record.Signature != report.Signature {
		t.Fatalf("unexpected record: %#v", record)
	}

	// Publishing twice is a conflict.
	if _, err := service.PublishPatchSet(ctx, set.ID); !errors.Is(err, patch.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPublishRejectsEmptySet(t *testing.T) {
	service, _, _ := newService(t)
	ctx := context.Background()

	set, err := service.CreatePatchSet(ctx, "empty", "", "")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}
	if _, err := service.PublishPatchSet(ctx, set.ID); !errors.Is(err, patch.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	service, _, containerID := newService(t)
	ctx := context.Background()

	set, err := service.CreatePatchSet(ctx, "portable", "round trip", "2.0")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}
	item, err := service.GeneratePatchItem(ctx, containerID, "de_de", "examplemod",
		lang.Entries{"item.sword": "Schwert"}, patch.PolicyOverlay)
	if err != nil {
		t.Fatalf("GeneratePatchItem failed: %v", err)
	}
	if _, err := service.AddItemToSet(ctx, set.ID, item); err != nil {
		t.Fatalf("AddItemToSet failed: %v", err)
	}
	if _, err := service.PublishPatchSet(ctx, set.ID); err != nil {
		t.Fatalf("PublishPatchSet failed: %v", err)
	}

	data, err := service.ExportManifestJSON(ctx, set.ID)
	if err != nil {
		t.Fatalf("ExportManifestJSON failed: %v", err)
	}
	manifest, err := patch.ParseManifest(data)
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if manifest.Signature == "" || len(manifest.Items) != 1 {
		t.Fatalf("unexpected manifest: %#v", manifest)
	}

	imported, err := service.ImportPatchSet(ctx, manifest)
	if err != nil {
		t.Fatalf("ImportPatchSet failed: %v", err)
	}
	if imported.Status != catalog.PatchPublished || imported.Signature != manifest.Signature {
		t.Fatalf("unexpected imported set: %#v", imported)
	}

	items, err := service.Items(ctx, imported.ID)
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 1 || items[0].Content["item.sword"] != "Schwert" {
		t.Fatalf("unexpected imported items: %#v", items)
	}
}

func TestImportRejectsTamperedManifest(t *testing.T) {
	service, _, containerID := newService(t)
	ctx := context.Background()

	set, err := service.CreatePatchSet(ctx, "tampered", "", "")
	if err != nil {
		t.Fatalf("CreatePatchSet failed: %v", err)
	}
	item, err := service.GeneratePatchItem(ctx, containerID, "de_de", "examplemod",
		lang.Entries{"item.sword": "Schwert"}, patch.PolicyOverlay)
	if err != nil {
		t.Fatalf("GeneratePatchItem failed: %v", err)
	}
	if _, err := service.AddItemToSet(ctx, set.ID, item); err != nil {
		t.Fatalf("AddItemToSet failed: %v", err)
	}
	if _, err := service.PublishPatchSet(ctx, set.ID); err != nil {
		t.Fatalf("PublishPatchSet failed: %v", err)
	}

	manifest, err := service.ExportManifest(ctx, set.ID)
	if err != nil {
		t.Fatalf("ExportManifest failed: %v", err)
	}
	manifest.Items[0].Content["item.sword"] = "Tampered"
	manifest.Items[0].ExpectedBlobHash = ""

	if _, err := service.ImportPatchSet(ctx, manifest); !errors.Is(err, patch.ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}
