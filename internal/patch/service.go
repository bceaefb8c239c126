package patch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"lingotool/internal/catalog"
	"lingotool/internal/lang"
	"lingotool/internal/logging"
	"lingotool/internal/quality"
)

// Service manages patch sets through their lifecycle: assembling items,
// gating publication on structural and quality validation, and exporting
// manifests.
type Service struct {
	store  *catalog.Store
	gate   *quality.Gate
	logger *slog.Logger
}

// NewService wires a patch service against the catalog store and quality
// gate.
func NewService(store *catalog.Store, gate *quality.Gate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:  store,
		gate:   gate,
		logger: logger.With(logging.String(logging.FieldComponent, "patch")),
	}
}

// CreatePatchSet opens a new draft set.
func (s *Service) CreatePatchSet(ctx context.Context, name, description, version string) (*catalog.PatchSetRecord, error) {
	if name == "" {
		return nil, Wrap(ErrValidation, "patch", "create set", "name is required", nil)
	}
	id, err := s.store.CreatePatchSet(ctx, name, description, version)
	if err != nil {
		return nil, fmt.Errorf("create patch set: %w", err)
	}
	s.logger.Info("patch set created",
		logging.String(logging.FieldPatchSetID, id),
		logging.String("name", name))
	return s.store.GetPatchSet(ctx, id)
}

// GeneratePatchItem builds an item from new entries for a container target.
// When the container already has a language file for (namespace, locale),
// its current content hash becomes the item's upstream anchor.
func (s *Service) GeneratePatchItem(ctx context.Context, containerID, locale, namespace string, entries lang.Entries, policy Policy) (*Item, error) {
	if namespace == "" {
		container, err := s.store.GetContainer(ctx, containerID)
		if err != nil {
			return nil, err
		}
		namespace = container.Namespace
		if namespace == "" {
			namespace = container.ModID
		}
	}

	item := &Item{
		TargetContainerID: containerID,
		Namespace:         namespace,
		Locale:            lang.NormalizeLocale(locale),
		Policy:            policy,
		Content:           entries.Clone(),
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	current, err := s.store.GetLanguageFile(ctx, containerID, item.Locale, namespace)
	switch {
	case err == nil:
		item.UpstreamAnchorBlob = current.ContentHash
	case errors.Is(err, catalog.ErrNotFound):
		// New target, no anchor.
	default:
		return nil, err
	}
	return item, nil
}

// GenerateDiffPatch builds an item carrying only the keys that changed or
// were added between source and target entries. A replace policy carries the
// full target content instead. Returns nil when nothing changed.
func (s *Service) GenerateDiffPatch(ctx context.Context, containerID, locale string, source, target lang.Entries, policy Policy) (*Item, error) {
	content := target.Clone()
	if policy != PolicyReplace {
		content = lang.Entries{}
		for key, value := range target {
			if old, ok := source[key]; !ok || old != value {
				content[key] = value
			}
		}
	}
	if len(content) == 0 {
		return nil, nil
	}
	return s.GeneratePatchItem(ctx, containerID, locale, "", content, policy)
}

// AddItemToSet stores the item's content as a blob, records its hash on the
// item, and persists the item under a draft set. Duplicate targets within
// the set are rejected.
func (s *Service) AddItemToSet(ctx context.Context, setID string, item *Item) (string, error) {
	if err := item.Validate(); err != nil {
		return "", err
	}
	set, err := s.store.GetPatchSet(ctx, setID)
	if err != nil {
		return "", err
	}
	if set.Status != catalog.PatchDraft {
		return "", Wrap(ErrConflict, "patch", "add item",
			fmt.Sprintf("set %s is %s, items can only join drafts", setID, set.Status), nil)
	}

	hash, _, err := s.store.StoreBlob(ctx, item.Content)
	if err != nil {
		return "", fmt.Errorf("store item content: %w", err)
	}
	item.ExpectedBlobHash = hash

	id, err := s.store.InsertPatchItem(ctx, &catalog.PatchItemRecord{
		PatchSetID:         setID,
		TargetContainerID:  item.TargetContainerID,
		Namespace:          item.Namespace,
		Locale:             item.Locale,
		Policy:             string(item.Policy),
		ExpectedBlobHash:   hash,
		ExpectedEntryCount: len(item.Content),
		TargetMemberPath:   item.MemberPath(),
		UpstreamAnchorBlob: item.UpstreamAnchorBlob,
	})
	if err != nil {
		return "", Wrap(ErrConflict, "patch", "add item", "duplicate or invalid target", err)
	}
	item.ID = id
	s.logger.Info("patch item added",
		logging.String(logging.FieldPatchSetID, setID),
		logging.String(logging.FieldPatchItemID, id),
		logging.String(logging.FieldBlobHash, hash))
	return id, nil
}

// ItemError attributes a structural validation failure to one item.
type ItemError struct {
	PatchItemID string
	Err         error
}

// PublishReport is the structured outcome of a publish attempt.
type PublishReport struct {
	PatchSetID string
	Published  bool
	Signature  string
	ItemErrors []ItemError
	Quality    *quality.Report
}

// PublishPatchSet validates every item structurally, runs the quality gate
// with each item's upstream content as the source, and on success moves the
// set to published with a freshly computed signature. Any failure leaves
// the set in draft; failing quality results are persisted either way.
func (s *Service) PublishPatchSet(ctx context.Context, setID string) (*PublishReport, error) {
	set, err := s.store.GetPatchSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	report := &PublishReport{PatchSetID: setID}
	if set.Status != catalog.PatchDraft {
		return report, Wrap(ErrConflict, "patch", "publish",
			fmt.Sprintf("set %s is %s, only drafts publish", setID, set.Status), nil)
	}

	items, err := s.loadItems(ctx, setID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return report, Wrap(ErrValidation, "patch", "publish", "set has no items", nil)
	}

	for _, item := range items {
		if err := item.Validate(); err != nil {
			report.ItemErrors = append(report.ItemErrors, ItemError{PatchItemID: item.ID, Err: err})
			continue
		}
		// A merge has nothing defined to merge into without an anchor.
		if item.Policy == PolicyMerge && item.UpstreamAnchorBlob == "" {
			report.ItemErrors = append(report.ItemErrors, ItemError{
				PatchItemID: item.ID,
				Err:         fmt.Errorf("%w: merge policy requires an upstream anchor", ErrValidation),
			})
		}
	}

	gateReport, err := s.runQualityGate(ctx, setID, items)
	if err != nil {
		return nil, err
	}
	report.Quality = gateReport

	if len(report.ItemErrors) > 0 {
		return report, Wrap(ErrValidation, "patch", "publish",
			fmt.Sprintf("%d items failed structural validation", len(report.ItemErrors)), nil)
	}
	if !gateReport.Passed {
		return report, Wrap(ErrQualityGate, "patch", "publish", gateReport.Summary(), nil)
	}

	report.Signature = Signature(items)
	if err := s.store.UpdatePatchSetStatus(ctx, setID, catalog.PatchPublished, report.Signature); err != nil {
		return report, err
	}
	report.Published = true
	s.logger.Info("patch set published",
		logging.String(logging.FieldPatchSetID, setID),
		logging.String("signature", report.Signature),
		logging.Int("items", len(items)))
	return report, nil
}

// MarkApplied transitions a published set to applied. Called by the
// writeback executor after a fully successful run.
func (s *Service) MarkApplied(ctx context.Context, setID string) error {
	return s.store.UpdatePatchSetStatus(ctx, setID, catalog.PatchApplied, "")
}

// ArchivePatchSet retires a set. Archived is terminal.
func (s *Service) ArchivePatchSet(ctx context.Context, setID string) error {
	if err := s.store.UpdatePatchSetStatus(ctx, setID, catalog.PatchArchived, ""); err != nil {
		return err
	}
	s.logger.Info("patch set archived", logging.String(logging.FieldPatchSetID, setID))
	return nil
}

// ListPatchSets returns sets, optionally filtered by status.
func (s *Service) ListPatchSets(ctx context.Context, status catalog.PatchStatus) ([]*catalog.PatchSetRecord, error) {
	return s.store.ListPatchSets(ctx, status)
}

// Items loads a set's items with their content materialized from blobs.
func (s *Service) Items(ctx context.Context, setID string) ([]*Item, error) {
	return s.loadItems(ctx, setID)
}

func (s *Service) loadItems(ctx context.Context, setID string) ([]*Item, error) {
	records, err := s.store.ItemsForSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	items := make([]*Item, 0, len(records))
	for _, record := range records {
		item := &Item{
			ID:                 record.ID,
			TargetContainerID:  record.TargetContainerID,
			Namespace:          record.Namespace,
			Locale:             record.Locale,
			Policy:             Policy(record.Policy),
			ExpectedBlobHash:   record.ExpectedBlobHash,
			UpstreamAnchorBlob: record.UpstreamAnchorBlob,
		}
		if record.ExpectedBlobHash != "" {
			blob, err := s.store.GetBlob(ctx, record.ExpectedBlobHash)
			if err != nil {
				return nil, Wrap(ErrIntegrity, "patch", "load items",
					fmt.Sprintf("item %s content blob missing", record.ID), err)
			}
			entries, err := blob.Entries()
			if err != nil {
				return nil, Wrap(ErrIntegrity, "patch", "load items",
					fmt.Sprintf("item %s content blob corrupt", record.ID), err)
			}
			item.Content = entries
		}
		items = append(items, item)
	}
	return items, nil
}

// runQualityGate validates each item's content against its upstream blob
// and persists failing results for audit.
func (s *Service) runQualityGate(ctx context.Context, setID string, items []*Item) (*quality.Report, error) {
	combined := &quality.Report{Passed: true, Failures: make(map[string][]quality.Result)}
	var checks []*catalog.QualityCheck

	for _, item := range items {
		sources := lang.Entries{}
		if item.UpstreamAnchorBlob != "" {
			blob, err := s.store.GetBlob(ctx, item.UpstreamAnchorBlob)
			if err == nil {
				if entries, parseErr := blob.Entries(); parseErr == nil {
					sources = entries
				}
			} else if !errors.Is(err, catalog.ErrBlobNotFound) {
				return nil, err
			}
		}

		itemReport := s.gate.ValidateBatch(sources, item.Content)
		combined.EntryCount += itemReport.EntryCount
		combined.ErrorCount += itemReport.ErrorCount
		combined.WarningCount += itemReport.WarningCount
		if !itemReport.Passed {
			combined.Passed = false
		}
		for key, failures := range itemReport.Failures {
			combined.Failures[key] = append(combined.Failures[key], failures...)
			for _, failure := range failures {
				checks = append(checks, &catalog.QualityCheck{
					PatchSetID:  setID,
					EntryKey:    key,
					Validator:   failure.Validator,
					Level:       string(failure.Level),
					Message:     failure.Message,
					DetailsJSON: encodeDetails(failure.Details),
				})
			}
		}
	}

	if err := s.store.InsertQualityChecks(ctx, checks); err != nil {
		return nil, err
	}
	return combined, nil
}

func encodeDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	data, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(data)
}
