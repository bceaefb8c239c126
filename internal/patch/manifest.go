package patch

import (
	"context"
	"encoding/json"
	"fmt"

	"lingotool/internal/catalog"
	"lingotool/internal/lang"
)

// Manifest is the portable JSON form of a patch set.
type Manifest struct {
	PatchSetID  string         `json:"patch_set_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Version     string         `json:"version,omitempty"`
	Status      string         `json:"status"`
	Signature   string         `json:"signature,omitempty"`
	Items       []ManifestItem `json:"items"`
}

// ManifestItem carries one patch item with its content inline.
type ManifestItem struct {
	PatchItemID        string            `json:"patch_item_id"`
	TargetContainerID  string            `json:"target_container_id"`
	Namespace          string            `json:"namespace"`
	Locale             string            `json:"locale"`
	Policy             string            `json:"policy"`
	Content            map[string]string `json:"content"`
	ExpectedBlobHash   string            `json:"expected_blob_hash,omitempty"`
	UpstreamAnchorBlob string            `json:"upstream_anchor_blob,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// ExportManifest serializes a patch set with item content materialized from
// the blob store.
func (s *Service) ExportManifest(ctx context.Context, setID string) (*Manifest, error) {
	set, err := s.store.GetPatchSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	items, err := s.loadItems(ctx, setID)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		PatchSetID:  set.ID,
		Name:        set.Name,
		Description: set.Description,
		Version:     set.Version,
		Status:      string(set.Status),
		Signature:   set.Signature,
		Items:       make([]ManifestItem, 0, len(items)),
	}
	for _, item := range items {
		manifest.Items = append(manifest.Items, ManifestItem{
			PatchItemID:        item.ID,
			TargetContainerID:  item.TargetContainerID,
			Namespace:          item.Namespace,
			Locale:             item.Locale,
			Policy:             string(item.Policy),
			Content:            item.Content,
			ExpectedBlobHash:   item.ExpectedBlobHash,
			UpstreamAnchorBlob: item.UpstreamAnchorBlob,
		})
	}
	return manifest, nil
}

// ExportManifestJSON renders the manifest as indented JSON.
func (s *Service) ExportManifestJSON(ctx context.Context, setID string) ([]byte, error) {
	manifest, err := s.ExportManifest(ctx, setID)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(manifest, "", "  ")
}

// ImportPatchSet recreates a patch set from a manifest. Item content is
// rehashed on the way in; a published manifest whose recomputed signature
// does not match its recorded one is rejected before anything persists.
func (s *Service) ImportPatchSet(ctx context.Context, manifest *Manifest) (*catalog.PatchSetRecord, error) {
	if manifest == nil || manifest.Name == "" {
		return nil, Wrap(ErrValidation, "patch", "import", "manifest has no name", nil)
	}

	items := make([]*Item, 0, len(manifest.Items))
	for _, raw := range manifest.Items {
		item := &Item{
			ID:                 raw.PatchItemID,
			TargetContainerID:  raw.TargetContainerID,
			Namespace:          raw.Namespace,
			Locale:             raw.Locale,
			Policy:             Policy(raw.Policy),
			Content:            lang.Entries(raw.Content),
			UpstreamAnchorBlob: raw.UpstreamAnchorBlob,
		}
		if err := item.Validate(); err != nil {
			return nil, err
		}
		item.ExpectedBlobHash = lang.HashEntries(item.Content)
		if raw.ExpectedBlobHash != "" && raw.ExpectedBlobHash != item.ExpectedBlobHash {
			return nil, Wrap(ErrIntegrity, "patch", "import",
				fmt.Sprintf("item %s content does not match its recorded hash", raw.PatchItemID), nil)
		}
		items = append(items, item)
	}

	status, ok := catalog.ParsePatchStatus(manifest.Status)
	if !ok {
		status = catalog.PatchDraft
	}
	if status != catalog.PatchDraft && manifest.Signature != "" {
		if recomputed := Signature(items); recomputed != manifest.Signature {
			return nil, Wrap(ErrIntegrity, "patch", "import",
				"manifest signature does not match recomputed signature", nil)
		}
	}

	setID, err := s.store.CreatePatchSet(ctx, manifest.Name, manifest.Description, manifest.Version)
	if err != nil {
		return nil, fmt.Errorf("import patch set: %w", err)
	}
	for _, item := range items {
		hash, _, err := s.store.StoreBlob(ctx, item.Content)
		if err != nil {
			return nil, fmt.Errorf("store imported content: %w", err)
		}
		// Fresh item IDs: a manifest may be re-imported into the same
		// catalog it was exported from.
		if _, err := s.store.InsertPatchItem(ctx, &catalog.PatchItemRecord{
			PatchSetID:         setID,
			TargetContainerID:  item.TargetContainerID,
			Namespace:          item.Namespace,
			Locale:             item.Locale,
			Policy:             string(item.Policy),
			ExpectedBlobHash:   hash,
			ExpectedEntryCount: len(item.Content),
			TargetMemberPath:   item.MemberPath(),
			UpstreamAnchorBlob: item.UpstreamAnchorBlob,
		}); err != nil {
			return nil, Wrap(ErrConflict, "patch", "import", "duplicate target in manifest", err)
		}
	}

	if status == catalog.PatchPublished {
		if err := s.store.UpdatePatchSetStatus(ctx, setID, catalog.PatchPublished, manifest.Signature); err != nil {
			return nil, err
		}
	}
	return s.store.GetPatchSet(ctx, setID)
}

// ParseManifest decodes manifest JSON.
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, Wrap(ErrValidation, "patch", "parse manifest", "malformed JSON", err)
	}
	return &manifest, nil
}
