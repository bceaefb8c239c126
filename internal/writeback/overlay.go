package writeback

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"lingotool/internal/catalog"
	"lingotool/internal/hashfs"
	"lingotool/internal/lang"
	"lingotool/internal/patch"
)

// OverlayStrategy writes language files into a standalone overlay package
// instead of touching the original artifact. The package root carries a
// pack.mcmeta descriptor so game loaders accept it as a resource pack.
type OverlayStrategy struct {
	Root       string
	PackName   string
	PackFormat int
}

func (s *OverlayStrategy) Name() string { return StrategyOverlay }

// PackDir returns the overlay package root directory.
func (s *OverlayStrategy) PackDir() string {
	return filepath.Join(s.Root, s.PackName)
}

func (s *OverlayStrategy) targetPath(item *patch.Item) string {
	return filepath.Join(s.PackDir(), filepath.FromSlash(item.MemberPath()))
}

func (s *OverlayStrategy) Apply(req *Request) *Result {
	item := req.Item
	target := s.targetPath(item)

	beforeHash, err := hashfs.HashFile(target)
	if err != nil {
		return failedResult(item, s.Name(), target, err)
	}

	existing, err := readEntriesFile(target)
	if err != nil {
		return failedResult(item, s.Name(), target, err)
	}
	if item.Policy == patch.PolicyCreateIfMissing && existing != nil {
		return &Result{
			PatchItemID:  item.ID,
			Status:       catalog.ResultConflict,
			Strategy:     s.Name(),
			TargetPath:   target,
			BeforeHash:   beforeHash,
			ExpectedHash: item.ExpectedBlobHash,
			ErrorMessage: "overlay file already exists",
		}
	}

	content := desiredEntries(item, existing)
	if err := s.ensurePackMeta(); err != nil {
		return failedResult(item, s.Name(), target, err)
	}
	if err := writeFileAtomic(target, lang.Canonical(content)); err != nil {
		return failedResult(item, s.Name(), target, err)
	}

	afterHash, err := hashfs.HashFile(target)
	if err != nil {
		return failedResult(item, s.Name(), target, err)
	}
	return &Result{
		PatchItemID:  item.ID,
		Status:       catalog.ResultSuccess,
		Strategy:     s.Name(),
		TargetPath:   target,
		BeforeHash:   beforeHash,
		AfterHash:    afterHash,
		ExpectedHash: item.ExpectedBlobHash,
	}
}

// Rollback deletes the generated overlay file and prunes directories it
// left empty. Overlay writes keep no backups; the original artifact was
// never touched.
func (s *OverlayStrategy) Rollback(targetPath, backupPath string) error {
	if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove overlay file: %w", err)
	}
	removeEmptyParents(targetPath, s.Root)
	return nil
}

func (s *OverlayStrategy) ensurePackMeta() error {
	metaPath := filepath.Join(s.PackDir(), "pack.mcmeta")
	if _, err := os.Stat(metaPath); err == nil {
		return nil
	}
	meta := map[string]any{
		"pack": map[string]any{
			"pack_format": s.PackFormat,
			"description": s.PackName,
		},
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pack.mcmeta: %w", err)
	}
	return writeFileAtomic(metaPath, data)
}
