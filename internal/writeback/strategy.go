package writeback

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"lingotool/internal/catalog"
	"lingotool/internal/lang"
	"lingotool/internal/patch"
)

const (
	StrategyOverlay   = "overlay"
	StrategyArchive   = "archive_mutate"
	StrategyDirectory = "directory_write"
)

// Request carries one patch item and the physical artifact it targets.
type Request struct {
	Item *patch.Item
	// ArtifactPath is the archive file or directory root of the target
	// container. Empty for pure overlay writes.
	ArtifactPath string
}

// Result is the structured outcome of applying one item.
type Result struct {
	PatchItemID  string
	Status       catalog.ResultStatus
	Strategy     string
	TargetPath   string
	BeforeHash   string
	AfterHash    string
	ExpectedHash string
	BackupPath   string
	ErrorMessage string
}

// Success reports whether the apply landed.
func (r *Result) Success() bool {
	return r.Status == catalog.ResultSuccess
}

// Strategy writes one patch item to its physical target and can undo a
// previously recorded apply using only the audit record's fields.
type Strategy interface {
	Name() string
	Apply(req *Request) *Result
	Rollback(targetPath, backupPath string) error
}

func failedResult(item *patch.Item, strategy, targetPath string, err error) *Result {
	return &Result{
		PatchItemID:  item.ID,
		Status:       catalog.ResultFailed,
		Strategy:     strategy,
		TargetPath:   targetPath,
		ExpectedHash: item.ExpectedBlobHash,
		ErrorMessage: err.Error(),
	}
}

// desiredEntries combines the item's content with the target's existing
// entries according to policy. Merge unions with the item winning on
// conflicting keys; every other policy carries the item's content whole.
func desiredEntries(item *patch.Item, existing lang.Entries) lang.Entries {
	if item.Policy == patch.PolicyMerge && len(existing) > 0 {
		merged := existing.Clone()
		for key, value := range item.Content {
			merged[key] = value
		}
		return merged
	}
	return item.Content.Clone()
}

// readEntriesFile parses a language file on disk. A missing file yields nil
// entries and no error.
func readEntriesFile(path string) (lang.Entries, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	entries, err := lang.ParseEntries(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func joinArtifactMember(artifactPath, memberPath string) string {
	return filepath.Join(artifactPath, filepath.FromSlash(memberPath))
}

// removeEmptyParents deletes empty directories upward from path's parent,
// stopping at root or at the first non-empty directory.
func removeEmptyParents(path, root string) {
	dir := filepath.Dir(path)
	for dir != root && dir != "." && dir != string(filepath.Separator) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
