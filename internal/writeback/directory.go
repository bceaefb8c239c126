package writeback

import (
	"fmt"
	"os"

	"lingotool/internal/catalog"
	"lingotool/internal/hashfs"
	"lingotool/internal/lang"
)

// DirectoryStrategy writes the language file directly inside a directory
// artifact, keeping a sibling .bak of any prior content.
type DirectoryStrategy struct{}

func (DirectoryStrategy) Name() string { return StrategyDirectory }

func directoryTarget(req *Request) string {
	return joinArtifactMember(req.ArtifactPath, req.Item.MemberPath())
}

func (s DirectoryStrategy) Apply(req *Request) *Result {
	item := req.Item
	target := directoryTarget(req)

	beforeHash, err := hashfs.HashFile(target)
	if err != nil {
		return failedResult(item, s.Name(), target, err)
	}
	existing, err := readEntriesFile(target)
	if err != nil {
		return failedResult(item, s.Name(), target, err)
	}

	backupPath := ""
	if existing != nil {
		backupPath = target + ".bak"
		if err := copyFile(target, backupPath); err != nil {
			return failedResult(item, s.Name(), target, err)
		}
	}

	content := desiredEntries(item, existing)
	if err := writeFileAtomic(target, lang.Canonical(content)); err != nil {
		// The write never replaced the file; the backup is stale.
		if backupPath != "" {
			os.Remove(backupPath)
		}
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
		BackupPath:   backupPath,
	}
}

// Rollback restores the prior file from its .bak and removes the backup. A
// write that created the file from nothing is undone by deleting it.
func (s DirectoryStrategy) Rollback(targetPath, backupPath string) error {
	if backupPath == "" {
		if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove created file: %w", err)
		}
		return nil
	}
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup missing: %w", err)
	}
	if err := copyFile(backupPath, targetPath); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	if err := os.Remove(backupPath); err != nil {
		return fmt.Errorf("remove backup: %w", err)
	}
	return nil
}
