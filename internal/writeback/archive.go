package writeback

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"lingotool/internal/catalog"
	"lingotool/internal/hashfs"
	"lingotool/internal/lang"
	"lingotool/internal/patch"
)

// ArchiveStrategy mutates an archive artifact in place: backup, rewrite to
// a temporary file with the single target member replaced, then an atomic
// rename over the original. Any failure after the backup restores from it.
type ArchiveStrategy struct {
	BackupDir        string
	VerifyAfterWrite bool
}

func (s *ArchiveStrategy) Name() string { return StrategyArchive }

func (s *ArchiveStrategy) Apply(req *Request) *Result {
	item := req.Item
	target := req.ArtifactPath

	beforeHash, err := hashfs.HashFile(target)
	if err != nil {
		return failedResult(item, s.Name(), target, err)
	}
	if beforeHash == "" {
		return failedResult(item, s.Name(), target, fmt.Errorf("archive %s does not exist", target))
	}

	backupPath, err := s.backup(target)
	if err != nil {
		return failedResult(item, s.Name(), target, err)
	}

	if err := s.rewrite(target, item); err != nil {
		restoreErr := copyFile(backupPath, target)
		if restoreErr != nil {
			err = fmt.Errorf("%w (restore from backup also failed: %v)", err, restoreErr)
		}
		return failedResult(item, s.Name(), target, err)
	}

	if s.VerifyAfterWrite {
		if err := s.verifyMember(target, item); err != nil {
			restoreErr := copyFile(backupPath, target)
			if restoreErr != nil {
				err = fmt.Errorf("%w (restore from backup also failed: %v)", err, restoreErr)
			}
			return failedResult(item, s.Name(), target, err)
		}
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

// Rollback copies the timestamped backup back over the archive. The backup
// must still exist; rollback never re-derives one.
func (s *ArchiveStrategy) Rollback(targetPath, backupPath string) error {
	if backupPath == "" {
		return errors.New("no backup recorded")
	}
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup missing: %w", err)
	}
	if err := copyFile(backupPath, targetPath); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	return nil
}

func (s *ArchiveStrategy) backup(target string) (string, error) {
	stamp := time.Now().UTC().Format("20060102T150405.000000000")
	backupPath := filepath.Join(s.BackupDir, fmt.Sprintf("%s.%s.bak", filepath.Base(target), stamp))
	if err := copyFile(target, backupPath); err != nil {
		return "", fmt.Errorf("backup archive: %w", err)
	}
	return backupPath, nil
}

// rewrite copies every member byte-for-byte except the target member, which
// is replaced (or merged, or inserted when absent), into a temp file that is
// then renamed over the original.
func (s *ArchiveStrategy) rewrite(target string, item *patch.Item) error {
	reader, err := zip.OpenReader(target)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	member := item.MemberPath()
	var existing lang.Entries
	for _, f := range reader.File {
		if f.Name != member {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open member %s: %w", member, err)
		}
		data, readErr := io.ReadAll(rc)
		rc.Close()
		if readErr != nil {
			return fmt.Errorf("read member %s: %w", member, readErr)
		}
		parsed, parseErr := lang.ParseEntries(data)
		if parseErr != nil {
			return fmt.Errorf("parse member %s: %w", member, parseErr)
		}
		existing = parsed
		break
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	writer := zip.NewWriter(tmp)
	for _, f := range reader.File {
		if f.Name == member {
			continue
		}
		if err := writer.Copy(f); err != nil {
			cleanup()
			return fmt.Errorf("copy member %s: %w", f.Name, err)
		}
	}

	content := desiredEntries(item, existing)
	w, err := writer.Create(member)
	if err != nil {
		cleanup()
		return fmt.Errorf("create member %s: %w", member, err)
	}
	if _, err := w.Write(lang.Canonical(content)); err != nil {
		cleanup()
		return fmt.Errorf("write member %s: %w", member, err)
	}

	if err := writer.Close(); err != nil {
		cleanup()
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp archive: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("swap archive: %w", err)
	}
	return nil
}

// verifyMember reparses the freshly written member and checks its content
// hash against the item's expected hash. A mismatch can only mean merged
// content, which hashes differently from the item alone; only replace-like
// writes are strictly verifiable.
func (s *ArchiveStrategy) verifyMember(target string, item *patch.Item) error {
	if item.Policy == patch.PolicyMerge {
		return nil
	}
	reader, err := zip.OpenReader(target)
	if err != nil {
		return fmt.Errorf("verify: reopen archive: %w", err)
	}
	defer reader.Close()

	member := item.MemberPath()
	for _, f := range reader.File {
		if f.Name != member {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("verify: open member: %w", err)
		}
		data, readErr := io.ReadAll(rc)
		rc.Close()
		if readErr != nil {
			return fmt.Errorf("verify: read member: %w", readErr)
		}
		entries, parseErr := lang.ParseEntries(data)
		if parseErr != nil {
			return fmt.Errorf("verify: parse member: %w", parseErr)
		}
		if got := lang.HashEntries(entries); got != item.ExpectedBlobHash {
			return fmt.Errorf("verify: member hash %s does not match expected %s", got, item.ExpectedBlobHash)
		}
		return nil
	}
	return fmt.Errorf("verify: member %s absent after write", member)
}
