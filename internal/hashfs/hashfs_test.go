package hashfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"lingotool/internal/hashfs"
)

func TestHashFileMissingIsEmpty(t *testing.T) {
	hash, err := hashfs.HashFile(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if hash != "" {
		t.Fatalf("expected empty hash for missing file, got %s", hash)
	}
}

func TestHashFileStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.json")
	if err := os.WriteFile(path, []byte(`{"a":"b"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	first, err := hashfs.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	second, err := hashfs.HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if first == "" || first != second {
		t.Fatalf("expected stable non-empty hash, got %q and %q", first, second)
	}
}

func TestDirectorySignatureTracksPathsNotContent(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	write("assets/mod/lang/en_us.json", "{}")
	write("pack.mcmeta", "{}")

	before, err := hashfs.DirectorySignature(root)
	if err != nil {
		t.Fatalf("DirectorySignature failed: %v", err)
	}

	// Content-only edits leave the signature unchanged.
	write("pack.mcmeta", `{"pack":{}}`)
	after, err := hashfs.DirectorySignature(root)
	if err != nil {
		t.Fatalf("DirectorySignature failed: %v", err)
	}
	if before != after {
		t.Fatal("content edit should not change the path signature")
	}

	// Adding a file changes it.
	write("assets/mod/lang/de_de.json", "{}")
	changed, err := hashfs.DirectorySignature(root)
	if err != nil {
		t.Fatalf("DirectorySignature failed: %v", err)
	}
	if changed == before {
		t.Fatal("new file should change the path signature")
	}
}
