package testsupport

import (
	"context"
	"testing"

	"lingotool/internal/catalog"
	"lingotool/internal/config"
	"lingotool/internal/lang"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustStoreBlob stores entries as a blob and returns its content hash.
func MustStoreBlob(t testing.TB, store *catalog.Store, entries lang.Entries) string {
	t.Helper()

	hash, _, err := store.StoreBlob(context.Background(), entries)
	if err != nil {
		t.Fatalf("store.StoreBlob: %v", err)
	}
	return hash
}

// NewContainer registers a throwaway artifact and container for tests and
// returns the container ID.
func NewContainer(t testing.TB, store *catalog.Store, path, modID string) string {
	t.Helper()

	ctx := context.Background()
	artifactID, err := store.UpsertArtifact(ctx, catalog.ArtifactArchive, path, "", 0)
	if err != nil {
		t.Fatalf("store.UpsertArtifact: %v", err)
	}
	containerID, err := store.UpsertContainer(ctx, artifactID, "mod", modID, modID, "1.0.0", modID)
	if err != nil {
		t.Fatalf("store.UpsertContainer: %v", err)
	}
	return containerID
}
