package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"lingotool/internal/lang"
)

// ErrStoreBusy signals that a maintenance operation was refused because an
// apply run is currently executing.
var ErrStoreBusy = errors.New("catalog: apply run in progress")

// ErrBlobNotFound signals a lookup for a hash the store does not hold.
var ErrBlobNotFound = errors.New("catalog: blob not found")

// StoreBlob canonicalizes entries, computes the content hash, and inserts
// the blob if absent. The insert and its per-key rows happen in a single
// transaction, so concurrent callers with identical content converge on one
// row. Returns the hash and whether this call created the blob.
func (s *Store) StoreBlob(ctx context.Context, entries lang.Entries) (string, bool, error) {
	canonical := lang.Canonical(entries)
	hash := lang.HashBytes(canonical)
	now := timestamp(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin blob tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
        INSERT INTO blobs (blob_hash, canonical_json, size, entry_count, first_seen, last_seen)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(blob_hash) DO NOTHING`,
		hash, string(canonical), int64(len(canonical)), len(entries), now, now)
	if err != nil {
		return "", false, fmt.Errorf("insert blob: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("blob rows affected: %w", err)
	}

	created := affected == 1
	if created {
		for _, key := range lang.SortedKeys(entries) {
			if _, err := tx.ExecContext(ctx, `
                INSERT INTO blob_entries (blob_hash, translation_key, value)
                VALUES (?, ?, ?)`,
				hash, key, entries[key]); err != nil {
				return "", false, fmt.Errorf("insert blob entry %s: %w", key, err)
			}
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"UPDATE blobs SET last_seen = ? WHERE blob_hash = ?", now, hash); err != nil {
			return "", false, fmt.Errorf("touch blob: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit blob tx: %w", err)
	}
	return hash, created, nil
}

// GetBlob returns the blob for a content hash or ErrBlobNotFound.
func (s *Store) GetBlob(ctx context.Context, hash string) (*Blob, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT blob_hash, canonical_json, size, entry_count, first_seen, last_seen
        FROM blobs WHERE blob_hash = ?`, hash)
	blob, err := scanBlob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return blob, nil
}

// HasBlob reports whether a blob exists without loading its content.
func (s *Store) HasBlob(ctx context.Context, hash string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM blobs WHERE blob_hash = ?", hash)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check blob: %w", err)
	}
	return count > 0, nil
}

// BlobReferences returns the language files currently pointing at a blob.
func (s *Store) BlobReferences(ctx context.Context, hash string) ([]*LanguageFile, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT file_id, container_id, locale, namespace, file_path, content_hash, key_count, first_seen, last_seen
        FROM language_files WHERE content_hash = ?
        ORDER BY container_id, locale`, hash)
	if err != nil {
		return nil, fmt.Errorf("query blob references: %w", err)
	}
	defer rows.Close()

	var files []*LanguageFile
	for rows.Next() {
		file, err := scanLanguageFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blob reference: %w", err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// DiffBlobs computes the key-level differences between two stored blobs.
func (s *Store) DiffBlobs(ctx context.Context, hashA, hashB string) (map[string]lang.Change, error) {
	blobA, err := s.GetBlob(ctx, hashA)
	if err != nil {
		return nil, err
	}
	blobB, err := s.GetBlob(ctx, hashB)
	if err != nil {
		return nil, err
	}
	entriesA, err := blobA.Entries()
	if err != nil {
		return nil, fmt.Errorf("parse blob %s: %w", hashA, err)
	}
	entriesB, err := blobB.Entries()
	if err != nil {
		return nil, fmt.Errorf("parse blob %s: %w", hashB, err)
	}
	return lang.Diff(entriesA, entriesB), nil
}

// MergeBlobs combines stored blobs under a merge strategy and stores the
// result, returning the merged blob hash.
func (s *Store) MergeBlobs(ctx context.Context, strategy lang.MergeStrategy, hashes ...string) (string, error) {
	if len(hashes) == 0 {
		return "", errors.New("merge blobs: no inputs")
	}
	inputs := make([]lang.Entries, 0, len(hashes))
	for _, hash := range hashes {
		blob, err := s.GetBlob(ctx, hash)
		if err != nil {
			return "", err
		}
		entries, err := blob.Entries()
		if err != nil {
			return "", fmt.Errorf("parse blob %s: %w", hash, err)
		}
		inputs = append(inputs, entries)
	}
	merged, err := lang.Merge(strategy, inputs...)
	if err != nil {
		return "", err
	}
	hash, _, err := s.StoreBlob(ctx, merged)
	return hash, err
}

// FindSimilarBlobs ranks stored blobs by Jaccard key-set similarity against
// the reference blob. The reference itself is excluded. Results at or above
// threshold are returned best first, capped at limit when limit > 0.
func (s *Store) FindSimilarBlobs(ctx context.Context, hash string, threshold float64, limit int) ([]BlobSimilarity, error) {
	reference, err := s.GetBlob(ctx, hash)
	if err != nil {
		return nil, err
	}
	refEntries, err := reference.Entries()
	if err != nil {
		return nil, fmt.Errorf("parse blob %s: %w", hash, err)
	}
	refKeys := make(map[string]struct{}, len(refEntries))
	for key := range refEntries {
		refKeys[key] = struct{}{}
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT blob_hash, canonical_json, size, entry_count, first_seen, last_seen
        FROM blobs WHERE blob_hash != ?`, hash)
	if err != nil {
		return nil, fmt.Errorf("query blobs: %w", err)
	}
	defer rows.Close()

	var matches []BlobSimilarity
	for rows.Next() {
		blob, err := scanBlob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blob: %w", err)
		}
		entries, err := blob.Entries()
		if err != nil {
			return nil, fmt.Errorf("parse blob %s: %w", blob.Hash, err)
		}
		keys := make(map[string]struct{}, len(entries))
		for key := range entries {
			keys[key] = struct{}{}
		}
		score := lang.Jaccard(refKeys, keys)
		if score >= threshold {
			matches = append(matches, BlobSimilarity{Blob: blob, Similarity: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Blob.Hash < matches[j].Blob.Hash
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// UnreferencedBlobs lists hashes with no language file pointing at them.
func (s *Store) UnreferencedBlobs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT b.blob_hash FROM blobs b
        WHERE NOT EXISTS (
            SELECT 1 FROM language_files lf WHERE lf.content_hash = b.blob_hash
        )
        ORDER BY b.blob_hash`)
	if err != nil {
		return nil, fmt.Errorf("query unreferenced blobs: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan unreferenced blob: %w", err)
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

// GarbageCollect deletes unreferenced blobs. A dry run only reports the
// candidates. Non-dry runs refuse to proceed while an apply run is
// executing, and every deletion rechecks the reference count inside its
// transaction so a reference gained after candidate listing survives.
func (s *Store) GarbageCollect(ctx context.Context, dryRun bool) ([]string, error) {
	candidates, err := s.UnreferencedBlobs(ctx)
	if err != nil {
		return nil, err
	}
	if dryRun {
		return candidates, nil
	}

	running, err := s.RunningRunCount(ctx)
	if err != nil {
		return nil, err
	}
	if running > 0 {
		return nil, ErrStoreBusy
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin gc tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	deleted := make([]string, 0, len(candidates))
	for _, hash := range candidates {
		result, err := tx.ExecContext(ctx, `
            DELETE FROM blobs
            WHERE blob_hash = ?
              AND NOT EXISTS (
                  SELECT 1 FROM language_files lf WHERE lf.content_hash = ?
              )`, hash, hash)
		if err != nil {
			return nil, fmt.Errorf("delete blob %s: %w", hash, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("gc rows affected: %w", err)
		}
		if affected == 1 {
			deleted = append(deleted, hash)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit gc tx: %w", err)
	}
	return deleted, nil
}

// Stats aggregates dedup figures across the blob store.
func (s *Store) Stats(ctx context.Context) (*BlobStats, error) {
	stats := &BlobStats{}
	row := s.db.QueryRowContext(ctx, `
        SELECT COUNT(1), COALESCE(SUM(entry_count), 0), COALESCE(SUM(size), 0)
        FROM blobs`)
	if err := row.Scan(&stats.TotalBlobs, &stats.TotalEntries, &stats.TotalSize); err != nil {
		return nil, fmt.Errorf("scan blob stats: %w", err)
	}
	row = s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM language_files WHERE content_hash IS NOT NULL")
	if err := row.Scan(&stats.TotalReferences); err != nil {
		return nil, fmt.Errorf("scan reference count: %w", err)
	}
	if stats.TotalBlobs > 0 {
		stats.DedupRatio = float64(stats.TotalReferences) / float64(stats.TotalBlobs)
	}
	return stats, nil
}

func scanBlob(row rowScanner) (*Blob, error) {
	var blob Blob
	var firstSeen, lastSeen string
	if err := row.Scan(&blob.Hash, &blob.CanonicalJSON, &blob.Size, &blob.EntryCount, &firstSeen, &lastSeen); err != nil {
		return nil, err
	}
	var err error
	if blob.FirstSeen, err = parseTimeString(firstSeen); err != nil {
		return nil, fmt.Errorf("parse first_seen: %w", err)
	}
	if blob.LastSeen, err = parseTimeString(lastSeen); err != nil {
		return nil, fmt.Errorf("parse last_seen: %w", err)
	}
	return &blob, nil
}
