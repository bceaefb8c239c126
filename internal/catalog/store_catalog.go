package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals a lookup for a catalog row that does not exist.
var ErrNotFound = errors.New("catalog: not found")

// UpsertArtifact records an artifact by path, refreshing its hash and size
// when already known. Returns the stable artifact ID.
func (s *Store) UpsertArtifact(ctx context.Context, artifactType ArtifactType, path, contentHash string, size int64) (string, error) {
	now := timestamp(time.Now())

	var existing string
	row := s.db.QueryRowContext(ctx, "SELECT artifact_id FROM artifacts WHERE path = ?", path)
	err := row.Scan(&existing)
	switch {
	case err == nil:
		if _, err := s.db.ExecContext(ctx, `
            UPDATE artifacts SET artifact_type = ?, content_hash = ?, size = ?, last_seen = ?
            WHERE artifact_id = ?`,
			string(artifactType), contentHash, size, now, existing); err != nil {
			return "", fmt.Errorf("update artifact: %w", err)
		}
		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
		id := uuid.NewString()
		if _, err := s.db.ExecContext(ctx, `
            INSERT INTO artifacts (artifact_id, artifact_type, path, content_hash, size, first_seen, last_seen)
            VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, string(artifactType), path, contentHash, size, now, now); err != nil {
			return "", fmt.Errorf("insert artifact: %w", err)
		}
		return id, nil
	default:
		return "", fmt.Errorf("lookup artifact: %w", err)
	}
}

// GetArtifact returns an artifact by ID or ErrNotFound.
func (s *Store) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT artifact_id, artifact_type, path, content_hash, size, first_seen, last_seen
        FROM artifacts WHERE artifact_id = ?`, id)
	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: artifact %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return artifact, nil
}

// ArtifactByPath returns the artifact registered at a filesystem path.
func (s *Store) ArtifactByPath(ctx context.Context, path string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT artifact_id, artifact_type, path, content_hash, size, first_seen, last_seen
        FROM artifacts WHERE path = ?`, path)
	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: artifact at %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact by path: %w", err)
	}
	return artifact, nil
}

// UpsertContainer records a logical container inside an artifact, keyed by
// (artifact, mod ID). Returns the stable container ID.
func (s *Store) UpsertContainer(ctx context.Context, artifactID, containerType, modID, displayName, version, namespace string) (string, error) {
	now := timestamp(time.Now())

	var existing string
	row := s.db.QueryRowContext(ctx,
		"SELECT container_id FROM containers WHERE artifact_id = ? AND mod_id = ?", artifactID, modID)
	err := row.Scan(&existing)
	switch {
	case err == nil:
		if _, err := s.db.ExecContext(ctx, `
            UPDATE containers SET container_type = ?, display_name = ?, version = ?, namespace = ?, last_seen = ?
            WHERE container_id = ?`,
			containerType, nullableString(displayName), nullableString(version), nullableString(namespace), now, existing); err != nil {
			return "", fmt.Errorf("update container: %w", err)
		}
		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
		id := uuid.NewString()
		if _, err := s.db.ExecContext(ctx, `
            INSERT INTO containers (container_id, artifact_id, container_type, mod_id, display_name, version, namespace, first_seen, last_seen)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, artifactID, containerType, modID,
			nullableString(displayName), nullableString(version), nullableString(namespace), now, now); err != nil {
			return "", fmt.Errorf("insert container: %w", err)
		}
		return id, nil
	default:
		return "", fmt.Errorf("lookup container: %w", err)
	}
}

// GetContainer returns a container by ID or ErrNotFound.
func (s *Store) GetContainer(ctx context.Context, id string) (*Container, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT container_id, artifact_id, container_type, mod_id, display_name, version, namespace, first_seen, last_seen
        FROM containers WHERE container_id = ?`, id)
	container, err := scanContainer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: container %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get container: %w", err)
	}
	return container, nil
}

// ContainerArtifact resolves the artifact a container belongs to.
func (s *Store) ContainerArtifact(ctx context.Context, containerID string) (*Artifact, error) {
	container, err := s.GetContainer(ctx, containerID)
	if err != nil {
		return nil, err
	}
	return s.GetArtifact(ctx, container.ArtifactID)
}

// ListContainers returns all known containers ordered by mod ID.
func (s *Store) ListContainers(ctx context.Context) ([]*Container, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT container_id, artifact_id, container_type, mod_id, display_name, version, namespace, first_seen, last_seen
        FROM containers ORDER BY mod_id`)
	if err != nil {
		return nil, fmt.Errorf("query containers: %w", err)
	}
	defer rows.Close()

	var containers []*Container
	for rows.Next() {
		container, err := scanContainer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan container: %w", err)
		}
		containers = append(containers, container)
	}
	return containers, rows.Err()
}

// UpsertLanguageFile records the binding of a container-level language file
// to a content blob and returns the stable file ID.
func (s *Store) UpsertLanguageFile(ctx context.Context, containerID, locale, namespace, filePath, contentHash string, keyCount int) (string, error) {
	now := timestamp(time.Now())

	var existing string
	row := s.db.QueryRowContext(ctx, `
        SELECT file_id FROM language_files
        WHERE container_id = ? AND locale = ? AND namespace = ? AND file_path = ?`,
		containerID, locale, namespace, filePath)
	err := row.Scan(&existing)
	switch {
	case err == nil:
		if _, err := s.db.ExecContext(ctx, `
            UPDATE language_files SET content_hash = ?, key_count = ?, last_seen = ?
            WHERE file_id = ?`,
			nullableString(contentHash), keyCount, now, existing); err != nil {
			return "", fmt.Errorf("update language file: %w", err)
		}
		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
		id := uuid.NewString()
		if _, err := s.db.ExecContext(ctx, `
            INSERT INTO language_files (file_id, container_id, locale, namespace, file_path, content_hash, key_count, first_seen, last_seen)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, containerID, locale, namespace, filePath,
			nullableString(contentHash), keyCount, now, now); err != nil {
			return "", fmt.Errorf("insert language file: %w", err)
		}
		return id, nil
	default:
		return "", fmt.Errorf("lookup language file: %w", err)
	}
}

// GetLanguageFile returns the language file for (container, locale,
// namespace) or ErrNotFound. Containers carry at most one file per pair.
func (s *Store) GetLanguageFile(ctx context.Context, containerID, locale, namespace string) (*LanguageFile, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT file_id, container_id, locale, namespace, file_path, content_hash, key_count, first_seen, last_seen
        FROM language_files
        WHERE container_id = ? AND locale = ? AND namespace = ?`,
		containerID, locale, namespace)
	file, err := scanLanguageFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: language file %s/%s/%s", ErrNotFound, containerID, namespace, locale)
	}
	if err != nil {
		return nil, fmt.Errorf("get language file: %w", err)
	}
	return file, nil
}

// ListLanguageFiles returns a container's language files ordered by locale.
func (s *Store) ListLanguageFiles(ctx context.Context, containerID string) ([]*LanguageFile, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT file_id, container_id, locale, namespace, file_path, content_hash, key_count, first_seen, last_seen
        FROM language_files WHERE container_id = ?
        ORDER BY locale, namespace`, containerID)
	if err != nil {
		return nil, fmt.Errorf("query language files: %w", err)
	}
	defer rows.Close()

	var files []*LanguageFile
	for rows.Next() {
		file, err := scanLanguageFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan language file: %w", err)
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	var artifact Artifact
	var artifactType, firstSeen, lastSeen string
	if err := row.Scan(&artifact.ID, &artifactType, &artifact.Path, &artifact.ContentHash, &artifact.Size, &firstSeen, &lastSeen); err != nil {
		return nil, err
	}
	artifact.Type = ArtifactType(artifactType)
	var err error
	if artifact.FirstSeen, err = parseTimeString(firstSeen); err != nil {
		return nil, fmt.Errorf("parse first_seen: %w", err)
	}
	if artifact.LastSeen, err = parseTimeString(lastSeen); err != nil {
		return nil, fmt.Errorf("parse last_seen: %w", err)
	}
	return &artifact, nil
}

func scanContainer(row rowScanner) (*Container, error) {
	var container Container
	var displayName, version, namespace sql.NullString
	var firstSeen, lastSeen string
	if err := row.Scan(&container.ID, &container.ArtifactID, &container.Type, &container.ModID,
		&displayName, &version, &namespace, &firstSeen, &lastSeen); err != nil {
		return nil, err
	}
	container.DisplayName = displayName.String
	container.Version = version.String
	container.Namespace = namespace.String
	var err error
	if container.FirstSeen, err = parseTimeString(firstSeen); err != nil {
		return nil, fmt.Errorf("parse first_seen: %w", err)
	}
	if container.LastSeen, err = parseTimeString(lastSeen); err != nil {
		return nil, fmt.Errorf("parse last_seen: %w", err)
	}
	return &container, nil
}

func scanLanguageFile(row rowScanner) (*LanguageFile, error) {
	var file LanguageFile
	var contentHash sql.NullString
	var firstSeen, lastSeen string
	if err := row.Scan(&file.ID, &file.ContainerID, &file.Locale, &file.Namespace, &file.FilePath,
		&contentHash, &file.KeyCount, &firstSeen, &lastSeen); err != nil {
		return nil, err
	}
	file.ContentHash = contentHash.String
	var err error
	if file.FirstSeen, err = parseTimeString(firstSeen); err != nil {
		return nil, fmt.Errorf("parse first_seen: %w", err)
	}
	if file.LastSeen, err = parseTimeString(lastSeen); err != nil {
		return nil, fmt.Errorf("parse last_seen: %w", err)
	}
	return &file, nil
}
