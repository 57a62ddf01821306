package store

import (
	"fmt"
	"time"
)

// RecordFetch upserts an artifact row for a completed download. It
// satisfies the fetcher's Recorder interface; the artifact kind is
// derived from the destination filename.
func (s *Store) RecordFetch(url, dest string, size int64) {
	query := `
		INSERT OR REPLACE INTO artifacts (url, path, kind, size_bytes, fetched_at)
		VALUES (?, ?, ?, ?, ?)
	`

	// Index failures must not fail the download that triggered them.
	s.db.Exec(query, url, dest, kindOf(dest), size, time.Now().Format(time.RFC3339))
}

// Artifacts returns all cached artifacts ordered by path.
func (s *Store) Artifacts() ([]*Artifact, error) {
	query := `
		SELECT url, path, kind, size_bytes, fetched_at
		FROM artifacts
		ORDER BY path
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		var a Artifact
		var fetchedAt string

		if err := rows.Scan(&a.URL, &a.Path, &a.Kind, &a.SizeBytes, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact row: %w", err)
		}

		a.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fetched_at for %s: %w", a.Path, err)
		}

		artifacts = append(artifacts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}

	return artifacts, nil
}

// TotalSize returns the summed size of every cached artifact.
func (s *Store) TotalSize() (int64, error) {
	var total int64
	err := s.db.QueryRow("SELECT COALESCE(SUM(size_bytes), 0) FROM artifacts").Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum artifact sizes: %w", err)
	}
	return total, nil
}

// Count returns the number of cached artifacts.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM artifacts").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count artifacts: %w", err)
	}
	return count, nil
}

// Clear drops every artifact row. Called after the cache directory is
// emptied so the index matches the filesystem again.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM artifacts"); err != nil {
		return fmt.Errorf("failed to clear cache index: %w", err)
	}
	return nil
}
