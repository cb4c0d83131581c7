package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/gantrylabs/gantry/pkg/digest"
)

const locatorsSchema = `
CREATE TABLE IF NOT EXISTS locators (
    source_id TEXT PRIMARY KEY,
    locator   TEXT NOT NULL,
    digest    TEXT NOT NULL DEFAULT ''
);
`

// SQLiteIndex persists the locator index across runs.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (or creates) the index database at path and runs
// migrations.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open index db: %w", err)
	}
	idx, err := NewSQLIndex(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// NewSQLIndex wraps an existing database handle; used by tests.
func NewSQLIndex(db *sql.DB) (*SQLiteIndex, error) {
	if _, err := db.Exec(locatorsSchema); err != nil {
		return nil, fmt.Errorf("store: migrate index db: %w", err)
	}
	return &SQLiteIndex{db: db}, nil
}

func (s *SQLiteIndex) Put(ctx context.Context, sourceID, locator string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locators (source_id, locator) VALUES (?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			locator = excluded.locator,
			digest = CASE WHEN locators.locator = excluded.locator THEN locators.digest ELSE '' END`,
		sourceID, locator)
	if err != nil {
		return fmt.Errorf("store: index put: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) SetDigest(ctx context.Context, sourceID string, d digest.Digest) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE locators SET digest = ? WHERE source_id = ?`, d.String(), sourceID)
	if err != nil {
		return fmt.Errorf("store: index set digest: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Get(ctx context.Context, sourceID string) (IndexEntry, bool, error) {
	var entry IndexEntry
	var digestStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT source_id, locator, digest FROM locators WHERE source_id = ?`, sourceID).
		Scan(&entry.SourceID, &entry.Locator, &digestStr)
	if errors.Is(err, sql.ErrNoRows) {
		return IndexEntry{}, false, nil
	}
	if err != nil {
		return IndexEntry{}, false, fmt.Errorf("store: index get: %w", err)
	}
	if digestStr != "" {
		d, err := digest.Parse(digestStr)
		if err != nil {
			return IndexEntry{}, false, fmt.Errorf("store: index holds corrupt digest for %s: %w", sourceID, err)
		}
		entry.Digest = d
	}
	return entry, true, nil
}

func (s *SQLiteIndex) ClearDigest(ctx context.Context, d digest.Digest) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE locators SET digest = '' WHERE digest = ?`, d.String())
	if err != nil {
		return fmt.Errorf("store: index clear digest: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locators`)
	if err != nil {
		return fmt.Errorf("store: index reset: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
