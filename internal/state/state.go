// Package state persists per-(document, platform) source hashes so repeated
// runs can skip documents whose input has not changed.
package state

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed incremental build store.
// Use ":memory:" for tests, or a file path for persistence across runs.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT NOT NULL,
		platform TEXT NOT NULL,
		source_hash TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (path, platform)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Hash returns the content hash used for change detection.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Unchanged reports whether (path, platform) was last built from content
// with the given hash. A nil Store reports false for everything.
func (s *Store) Unchanged(ctx context.Context, path, platform, hash string) (bool, error) {
	if s == nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT source_hash FROM documents WHERE path = ? AND platform = ?`,
		path, platform).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query document state: %w", err)
	}
	return stored == hash, nil
}

// Record stores the hash (path, platform) was built from.
func (s *Store) Record(ctx context.Context, path, platform, hash string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (path, platform, source_hash, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (path, platform) DO UPDATE SET
			source_hash = excluded.source_hash,
			updated_at = excluded.updated_at`,
		path, platform, hash, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record document state: %w", err)
	}
	return nil
}
