// Package sqlitestore implements the KVStore port on a single-file SQLite
// database, for deployments that want durable storage without running a
// separate store.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/peterkaminski/textpile/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	meta       BLOB,
	expires_at INTEGER NOT NULL DEFAULT 0
)`

// Store wraps a SQLite database with one kv table. TTLs are recorded as a
// unix-milli deadline and enforced lazily on read.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure kv schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, key string) (value, meta []byte, ok bool, err error) {
	var expiresAt int64
	row := s.db.QueryRowContext(ctx,
		`SELECT value, meta, expires_at FROM kv WHERE key = ?`, key)
	if err := row.Scan(&value, &meta, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, false, nil
		}
		return nil, nil, false, domain.StoreError("sqlite get "+key, err)
	}
	if expiresAt > 0 && expiresAt <= time.Now().UnixMilli() {
		// Reclaim the dead row on the way out; absence is the contract.
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return nil, nil, false, domain.StoreError("sqlite reclaim "+key, err)
		}
		return nil, nil, false, nil
	}
	return value, meta, true, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, _, ok, err := s.get(ctx, key)
	return value, ok, err
}

func (s *Store) GetWithMetadata(ctx context.Context, key string) ([]byte, []byte, bool, error) {
	return s.get(ctx, key)
}

func (s *Store) Put(ctx context.Context, key string, value, meta []byte, ttl time.Duration) error {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, meta, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = ?2, meta = ?3, expires_at = ?4`,
		key, value, meta, expiresAt,
	)
	if err != nil {
		return domain.StoreError("sqlite put "+key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return domain.StoreError("sqlite delete "+key, err)
	}
	return nil
}
