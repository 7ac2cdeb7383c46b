// Package postgres implements storage.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"tackleshop/pkg/storage"
)

// Schema creates the key-value table used by Store.
const Schema = `CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	selectSQL = "SELECT value FROM kv WHERE key=$1"
	upsertSQL = "INSERT INTO kv (key,value,updated_at) VALUES ($1,$2,now()) ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()"
	deleteSQL = "DELETE FROM kv WHERE key=$1"
)

// Store persists values in PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL store. The caller must ensure the kv table
// exists; see Schema and Open.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and creates the kv table if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, selectSQL, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return v, err
}

// Set inserts or replaces a value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, upsertSQL, key, value)
	return err
}

// Delete removes a key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, deleteSQL, key)
	return err
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
