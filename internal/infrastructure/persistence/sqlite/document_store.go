// Package sqlite implements docstore.Store on an embedded SQLite file
// using sqlx over the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL CHECK (json_valid(data)),
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// DocumentStore keeps each record as a JSON text column.
// The pool holds a single connection, so every statement and transaction
// is serialised and a read-check-write inside one transaction is atomic.
type DocumentStore struct {
	db *sqlx.DB

	mu     sync.RWMutex
	closed bool
}

var _ docstore.Store = (*DocumentStore)(nil)

// Open connects to path (or MemoryDSN), creating parent directories and
// the schema as needed.
func Open(ctx context.Context, path string) (*DocumentStore, error) {
	if path != MemoryDSN && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create db dir: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &DocumentStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DocumentStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.GetContext(ctx, &version, `PRAGMA user_version`); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: create schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("sqlite: write schema version: %w", err)
	}
	return nil
}

func (s *DocumentStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return docstore.ErrClosed
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// GetRecord implements docstore.Store.
func (s *DocumentStore) GetRecord(ctx context.Context, collection, id string) (docstore.Record, error) {
	if err := docstore.ValidateKey(collection, id); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var raw string
	err := s.db.GetContext(ctx, &raw,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s/%s: %w", collection, id, err)
	}
	return docstore.Decode([]byte(raw))
}

// SetRecord implements docstore.Store.
func (s *DocumentStore) SetRecord(ctx context.Context, collection, id string, data docstore.Record) error {
	if err := docstore.ValidateKey(collection, id); err != nil {
		return err
	}
	raw, err := docstore.Encode(id, data)
	if err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	ts := now()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (collection, id, data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(collection, id) DO UPDATE SET
  data = excluded.data,
  updated_at = excluded.updated_at`,
		collection, id, string(raw), ts, ts)
	if err != nil {
		return fmt.Errorf("sqlite: set %s/%s: %w", collection, id, err)
	}
	return nil
}

// UpdateFields implements docstore.Store.
func (s *DocumentStore) UpdateFields(ctx context.Context, collection, id string, fields docstore.Fields, conds ...docstore.Condition) error {
	if err := docstore.ValidateUpdate(collection, id, fields, conds); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.GetContext(ctx, &raw,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("sqlite: update %s/%s: %w", collection, id, err)
	}

	rec, err := docstore.Decode([]byte(raw))
	if err != nil {
		return err
	}
	ok, err := docstore.Evaluate(rec, conds)
	if err != nil {
		return err
	}
	if !ok {
		return docstore.ErrConditionFailed
	}

	merged, err := docstore.Merge(rec, fields)
	if err != nil {
		return err
	}
	out, err := docstore.Encode(id, merged)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(out), now(), collection, id); err != nil {
		return fmt.Errorf("sqlite: update %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit %s/%s: %w", collection, id, err)
	}
	return nil
}

// ListRecords implements docstore.Store.
func (s *DocumentStore) ListRecords(ctx context.Context, collection, orderBy string) ([]docstore.Record, error) {
	if err := docstore.ValidateField(orderBy); err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	path := "$." + orderBy
	var raws []string
	err := s.db.SelectContext(ctx, &raws, `
SELECT data FROM documents
WHERE collection = ?
ORDER BY
  CASE json_type(data, ?)
    WHEN 'integer' THEN 0
    WHEN 'real'    THEN 0
    WHEN 'text'    THEN 1
    WHEN 'null'    THEN 3
    ELSE CASE WHEN json_type(data, ?) IS NULL THEN 3 ELSE 2 END
  END,
  json_extract(data, ?),
  id`,
		collection, path, path, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", collection, err)
	}

	out := make([]docstore.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := docstore.Decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Ping implements docstore.Store.
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close implements docstore.Store.
func (s *DocumentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
