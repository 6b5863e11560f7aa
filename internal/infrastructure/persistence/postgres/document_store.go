package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
)

// DocumentStore implements docstore.Store on the documents table.
// Conditional updates are a single UPDATE whose WHERE clause carries the
// conditions, so row locking makes check and write atomic.
type DocumentStore struct {
	conn *Connection
}

var _ docstore.Store = (*DocumentStore)(nil)

// NewDocumentStore wraps an open connection. Close closes the connection.
func NewDocumentStore(conn *Connection) *DocumentStore {
	return &DocumentStore{conn: conn}
}

// Connection exposes the pool for health reporting.
func (s *DocumentStore) Connection() *Connection {
	return s.conn
}

// GetRecord implements docstore.Store.
func (s *DocumentStore) GetRecord(ctx context.Context, collection, id string) (docstore.Record, error) {
	if err := docstore.ValidateKey(collection, id); err != nil {
		return nil, err
	}
	if s.conn.IsClosed() {
		return nil, docstore.ErrClosed
	}

	var raw []byte
	err := s.conn.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if IsNoRows(err) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s/%s: %w", collection, id, err)
	}
	return docstore.Decode(raw)
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
	if s.conn.IsClosed() {
		return docstore.ErrClosed
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		collection, id, string(raw),
	)
	if err != nil {
		return fmt.Errorf("postgres: set %s/%s: %w", collection, id, err)
	}
	return nil
}

// UpdateFields implements docstore.Store.
func (s *DocumentStore) UpdateFields(ctx context.Context, collection, id string, fields docstore.Fields, conds ...docstore.Condition) error {
	if err := docstore.ValidateUpdate(collection, id, fields, conds); err != nil {
		return err
	}
	patch, err := docstore.EncodeValue(fields)
	if err != nil {
		return err
	}
	if s.conn.IsClosed() {
		return docstore.ErrClosed
	}

	query, args, err := buildUpdate(collection, id, string(patch), conds)
	if err != nil {
		return err
	}

	tag, err := s.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = s.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("postgres: update %s/%s: %w", collection, id, err)
	}
	if !exists {
		return docstore.ErrNotFound
	}
	return docstore.ErrConditionFailed
}

// buildUpdate renders the conditional UPDATE. Field names travel as
// parameters, values as JSONB literals.
func buildUpdate(collection, id, patch string, conds []docstore.Condition) (string, []any, error) {
	args := []any{collection, id, patch}
	var b strings.Builder
	b.WriteString(`UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2`)

	for _, c := range conds {
		val, err := docstore.EncodeValue(c.Value)
		if err != nil {
			return "", nil, err
		}
		args = append(args, c.Field, string(val))
		f, v := len(args)-1, len(args)

		switch c.Op {
		case docstore.OpNotContains:
			fmt.Fprintf(&b,
				" AND NOT (CASE WHEN jsonb_typeof(data->$%d::text) = 'array' THEN data->$%d::text ELSE '[]'::jsonb END @> jsonb_build_array($%d::jsonb))",
				f, f, v)
		case docstore.OpEquals:
			fmt.Fprintf(&b, " AND COALESCE(data->$%d::text, 'null'::jsonb) = $%d::jsonb", f, v)
		default:
			return "", nil, fmt.Errorf("%w: unknown condition op %d", docstore.ErrInvalidArgument, c.Op)
		}
	}
	return b.String(), args, nil
}

// ListRecords implements docstore.Store. Ordering matches docstore.SortRecords:
// numbers, then strings, then other JSON, then missing or null, ties by id.
func (s *DocumentStore) ListRecords(ctx context.Context, collection, orderBy string) ([]docstore.Record, error) {
	if err := docstore.ValidateField(orderBy); err != nil {
		return nil, err
	}
	if s.conn.IsClosed() {
		return nil, docstore.ErrClosed
	}

	rows, err := s.conn.Query(ctx, `
		SELECT data FROM documents
		WHERE collection = $1
		ORDER BY
			CASE jsonb_typeof(data->$2::text)
				WHEN 'number' THEN 0
				WHEN 'string' THEN 1
				WHEN 'null'   THEN 3
				ELSE CASE WHEN data->$2::text IS NULL THEN 3 ELSE 2 END
			END,
			CASE WHEN jsonb_typeof(data->$2::text) = 'number' THEN (data->>$2::text)::numeric END,
			CASE WHEN jsonb_typeof(data->$2::text) = 'string' THEN data->>$2::text END COLLATE "C",
			id COLLATE "C"`,
		collection, orderBy,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", collection, err)
	}
	defer rows.Close()

	out := make([]docstore.Record, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: list %s: %w", collection, err)
		}
		rec, err := docstore.Decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list %s: %w", collection, err)
	}
	return out, nil
}

// Ping implements docstore.Store.
func (s *DocumentStore) Ping(ctx context.Context) error {
	if s.conn.IsClosed() {
		return docstore.ErrClosed
	}
	return s.conn.Ping(ctx)
}

// Close implements docstore.Store.
func (s *DocumentStore) Close() error {
	s.conn.Close()
	return nil
}
