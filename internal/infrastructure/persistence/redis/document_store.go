package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
)

// DocumentStore implements docstore.Store. Each record is a JSON string;
// a set per collection indexes the ids for ListRecords.
type DocumentStore struct {
	client *Client
}

var _ docstore.Store = (*DocumentStore)(nil)

// NewDocumentStore wraps a connected client. Close closes the client.
func NewDocumentStore(client *Client) *DocumentStore {
	return &DocumentStore{client: client}
}

// GetRecord implements docstore.Store.
func (s *DocumentStore) GetRecord(ctx context.Context, collection, id string) (docstore.Record, error) {
	if err := docstore.ValidateKey(collection, id); err != nil {
		return nil, err
	}

	raw, err := s.client.rdb.Get(ctx, s.client.DocKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, mapErr(fmt.Errorf("redis: get %s/%s: %w", collection, id, err))
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

	_, err = s.client.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.client.DocKey(collection, id), raw, 0)
		p.SAdd(ctx, s.client.IndexKey(collection), id)
		return nil
	})
	if err != nil {
		return mapErr(fmt.Errorf("redis: set %s/%s: %w", collection, id, err))
	}
	return nil
}

// UpdateFields implements docstore.Store. The document key is WATCHed while
// conditions are evaluated; a concurrent write aborts EXEC and is reported
// as docstore.ErrConditionFailed.
func (s *DocumentStore) UpdateFields(ctx context.Context, collection, id string, fields docstore.Fields, conds ...docstore.Condition) error {
	if err := docstore.ValidateUpdate(collection, id, fields, conds); err != nil {
		return err
	}
	key := s.client.DocKey(collection, id)

	err := s.client.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return docstore.ErrNotFound
		}
		if err != nil {
			return err
		}

		rec, err := docstore.Decode(raw)
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

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return docstore.ErrConditionFailed
	case errors.Is(err, docstore.ErrNotFound),
		errors.Is(err, docstore.ErrConditionFailed),
		errors.Is(err, docstore.ErrInvalidArgument):
		return err
	default:
		return mapErr(fmt.Errorf("redis: update %s/%s: %w", collection, id, err))
	}
}

// ListRecords implements docstore.Store. Ordering is done client side with
// docstore.SortRecords.
func (s *DocumentStore) ListRecords(ctx context.Context, collection, orderBy string) ([]docstore.Record, error) {
	if err := docstore.ValidateField(orderBy); err != nil {
		return nil, err
	}

	ids, err := s.client.rdb.SMembers(ctx, s.client.IndexKey(collection)).Result()
	if err != nil {
		return nil, mapErr(fmt.Errorf("redis: list %s: %w", collection, err))
	}
	out := make([]docstore.Record, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.client.DocKey(collection, id)
	}
	values, err := s.client.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, mapErr(fmt.Errorf("redis: list %s: %w", collection, err))
	}

	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// index entry without a document
			continue
		}
		rec, err := docstore.Decode([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	docstore.SortRecords(out, orderBy)
	return out, nil
}

// Ping implements docstore.Store.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return mapErr(s.client.Ping(ctx))
}

// Close implements docstore.Store.
func (s *DocumentStore) Close() error {
	return s.client.Close()
}

func mapErr(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return docstore.ErrClosed
	}
	return err
}
