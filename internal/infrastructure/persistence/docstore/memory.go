package docstore

import (
	"context"
	"sync"
)

// MemoryStore keeps JSON-encoded records in process memory.
// Every read decodes a fresh copy, so callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string][]byte
	closed bool

	// writes counts successful mutations; tests use it to assert zero-write paths.
	writes int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

// GetRecord implements Store.
func (s *MemoryStore) GetRecord(ctx context.Context, collection, id string) (Record, error) {
	if err := ValidateKey(collection, id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	raw, ok := s.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return Decode(raw)
}

// SetRecord implements Store.
func (s *MemoryStore) SetRecord(ctx context.Context, collection, id string, data Record) error {
	if err := ValidateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := Encode(id, data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.data[collection] == nil {
		s.data[collection] = make(map[string][]byte)
	}
	s.data[collection][id] = raw
	s.writes++
	return nil
}

// UpdateFields implements Store. The check and the write happen under one lock.
func (s *MemoryStore) UpdateFields(ctx context.Context, collection, id string, fields Fields, conds ...Condition) error {
	if err := ValidateUpdate(collection, id, fields, conds); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	raw, ok := s.data[collection][id]
	if !ok {
		return ErrNotFound
	}
	rec, err := Decode(raw)
	if err != nil {
		return err
	}

	holds, err := Evaluate(rec, conds)
	if err != nil {
		return err
	}
	if !holds {
		return ErrConditionFailed
	}

	merged, err := Merge(rec, fields)
	if err != nil {
		return err
	}
	out, err := Encode(id, merged)
	if err != nil {
		return err
	}
	s.data[collection][id] = out
	s.writes++
	return nil
}

// ListRecords implements Store.
func (s *MemoryStore) ListRecords(ctx context.Context, collection, orderBy string) ([]Record, error) {
	if err := ValidateField(orderBy); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	raws := make([][]byte, 0, len(s.data[collection]))
	for _, raw := range s.data[collection] {
		raws = append(raws, raw)
	}
	s.mu.RUnlock()

	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := Decode(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	SortRecords(records, orderBy)
	return records, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Writes returns the number of successful mutations.
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
