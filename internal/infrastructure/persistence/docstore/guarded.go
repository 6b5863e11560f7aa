package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/circuitbreaker"
)

// GuardedStore routes every call through a circuit breaker. Only backend
// failures trip it; missing records, failed conditions, bad arguments and
// cancelled requests do not.
type GuardedStore struct {
	inner Store
	cb    *circuitbreaker.CircuitBreaker
}

var _ Store = (*GuardedStore)(nil)

// Guard wraps inner with cb.
func Guard(inner Store, cb *circuitbreaker.CircuitBreaker) *GuardedStore {
	return &GuardedStore{inner: inner, cb: cb}
}

// IsBackendFailure reports whether err indicates an unhealthy backend.
func IsBackendFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConditionFailed),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func (g *GuardedStore) run(ctx context.Context, op string, fn func(context.Context) error) error {
	err := g.cb.Execute(ctx, fn)
	if circuitbreaker.IsRejected(err) {
		return fmt.Errorf("docstore %s: %w", op, err)
	}
	return err
}

// GetRecord implements Store.
func (g *GuardedStore) GetRecord(ctx context.Context, collection, id string) (Record, error) {
	var rec Record
	err := g.run(ctx, "get", func(ctx context.Context) error {
		var err error
		rec, err = g.inner.GetRecord(ctx, collection, id)
		return err
	})
	return rec, err
}

// SetRecord implements Store.
func (g *GuardedStore) SetRecord(ctx context.Context, collection, id string, data Record) error {
	return g.run(ctx, "set", func(ctx context.Context) error {
		return g.inner.SetRecord(ctx, collection, id, data)
	})
}

// UpdateFields implements Store.
func (g *GuardedStore) UpdateFields(ctx context.Context, collection, id string, fields Fields, conds ...Condition) error {
	return g.run(ctx, "update", func(ctx context.Context) error {
		return g.inner.UpdateFields(ctx, collection, id, fields, conds...)
	})
}

// ListRecords implements Store.
func (g *GuardedStore) ListRecords(ctx context.Context, collection, orderBy string) ([]Record, error) {
	var recs []Record
	err := g.run(ctx, "list", func(ctx context.Context) error {
		var err error
		recs, err = g.inner.ListRecords(ctx, collection, orderBy)
		return err
	})
	return recs, err
}

// Ping bypasses the breaker so health checks see the backend itself.
func (g *GuardedStore) Ping(ctx context.Context) error {
	return g.inner.Ping(ctx)
}

// Close implements Store.
func (g *GuardedStore) Close() error {
	return g.inner.Close()
}
