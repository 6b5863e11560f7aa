package docstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore/docstoretest"
)

func TestMemoryStore_Conformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Store {
		return docstore.NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemoryStore()

	require.NoError(t, s.SetRecord(ctx, "users", "u", docstore.Record{"done": []string{"a"}}))

	rec, err := s.GetRecord(ctx, "users", "u")
	require.NoError(t, err)
	rec["done"] = []any{"mutated"}

	again, err := s.GetRecord(ctx, "users", "u")
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, again["done"])
}

func TestMemoryStore_WritesCounter(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemoryStore()

	require.NoError(t, s.SetRecord(ctx, "users", "u", docstore.Record{"xp": 1}))
	_ = s.UpdateFields(ctx, "users", "u", docstore.Fields{"xp": 2}, docstore.Equals("xp", 99))
	assert.Equal(t, 1, s.Writes())

	require.NoError(t, s.UpdateFields(ctx, "users", "u", docstore.Fields{"xp": 2}))
	assert.Equal(t, 2, s.Writes())
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := docstore.NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.GetRecord(ctx, "users", "u")
	assert.ErrorIs(t, err, docstore.ErrClosed)
	assert.ErrorIs(t, s.Ping(ctx), docstore.ErrClosed)
}

func TestSortRecords_MixedTypes(t *testing.T) {
	records := []docstore.Record{
		{"id": "s", "order": "b"},
		{"id": "n2", "order": float64(2)},
		{"id": "missing"},
		{"id": "n1", "order": float64(1)},
	}
	docstore.SortRecords(records, "order")

	var ids []string
	for _, r := range records {
		ids = append(ids, r["id"].(string))
	}
	assert.Equal(t, []string{"n1", "n2", "s", "missing"}, ids)
}
