package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore/docstoretest"
)

func TestDocumentStore_Conformance(t *testing.T) {
	docstoretest.Run(t, func(t *testing.T) docstore.Store {
		s, err := Open(context.Background(), MemoryDSN)
		require.NoError(t, err)
		return s
	})
}

func TestDocumentStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "bible.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SetRecord(ctx, docstore.CollectionLessons, "l1", docstore.Record{"title": "Faith", "order": 1}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.GetRecord(ctx, docstore.CollectionLessons, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Faith", rec["title"])
	assert.Equal(t, float64(1), rec["order"])
}

func TestDocumentStore_CloseTwice(t *testing.T) {
	s, err := Open(context.Background(), MemoryDSN)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), docstore.ErrClosed)
}
