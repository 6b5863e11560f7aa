// Package docstoretest holds the behavioural test suite every docstore.Store
// backend must pass.
package docstoretest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
)

// Opener returns a ready store. The suite closes it.
type Opener func(t *testing.T) docstore.Store

func collection(t *testing.T) string {
	t.Helper()
	return "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Run executes the conformance suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s docstore.Store)
	}{
		{"GetMissing", testGetMissing},
		{"SetAndGet", testSetAndGet},
		{"SetOverwrites", testSetOverwrites},
		{"UpdateMerges", testUpdateMerges},
		{"UpdateMissing", testUpdateMissing},
		{"NotContains", testNotContains},
		{"Equals", testEquals},
		{"ListOrdered", testListOrdered},
		{"InvalidArguments", testInvalidArguments},
		{"ConcurrentConditionalUpdates", testConcurrentConditionalUpdates},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func testGetMissing(t *testing.T, s docstore.Store) {
	_, err := s.GetRecord(context.Background(), collection(t), "nope")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testSetAndGet(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := collection(t)

	require.NoError(t, s.SetRecord(ctx, c, "u1", docstore.Record{
		"totalXP":          95,
		"displayName":      "Ruth",
		"completedLessons": []string{"a"},
		"lastDate":         nil,
	}))

	rec, err := s.GetRecord(ctx, c, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec[docstore.IDField])
	assert.Equal(t, float64(95), rec["totalXP"])
	assert.Equal(t, "Ruth", rec["displayName"])
	assert.Equal(t, []any{"a"}, rec["completedLessons"])
	assert.Contains(t, rec, "lastDate")
	assert.Nil(t, rec["lastDate"])
}

func testSetOverwrites(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := collection(t)

	require.NoError(t, s.SetRecord(ctx, c, "x", docstore.Record{"a": 1, "b": 2}))
	require.NoError(t, s.SetRecord(ctx, c, "x", docstore.Record{"a": 3}))

	rec, err := s.GetRecord(ctx, c, "x")
	require.NoError(t, err)
	assert.Equal(t, float64(3), rec["a"])
	assert.NotContains(t, rec, "b")
}

func testUpdateMerges(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := collection(t)

	require.NoError(t, s.SetRecord(ctx, c, "u", docstore.Record{
		"totalXP": 10, "level": 1, "email": "a@b.c", "completedLessons": []string{"l1"},
	}))
	require.NoError(t, s.UpdateFields(ctx, c, "u", docstore.Fields{
		"totalXP":          20,
		"completedLessons": []string{"l1", "l2"},
		"lastDate":         "2024-01-02",
	}))

	rec, err := s.GetRecord(ctx, c, "u")
	require.NoError(t, err)
	assert.Equal(t, float64(20), rec["totalXP"])
	assert.Equal(t, float64(1), rec["level"])
	assert.Equal(t, "a@b.c", rec["email"])
	assert.Equal(t, []any{"l1", "l2"}, rec["completedLessons"])
	assert.Equal(t, "2024-01-02", rec["lastDate"])
	assert.Equal(t, "u", rec[docstore.IDField])
}

func testUpdateMissing(t *testing.T, s docstore.Store) {
	err := s.UpdateFields(context.Background(), collection(t), "ghost", docstore.Fields{"a": 1})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testNotContains(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := collection(t)

	require.NoError(t, s.SetRecord(ctx, c, "u", docstore.Record{"xp": 0}))

	// a missing array counts as empty
	require.NoError(t, s.UpdateFields(ctx, c, "u",
		docstore.Fields{"done": []string{"l1"}, "xp": 10},
		docstore.NotContains("done", "l1")))

	err := s.UpdateFields(ctx, c, "u",
		docstore.Fields{"done": []string{"l1", "l1"}, "xp": 20},
		docstore.NotContains("done", "l1"))
	assert.ErrorIs(t, err, docstore.ErrConditionFailed)

	rec, err := s.GetRecord(ctx, c, "u")
	require.NoError(t, err)
	assert.Equal(t, float64(10), rec["xp"], "failed condition must not write")
	assert.Equal(t, []any{"l1"}, rec["done"])

	require.NoError(t, s.UpdateFields(ctx, c, "u",
		docstore.Fields{"done": []string{"l1", "l2"}},
		docstore.NotContains("done", "l2")))
}

func testEquals(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := collection(t)

	require.NoError(t, s.SetRecord(ctx, c, "u", docstore.Record{"xp": 40, "name": "Naomi"}))

	err := s.UpdateFields(ctx, c, "u", docstore.Fields{"xp": 50}, docstore.Equals("xp", 30))
	assert.ErrorIs(t, err, docstore.ErrConditionFailed)

	require.NoError(t, s.UpdateFields(ctx, c, "u", docstore.Fields{"xp": 50},
		docstore.Equals("xp", 40), docstore.Equals("name", "Naomi")))

	err = s.UpdateFields(ctx, c, "u", docstore.Fields{"xp": 60},
		docstore.Equals("xp", 50), docstore.Equals("name", "Ruth"))
	assert.ErrorIs(t, err, docstore.ErrConditionFailed)

	rec, err := s.GetRecord(ctx, c, "u")
	require.NoError(t, err)
	assert.Equal(t, float64(50), rec["xp"])
}

func testListOrdered(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := collection(t)
	other := collection(t)

	empty, err := s.ListRecords(ctx, c, "order")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.SetRecord(ctx, c, "c", docstore.Record{"order": 3}))
	require.NoError(t, s.SetRecord(ctx, c, "a", docstore.Record{"order": 10}))
	require.NoError(t, s.SetRecord(ctx, c, "b", docstore.Record{"order": 2}))
	require.NoError(t, s.SetRecord(ctx, c, "z", docstore.Record{"title": "no order"}))
	require.NoError(t, s.SetRecord(ctx, c, "d", docstore.Record{"order": 2}))
	require.NoError(t, s.SetRecord(ctx, other, "o", docstore.Record{"order": 1}))

	records, err := s.ListRecords(ctx, c, "order")
	require.NoError(t, err)

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r[docstore.IDField].(string))
	}
	assert.Equal(t, []string{"b", "d", "c", "a", "z"}, ids)
}

func testInvalidArguments(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := collection(t)

	_, err := s.GetRecord(ctx, "", "id")
	assert.ErrorIs(t, err, docstore.ErrInvalidArgument)

	err = s.SetRecord(ctx, c, "", docstore.Record{})
	assert.ErrorIs(t, err, docstore.ErrInvalidArgument)

	require.NoError(t, s.SetRecord(ctx, c, "u", docstore.Record{"a": 1}))
	err = s.UpdateFields(ctx, c, "u", docstore.Fields{"a'); DROP TABLE documents; --": 1})
	assert.ErrorIs(t, err, docstore.ErrInvalidArgument)

	_, err = s.ListRecords(ctx, c, "order desc")
	assert.ErrorIs(t, err, docstore.ErrInvalidArgument)
}

func testConcurrentConditionalUpdates(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	c := collection(t)

	require.NoError(t, s.SetRecord(ctx, c, "u", docstore.Record{"xp": 0, "done": []string{}}))

	const workers = 8
	var wg sync.WaitGroup
	var wins atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.UpdateFields(ctx, c, "u",
				docstore.Fields{"xp": 10, "done": []string{"lesson"}},
				docstore.NotContains("done", "lesson"), docstore.Equals("xp", 0))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, docstore.ErrConditionFailed):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	rec, err := s.GetRecord(ctx, c, "u")
	require.NoError(t, err)
	assert.Equal(t, float64(10), rec["xp"])
	assert.Equal(t, []any{"lesson"}, rec["done"])
}
