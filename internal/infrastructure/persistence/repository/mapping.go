// Package repository adapts the document store to the domain repositories.
// Records use camelCase field names.
package repository

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
)

// Field names shared by the mappers.
const (
	fieldDisplayName        = "displayName"
	fieldEmail              = "email"
	fieldTotalXP            = "totalXP"
	fieldLevel              = "level"
	fieldCurrentStreak      = "currentStreak"
	fieldBestStreak         = "bestStreak"
	fieldLastCompletionDate = "lastCompletionDate"
	fieldCompletedLessons   = "completedLessons"
	fieldCreatedAt          = "createdAt"
	fieldUpdatedAt          = "updatedAt"

	fieldTitle    = "title"
	fieldContent  = "content"
	fieldVerse    = "verse"
	fieldOrder    = "order"
	fieldXPReward = "xpReward"

	fieldUserID       = "userId"
	fieldPasswordHash = "passwordHash"

	fieldVersion = "version"
	fieldEntries = "entries"
)

// intField reads an integral number. Missing or null yields 0.
func intField(rec docstore.Record, key string) (int, error) {
	switch v := rec[key].(type) {
	case nil:
		return 0, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("field %q: %v is not an integer", key, v)
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", key, err)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("field %q: %q is not a number", key, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("field %q: unexpected type %T", key, v)
	}
}

func stringField(rec docstore.Record, key string) string {
	s, _ := rec[key].(string)
	return s
}

// stringsField reads an array of strings, dropping duplicates while keeping order.
func stringsField(rec docstore.Record, key string) ([]string, error) {
	raw, ok := rec[key]
	if !ok || raw == nil {
		return []string{}, nil
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	default:
		return nil, fmt.Errorf("field %q: unexpected type %T", key, raw)
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: element %v is not a string", key, item)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}

func timeField(rec docstore.Record, key string) time.Time {
	s, ok := rec[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
