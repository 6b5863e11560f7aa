// Package docstore defines the document store used by the repositories and
// an in-memory implementation of it. Backends for PostgreSQL, SQLite and Redis
// live in sibling packages and share the helpers in this package.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("docstore: record not found")

	// ErrConditionFailed is returned when an UpdateFields condition is false
	// or when a backend lost an optimistic race while applying it.
	ErrConditionFailed = errors.New("docstore: condition failed")

	// ErrInvalidArgument is returned for empty collection/id or unsafe field names.
	ErrInvalidArgument = errors.New("docstore: invalid argument")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("docstore: store is closed")
)

// ══════════════════════════════════════════════════════════════════════════════
// TYPES
// ══════════════════════════════════════════════════════════════════════════════

// IDField is the key under which every returned record carries its id.
const IDField = "id"

// Collections used by the service.
const (
	CollectionUsers    = "users"
	CollectionLessons  = "lessons"
	CollectionAccounts = "accounts"
	CollectionActivity = "activity"
)

// Record is a JSON object. Values read back from any backend have JSON types:
// numbers are float64, arrays are []any, objects are map[string]any.
type Record map[string]any

// Fields is a set of top-level fields to merge into a record.
type Fields map[string]any

// ConditionOp enumerates supported update preconditions.
type ConditionOp int

const (
	// OpNotContains holds when the array field does not contain Value
	// (a missing field counts as an empty array).
	OpNotContains ConditionOp = iota + 1

	// OpEquals holds when the field equals Value after JSON normalisation.
	OpEquals
)

// Condition guards UpdateFields.
type Condition struct {
	Op    ConditionOp
	Field string
	Value any
}

// NotContains builds an OpNotContains condition.
func NotContains(field string, value any) Condition {
	return Condition{Op: OpNotContains, Field: field, Value: value}
}

// Equals builds an OpEquals condition.
func Equals(field string, value any) Condition {
	return Condition{Op: OpEquals, Field: field, Value: value}
}

// Store is a keyed document store.
type Store interface {
	// GetRecord returns the record or ErrNotFound.
	GetRecord(ctx context.Context, collection, id string) (Record, error)

	// SetRecord overwrites the whole record.
	SetRecord(ctx context.Context, collection, id string, data Record) error

	// UpdateFields merges fields into an existing record in one atomic step,
	// provided every condition holds. Returns ErrNotFound or ErrConditionFailed.
	UpdateFields(ctx context.Context, collection, id string, fields Fields, conds ...Condition) error

	// ListRecords returns all records of a collection ascending by orderBy
	// (records missing the field come last, ties broken by id).
	ListRecords(ctx context.Context, collection, orderBy string) ([]Record, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidateKey checks collection and id.
func ValidateKey(collection, id string) error {
	if strings.TrimSpace(collection) == "" || strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: collection and id are required", ErrInvalidArgument)
	}
	return nil
}

// ValidateField checks that a field name is safe to embed in a JSON path.
func ValidateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: field %q", ErrInvalidArgument, field)
	}
	return nil
}

// ValidateUpdate checks key, field names and condition shapes.
func ValidateUpdate(collection, id string, fields Fields, conds []Condition) error {
	if err := ValidateKey(collection, id); err != nil {
		return err
	}
	for name := range fields {
		if err := ValidateField(name); err != nil {
			return err
		}
		if name == IDField {
			return fmt.Errorf("%w: %q cannot be updated", ErrInvalidArgument, IDField)
		}
	}
	for _, c := range conds {
		if err := ValidateField(c.Field); err != nil {
			return err
		}
		if c.Op != OpNotContains && c.Op != OpEquals {
			return fmt.Errorf("%w: unknown condition op %d", ErrInvalidArgument, c.Op)
		}
	}
	return nil
}

// Encode serialises a record with its id injected.
func Encode(id string, data Record) ([]byte, error) {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[IDField] = id
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode record: %w", err)
	}
	return b, nil
}

// Decode parses a stored record.
func Decode(b []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("docstore: decode record: %w", err)
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}

// EncodeValue serialises a single field or condition value.
func EncodeValue(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode value: %w", err)
	}
	return b, nil
}

// normalize returns v as it would read back from JSON.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Merge returns rec with fields applied on top (top-level overwrite).
func Merge(rec Record, fields Fields) (Record, error) {
	out := make(Record, len(rec)+len(fields))
	for k, v := range rec {
		out[k] = v
	}
	for k, v := range fields {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("docstore: field %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// Evaluate reports whether every condition holds for rec.
func Evaluate(rec Record, conds []Condition) (bool, error) {
	for _, c := range conds {
		want, err := normalize(c.Value)
		if err != nil {
			return false, fmt.Errorf("docstore: condition on %q: %w", c.Field, err)
		}
		got := rec[c.Field]

		switch c.Op {
		case OpNotContains:
			arr, _ := got.([]any)
			for _, el := range arr {
				if reflect.DeepEqual(el, want) {
					return false, nil
				}
			}
		case OpEquals:
			if !reflect.DeepEqual(got, want) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("%w: unknown condition op %d", ErrInvalidArgument, c.Op)
		}
	}
	return true, nil
}

// SortRecords orders records ascending by field. Numbers sort numerically,
// strings lexically, numbers before strings, missing values last, ties by id.
func SortRecords(records []Record, field string) {
	rank := func(v any) int {
		switch v.(type) {
		case float64:
			return 0
		case string:
			return 1
		case nil:
			return 3
		default:
			return 2
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i][field], records[j][field]
		ra, rb := rank(a), rank(b)
		if ra != rb {
			return ra < rb
		}
		switch av := a.(type) {
		case float64:
			if bv := b.(float64); av != bv {
				return av < bv
			}
		case string:
			if bv := b.(string); av != bv {
				return av < bv
			}
		}
		ia, _ := records[i][IDField].(string)
		ib, _ := records[j][IDField].(string)
		return ia < ib
	})
}
