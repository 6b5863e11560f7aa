package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/activity"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
)

var errActivityStore = shared.NewDomainError("activity", "Store", shared.ErrServiceUnavailable, "activity store unavailable")

// ActivityRepository implements activity.Repository, one record per user.
type ActivityRepository struct {
	store docstore.Store
}

var _ activity.Repository = (*ActivityRepository)(nil)

// NewActivityRepository creates a repository over store.
func NewActivityRepository(store docstore.Store) *ActivityRepository {
	return &ActivityRepository{store: store}
}

// Get implements activity.Repository.
func (r *ActivityRepository) Get(ctx context.Context, userID string) (*activity.Feed, error) {
	feed, err := activity.NewFeed(userID)
	if err != nil {
		return nil, shared.WrapError("activity", "Get", shared.ErrValidation, "user id is required", err)
	}

	rec, err := r.store.GetRecord(ctx, docstore.CollectionActivity, userID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return feed, nil
	case err != nil:
		return nil, errActivityStore.Wrap(err)
	}

	if feed.Version, err = intField(rec, fieldVersion); err != nil {
		return nil, shared.WrapError("activity", "Decode", shared.ErrInvalidState, "malformed activity record", err)
	}
	if raw, ok := rec[fieldEntries]; ok && raw != nil {
		b, err := json.Marshal(raw)
		if err == nil {
			err = json.Unmarshal(b, &feed.Entries)
		}
		if err != nil {
			return nil, shared.WrapError("activity", "Decode", shared.ErrInvalidState, "malformed activity entries", err)
		}
	}
	return feed, nil
}

// Save implements activity.Repository. The first save of a feed is a plain
// write; later saves are conditional on the stored version.
func (r *ActivityRepository) Save(ctx context.Context, feed *activity.Feed, expectedVersion int) error {
	next := expectedVersion + 1
	fields := docstore.Fields{
		fieldUserID:  feed.UserID,
		fieldVersion: next,
		fieldEntries: feed.Entries,
	}

	err := r.store.UpdateFields(ctx, docstore.CollectionActivity, feed.UserID, fields,
		docstore.Equals(fieldVersion, expectedVersion))
	if errors.Is(err, docstore.ErrNotFound) && expectedVersion == 0 {
		err = r.store.SetRecord(ctx, docstore.CollectionActivity, feed.UserID, docstore.Record(fields))
	}

	switch {
	case err == nil:
		feed.Version = next
		return nil
	case errors.Is(err, docstore.ErrConditionFailed), errors.Is(err, docstore.ErrNotFound):
		return shared.WrapError("activity", "Save", shared.ErrConcurrentModification, "activity feed changed since it was read", err)
	default:
		return errActivityStore.Wrap(err)
	}
}
