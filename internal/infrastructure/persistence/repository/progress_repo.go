package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/progress"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
)

// ProgressRepository implements progress.Repository on the users collection.
type ProgressRepository struct {
	store docstore.Store
}

var _ progress.Repository = (*ProgressRepository)(nil)

// NewProgressRepository creates a repository over store.
func NewProgressRepository(store docstore.Store) *ProgressRepository {
	return &ProgressRepository{store: store}
}

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, userID string) (*progress.UserProgress, error) {
	rec, err := r.store.GetRecord(ctx, docstore.CollectionUsers, userID)
	switch {
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, docstore.ErrInvalidArgument):
		return nil, shared.ErrUserNotFound
	case err != nil:
		return nil, shared.ErrStoreUnavailable.Wrap(err)
	}

	u, err := userFromRecord(userID, rec)
	if err != nil {
		return nil, shared.WrapError("progress", "Decode", shared.ErrInvalidState, "malformed user record", err)
	}
	return u, nil
}

// Create implements progress.Repository. Existence is checked before the
// write; profiles are created once at sign-up so the gap is not guarded.
func (r *ProgressRepository) Create(ctx context.Context, u *progress.UserProgress) error {
	_, err := r.store.GetRecord(ctx, docstore.CollectionUsers, u.ID)
	switch {
	case err == nil:
		return shared.ErrProfileExists
	case errors.Is(err, docstore.ErrInvalidArgument):
		return shared.WrapError("progress", "Create", shared.ErrValidation, "user id is required", err)
	case !errors.Is(err, docstore.ErrNotFound):
		return shared.ErrStoreUnavailable.Wrap(err)
	}

	if err := r.store.SetRecord(ctx, docstore.CollectionUsers, u.ID, userToRecord(u)); err != nil {
		return shared.ErrStoreUnavailable.Wrap(err)
	}
	return nil
}

// ApplyCompletion implements progress.Repository as one conditional update.
func (r *ProgressRepository) ApplyCompletion(ctx context.Context, c progress.Completion, at time.Time) error {
	fields := docstore.Fields{
		fieldTotalXP:            c.NewTotalXP,
		fieldLevel:              c.NewLevel,
		fieldCurrentStreak:      c.NewStreak,
		fieldBestStreak:         c.BestStreak,
		fieldLastCompletionDate: c.CompletionDate.String(),
		fieldCompletedLessons:   c.CompletedLessons,
		fieldUpdatedAt:          formatTime(at),
	}

	err := r.store.UpdateFields(ctx, docstore.CollectionUsers, c.UserID, fields,
		docstore.NotContains(fieldCompletedLessons, c.LessonID),
		docstore.Equals(fieldTotalXP, c.PreviousXP),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return shared.ErrUserNotFound
	case errors.Is(err, docstore.ErrConditionFailed):
		return shared.WrapError("progress", "ApplyCompletion", shared.ErrConcurrentModification,
			"user record changed since it was read", err)
	default:
		return shared.ErrStoreUnavailable.Wrap(err)
	}
}

func userToRecord(u *progress.UserProgress) docstore.Record {
	var last any
	if u.LastCompletionDate != nil {
		last = u.LastCompletionDate.String()
	}
	completed := u.CompletedLessons
	if completed == nil {
		completed = []string{}
	}

	return docstore.Record{
		fieldDisplayName:        u.DisplayName,
		fieldEmail:              u.Email,
		fieldTotalXP:            u.TotalXP,
		fieldLevel:              u.Level,
		fieldCurrentStreak:      u.CurrentStreak,
		fieldBestStreak:         u.BestStreak,
		fieldLastCompletionDate: last,
		fieldCompletedLessons:   completed,
		fieldCreatedAt:          formatTime(u.CreatedAt),
		fieldUpdatedAt:          formatTime(u.UpdatedAt),
	}
}

func userFromRecord(id string, rec docstore.Record) (*progress.UserProgress, error) {
	u := &progress.UserProgress{
		ID:          id,
		DisplayName: stringField(rec, fieldDisplayName),
		Email:       stringField(rec, fieldEmail),
		CreatedAt:   timeField(rec, fieldCreatedAt),
		UpdatedAt:   timeField(rec, fieldUpdatedAt),
	}

	var err error
	if u.TotalXP, err = intField(rec, fieldTotalXP); err != nil {
		return nil, err
	}
	if u.Level, err = intField(rec, fieldLevel); err != nil {
		return nil, err
	}
	if u.CurrentStreak, err = intField(rec, fieldCurrentStreak); err != nil {
		return nil, err
	}
	if u.BestStreak, err = intField(rec, fieldBestStreak); err != nil {
		return nil, err
	}
	// records written before bestStreak existed
	u.BestStreak = max(u.BestStreak, u.CurrentStreak)

	if u.CompletedLessons, err = stringsField(rec, fieldCompletedLessons); err != nil {
		return nil, err
	}

	if s := stringField(rec, fieldLastCompletionDate); s != "" {
		d, err := progress.ParseDate(s)
		if err != nil {
			return nil, err
		}
		u.LastCompletionDate = &d
	}
	return u, nil
}
