package repository

import (
	"context"
	"errors"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/lesson"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/infrastructure/persistence/docstore"
)

// LessonRepository implements lesson.Catalog on the lessons collection.
type LessonRepository struct {
	store docstore.Store
}

var _ lesson.Catalog = (*LessonRepository)(nil)

// NewLessonRepository creates a catalog over store.
func NewLessonRepository(store docstore.Store) *LessonRepository {
	return &LessonRepository{store: store}
}

// List implements lesson.Catalog.
func (r *LessonRepository) List(ctx context.Context) ([]*lesson.Lesson, error) {
	records, err := r.store.ListRecords(ctx, docstore.CollectionLessons, fieldOrder)
	if err != nil {
		return nil, shared.ErrCatalogUnavailable.Wrap(err)
	}

	out := make([]*lesson.Lesson, 0, len(records))
	for _, rec := range records {
		id, _ := rec[docstore.IDField].(string)
		l, err := lessonFromRecord(id, rec)
		if err != nil {
			return nil, shared.WrapError("lesson", "Decode", shared.ErrInvalidState, "malformed lesson record "+id, err)
		}
		out = append(out, l)
	}
	// backends agree on order already; this also settles equal orders by id
	lesson.SortByOrder(out)
	return out, nil
}

// Get implements lesson.Catalog.
func (r *LessonRepository) Get(ctx context.Context, id string) (*lesson.Lesson, error) {
	rec, err := r.store.GetRecord(ctx, docstore.CollectionLessons, id)
	switch {
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, docstore.ErrInvalidArgument):
		return nil, shared.ErrLessonNotFound
	case err != nil:
		return nil, shared.ErrCatalogUnavailable.Wrap(err)
	}

	l, err := lessonFromRecord(id, rec)
	if err != nil {
		return nil, shared.WrapError("lesson", "Decode", shared.ErrInvalidState, "malformed lesson record "+id, err)
	}
	return l, nil
}

// Save implements lesson.Catalog.
func (r *LessonRepository) Save(ctx context.Context, l *lesson.Lesson) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if err := r.store.SetRecord(ctx, docstore.CollectionLessons, l.ID, lessonToRecord(l)); err != nil {
		return shared.ErrCatalogUnavailable.Wrap(err)
	}
	return nil
}

func lessonToRecord(l *lesson.Lesson) docstore.Record {
	return docstore.Record{
		fieldTitle:     l.Title,
		fieldContent:   l.Content,
		fieldVerse:     l.Verse,
		fieldOrder:     l.Order,
		fieldXPReward:  l.XPReward,
		fieldCreatedAt: formatTime(l.CreatedAt),
	}
}

func lessonFromRecord(id string, rec docstore.Record) (*lesson.Lesson, error) {
	l := &lesson.Lesson{
		ID:        id,
		Title:     stringField(rec, fieldTitle),
		Content:   stringField(rec, fieldContent),
		Verse:     stringField(rec, fieldVerse),
		CreatedAt: timeField(rec, fieldCreatedAt),
	}

	var err error
	if l.Order, err = intField(rec, fieldOrder); err != nil {
		return nil, err
	}
	// a malformed reward is treated like a missing one
	if l.XPReward, err = intField(rec, fieldXPReward); err != nil {
		l.XPReward = 0
	}
	return l, nil
}
