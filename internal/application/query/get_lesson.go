package query

import (
	"context"
	"strings"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/lesson"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/progress"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LESSON QUERY
// Возвращает один урок с текстом и отметкой о завершении.
// ══════════════════════════════════════════════════════════════════════════════

// GetLessonQuery содержит параметры запроса урока.
type GetLessonQuery struct {
	UserID   string
	LessonID string
}

// Validate проверяет корректность параметров запроса.
func (q GetLessonQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" || strings.TrimSpace(q.LessonID) == "" {
		return shared.WrapError("lesson", "Get", shared.ErrValidation, "user id and lesson id are required", nil)
	}
	return nil
}

// GetLessonHandler обрабатывает запрос урока.
type GetLessonHandler struct {
	users            progress.Repository
	lessons          lesson.Catalog
	sequentialUnlock bool
}

// NewGetLessonHandler создаёт обработчик.
func NewGetLessonHandler(users progress.Repository, lessons lesson.Catalog, sequentialUnlock bool) *GetLessonHandler {
	return &GetLessonHandler{users: users, lessons: lessons, sequentialUnlock: sequentialUnlock}
}

// Handle выполняет запрос.
func (h *GetLessonHandler) Handle(ctx context.Context, q GetLessonQuery) (*LessonDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	user, err := h.users.Get(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	l, err := h.lessons.Get(ctx, q.LessonID)
	if err != nil {
		return nil, err
	}

	completed := user.CompletedSet()
	dto := toLessonDTO(l, completed[l.ID], true)

	if h.sequentialUnlock && !dto.Completed {
		all, err := h.lessons.List(ctx)
		if err != nil {
			return nil, err
		}
		dto.Locked = !lesson.IsUnlocked(all, l, completed)
	}
	return &dto, nil
}
