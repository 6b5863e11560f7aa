// Package query содержит операции чтения (CQRS - Queries).
package query

import (
	"context"
	"strings"
	"time"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/lesson"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/progress"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST LESSONS QUERY
// Возвращает каталог уроков по порядку с отметкой о завершении для пользователя.
// ══════════════════════════════════════════════════════════════════════════════

// ListLessonsQuery содержит параметры запроса каталога.
type ListLessonsQuery struct {
	// UserID - пользователь, для которого отмечаются завершённые уроки.
	UserID string
}

// Validate проверяет корректность параметров запроса.
func (q ListLessonsQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return shared.WrapError("lesson", "List", shared.ErrValidation, "user id is required", nil)
	}
	return nil
}

// LessonDTO - урок в ответе API.
type LessonDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Verse     string    `json:"verse"`
	Order     int       `json:"order"`
	XPReward  int       `json:"xpReward"`
	Completed bool      `json:"completed"`
	Locked    bool      `json:"locked,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// ListLessonsResult - каталог с отметками.
type ListLessonsResult struct {
	Lessons        []LessonDTO `json:"lessons"`
	CompletedCount int         `json:"completedCount"`
	TotalCount     int         `json:"totalCount"`
}

// ListLessonsHandler обрабатывает запрос каталога.
type ListLessonsHandler struct {
	users            progress.Repository
	lessons          lesson.Catalog
	sequentialUnlock bool
}

// NewListLessonsHandler создаёт обработчик. sequentialUnlock включает
// отметку Locked для уроков, перед которыми есть незавершённые.
func NewListLessonsHandler(users progress.Repository, lessons lesson.Catalog, sequentialUnlock bool) *ListLessonsHandler {
	return &ListLessonsHandler{users: users, lessons: lessons, sequentialUnlock: sequentialUnlock}
}

// Handle выполняет запрос. Ошибка чтения каталога возвращается как есть;
// решение о деградации принимает слой представления.
func (h *ListLessonsHandler) Handle(ctx context.Context, q ListLessonsQuery) (*ListLessonsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	user, err := h.users.Get(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	all, err := h.lessons.List(ctx)
	if err != nil {
		return nil, err
	}

	completed := user.CompletedSet()
	dtos := lessonDTOs(all, completed, h.sequentialUnlock, false)

	result := &ListLessonsResult{Lessons: dtos, TotalCount: len(dtos)}
	for _, d := range dtos {
		if d.Completed {
			result.CompletedCount++
		}
	}
	return result, nil
}

// toLessonDTO собирает DTO урока. Содержимое включается только по запросу,
// чтобы список оставался компактным.
func toLessonDTO(l *lesson.Lesson, completed bool, withContent bool) LessonDTO {
	dto := LessonDTO{
		ID:        l.ID,
		Title:     l.Title,
		Verse:     l.Verse,
		Order:     l.Order,
		XPReward:  l.Reward(),
		Completed: completed,
		CreatedAt: l.CreatedAt,
	}
	if withContent {
		dto.Content = l.Content
	}
	return dto
}

func lessonDTOs(all []*lesson.Lesson, completed map[string]bool, sequential, withContent bool) []LessonDTO {
	dtos := make([]LessonDTO, 0, len(all))
	for _, l := range all {
		dto := toLessonDTO(l, completed[l.ID], withContent)
		if sequential && !dto.Completed {
			dto.Locked = !lesson.IsUnlocked(all, l, completed)
		}
		dtos = append(dtos, dto)
	}
	return dtos
}
