package query

import (
	"context"
	"strings"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/lesson"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/progress"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD QUERY
// Собирает всё, что нужно главной странице: статистику, шкалу уровня,
// список уроков и следующий урок.
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardQuery содержит параметры запроса дашборда.
type GetDashboardQuery struct {
	UserID string
}

// Validate проверяет корректность параметров запроса.
func (q GetDashboardQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return shared.WrapError("progress", "Dashboard", shared.ErrValidation, "user id is required", nil)
	}
	return nil
}

// ProfileDTO - профиль пользователя в ответе API.
type ProfileDTO struct {
	ID                 string  `json:"id"`
	DisplayName        string  `json:"displayName"`
	Email              string  `json:"email"`
	TotalXP            int     `json:"totalXP"`
	Level              int     `json:"level"`
	CurrentStreak      int     `json:"currentStreak"`
	BestStreak         int     `json:"bestStreak"`
	LastCompletionDate *string `json:"lastCompletionDate"`
	CompletedCount     int     `json:"completedCount"`
}

// NewProfileDTO преобразует профиль в DTO.
func NewProfileDTO(u *progress.UserProgress) ProfileDTO {
	dto := ProfileDTO{
		ID:             u.ID,
		DisplayName:    u.DisplayName,
		Email:          u.Email,
		TotalXP:        u.TotalXP,
		Level:          u.Level,
		CurrentStreak:  u.CurrentStreak,
		BestStreak:     u.BestStreak,
		CompletedCount: u.CompletedCount(),
	}
	if u.LastCompletionDate != nil {
		s := u.LastCompletionDate.String()
		dto.LastCompletionDate = &s
	}
	return dto
}

// DashboardDTO - данные дашборда.
type DashboardDTO struct {
	Profile       ProfileDTO             `json:"profile"`
	LevelProgress progress.LevelProgress `json:"levelProgress"`
	Lessons       []LessonDTO            `json:"lessons"`

	// NextLesson - первый незавершённый урок; nil, когда всё пройдено.
	NextLesson *LessonDTO `json:"nextLesson"`

	TotalLessons   int  `json:"totalLessons"`
	AllCompleted   bool `json:"allCompleted"`
	CompletedCount int  `json:"completedCount"`
}

// GetDashboardHandler обрабатывает запрос дашборда.
type GetDashboardHandler struct {
	users            progress.Repository
	lessons          lesson.Catalog
	sequentialUnlock bool
}

// NewGetDashboardHandler создаёт обработчик.
func NewGetDashboardHandler(users progress.Repository, lessons lesson.Catalog, sequentialUnlock bool) *GetDashboardHandler {
	return &GetDashboardHandler{users: users, lessons: lessons, sequentialUnlock: sequentialUnlock}
}

// Handle выполняет запрос.
func (h *GetDashboardHandler) Handle(ctx context.Context, q GetDashboardQuery) (*DashboardDTO, error) {
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
	dashboard := &DashboardDTO{
		Profile:       NewProfileDTO(user),
		LevelProgress: progress.ProgressFor(user.TotalXP),
		Lessons:       lessonDTOs(all, completed, h.sequentialUnlock, false),
		TotalLessons:  len(all),
	}

	// Считаем только уроки, которые ещё есть в каталоге.
	for _, l := range all {
		if completed[l.ID] {
			dashboard.CompletedCount++
		}
	}

	if next := lesson.NextLesson(all, completed); next != nil {
		dto := toLessonDTO(next, false, false)
		dashboard.NextLesson = &dto
	}
	dashboard.AllCompleted = len(all) > 0 && dashboard.NextLesson == nil

	return dashboard, nil
}
