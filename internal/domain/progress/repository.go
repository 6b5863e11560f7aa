package progress

import (
	"context"
	"time"
)

// Repository - хранилище профилей прогресса.
type Repository interface {
	// Get возвращает профиль или shared.ErrUserNotFound.
	Get(ctx context.Context, userID string) (*UserProgress, error)

	// Create сохраняет новый профиль или возвращает shared.ErrProfileExists.
	Create(ctx context.Context, u *UserProgress) error

	// ApplyCompletion атомарно записывает рассчитанное завершение.
	// Запись применяется, только если урок ещё не в списке завершённых и
	// TotalXP не изменился с момента чтения; иначе возвращается ошибка,
	// совпадающая с shared.ErrConcurrentModification.
	ApplyCompletion(ctx context.Context, c Completion, at time.Time) error
}
