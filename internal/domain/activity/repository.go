package activity

import "context"

// Repository - интерфейс хранения ленты активности.
// Реализуется в слое инфраструктуры.
type Repository interface {
	// Get возвращает ленту пользователя или пустую ленту с Version 0, если
	// записей ещё нет.
	Get(ctx context.Context, userID string) (*Feed, error)

	// Save записывает ленту, если сохранённая версия всё ещё равна
	// expectedVersion, и увеличивает Version. Устаревшая версия даёт ошибку,
	// совпадающую с shared.ErrConcurrentModification.
	Save(ctx context.Context, feed *Feed, expectedVersion int) error
}
