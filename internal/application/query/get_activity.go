package query

import (
	"context"
	"strings"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/activity"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVITY QUERY
// Возвращает последние записи ленты активности пользователя.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultActivityLimit - размер ленты по умолчанию.
const DefaultActivityLimit = 20

// GetActivityQuery содержит параметры запроса ленты.
type GetActivityQuery struct {
	UserID string

	// Limit - сколько записей вернуть (по умолчанию 20, максимум activity.MaxEntries).
	Limit int
}

// Validate проверяет корректность параметров запроса и нормализует Limit.
func (q *GetActivityQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return shared.WrapError("activity", "Get", shared.ErrValidation, "user id is required", nil)
	}
	if q.Limit < 0 {
		return shared.WrapError("activity", "Get", shared.ErrValidation, "limit cannot be negative", nil)
	}
	if q.Limit == 0 {
		q.Limit = DefaultActivityLimit
	}
	if q.Limit > activity.MaxEntries {
		q.Limit = activity.MaxEntries
	}
	return nil
}

// ActivityDTO - лента в ответе API.
type ActivityDTO struct {
	Entries []activity.Entry `json:"entries"`
}

// GetActivityHandler обрабатывает запрос ленты.
type GetActivityHandler struct {
	feeds activity.Repository
}

// NewGetActivityHandler создаёт обработчик.
func NewGetActivityHandler(feeds activity.Repository) *GetActivityHandler {
	return &GetActivityHandler{feeds: feeds}
}

// Handle выполняет запрос.
func (h *GetActivityHandler) Handle(ctx context.Context, q GetActivityQuery) (*ActivityDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	feed, err := h.feeds.Get(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	return &ActivityDTO{Entries: feed.Recent(q.Limit)}, nil
}
