package query

import (
	"context"
	"strings"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/progress"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
)

// GetProfileHandler возвращает профиль текущего пользователя.
type GetProfileHandler struct {
	users progress.Repository
}

// NewGetProfileHandler создаёт обработчик.
func NewGetProfileHandler(users progress.Repository) *GetProfileHandler {
	return &GetProfileHandler{users: users}
}

// Handle выполняет запрос.
func (h *GetProfileHandler) Handle(ctx context.Context, userID string) (*ProfileDTO, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, shared.WrapError("progress", "Profile", shared.ErrValidation, "user id is required", nil)
	}
	u, err := h.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := NewProfileDTO(u)
	return &dto, nil
}
