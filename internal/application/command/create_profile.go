package command

import (
	"context"
	"time"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/progress"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE PROFILE COMMAND
// Создаёт пустой профиль прогресса для нового пользователя.
// ══════════════════════════════════════════════════════════════════════════════

// CreateProfileCommand содержит данные нового профиля.
type CreateProfileCommand struct {
	UserID      string
	Email       string
	DisplayName string
}

// CreateProfileHandler обрабатывает команду CreateProfile.
type CreateProfileHandler struct {
	users     progress.Repository
	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewCreateProfileHandler создаёт обработчик.
func NewCreateProfileHandler(
	users progress.Repository,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *CreateProfileHandler {
	if log == nil {
		log = logger.Nop()
	}
	if clock == nil {
		clock = timeutil.NewSystemClock(time.UTC)
	}
	return &CreateProfileHandler{
		users:     users,
		publisher: publisher,
		clock:     clock,
		log:       log.With(logger.Component("create_profile")),
	}
}

// Handle создаёт профиль. Для существующего профиля возвращает shared.ErrProfileExists.
func (h *CreateProfileHandler) Handle(ctx context.Context, cmd CreateProfileCommand) (*progress.UserProgress, error) {
	now := h.clock.Now()

	u, err := progress.NewUserProgress(cmd.UserID, cmd.Email, cmd.DisplayName, now)
	if err != nil {
		return nil, err
	}
	if err := h.users.Create(ctx, u); err != nil {
		return nil, err
	}

	h.log.Info("profile created", logger.UserID(u.ID), logger.Email(u.Email))

	if h.publisher != nil {
		if err := h.publisher.Publish(shared.NewUserRegisteredEvent(u.ID, u.Email, u.DisplayName, now)); err != nil {
			h.log.Error("failed to publish user registered event", logger.UserID(u.ID), logger.Err(err))
		}
	}
	return u, nil
}

// CreateProfile позволяет провайдеру идентификации создавать профиль через этот обработчик.
func (h *CreateProfileHandler) CreateProfile(ctx context.Context, userID, email, displayName string) error {
	_, err := h.Handle(ctx, CreateProfileCommand{UserID: userID, Email: email, DisplayName: displayName})
	return err
}
