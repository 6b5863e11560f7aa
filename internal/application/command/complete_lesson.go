// Package command содержит операции записи (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/lesson"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/progress"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE LESSON COMMAND
// Начисляет XP за урок, пересчитывает уровень и дневную серию и отмечает
// урок завершённым. Каждый урок награждается не больше одного раза.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteLessonCommand содержит данные для завершения урока.
type CompleteLessonCommand struct {
	// UserID - аутентифицированный пользователь.
	UserID string

	// LessonID - завершаемый урок.
	LessonID string
}

// Validate проверяет корректность команды.
func (c CompleteLessonCommand) Validate() error {
	var problems []string
	if strings.TrimSpace(c.UserID) == "" {
		problems = append(problems, "user id is required")
	}
	if strings.TrimSpace(c.LessonID) == "" {
		problems = append(problems, "lesson id is required")
	}
	if len(problems) > 0 {
		return shared.WrapError("progress", "CompleteLesson", shared.ErrValidation, strings.Join(problems, "; "), nil)
	}
	return nil
}

// CompleteLessonResult возвращается после успешного завершения урока.
type CompleteLessonResult struct {
	LessonID        string `json:"lessonId"`
	XPGained        int    `json:"xpGained"`
	NewTotalXP      int    `json:"newTotalXP"`
	NewLevel        int    `json:"newLevel"`
	LeveledUp       bool   `json:"leveledUp"`
	NewStreak       int    `json:"newStreak"`
	PreviousStreak  int    `json:"previousStreak"`
	StreakIncreased bool   `json:"streakIncreased"`
	BestStreak      int    `json:"bestStreak"`
	CompletionDate  string `json:"completionDate"`
}

// CompleteLessonConfig - настройки обработчика.
type CompleteLessonConfig struct {
	// SequentialUnlock требует сначала завершить все уроки с меньшим
	// порядковым номером.
	SequentialUnlock bool
}

// CompleteLessonHandler обрабатывает команду CompleteLesson.
type CompleteLessonHandler struct {
	users     progress.Repository
	lessons   lesson.Catalog
	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
	config    CompleteLessonConfig
}

// NewCompleteLessonHandler создаёт обработчик.
func NewCompleteLessonHandler(
	users progress.Repository,
	lessons lesson.Catalog,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
	config CompleteLessonConfig,
) *CompleteLessonHandler {
	if log == nil {
		log = logger.Nop()
	}
	if clock == nil {
		clock = timeutil.NewSystemClock(time.UTC)
	}
	return &CompleteLessonHandler{
		users:     users,
		lessons:   lessons,
		publisher: publisher,
		clock:     clock,
		log:       log.With(logger.Component("complete_lesson")),
		config:    config,
	}
}

// Handle выполняет команду. При любой ошибке запись пользователя остаётся
// нетронутой; проигранная оптимистичная гонка возвращается как повторяемая
// ошибка и здесь не повторяется.
func (h *CompleteLessonHandler) Handle(ctx context.Context, cmd CompleteLessonCommand) (*CompleteLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Шаг 1: Загружаем снимок пользователя
	user, err := h.users.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	// Шаг 2: Проверка идемпотентности до остальных чтений
	if user.HasCompleted(cmd.LessonID) {
		return nil, shared.ErrLessonCompleted
	}

	// Шаг 3: Загружаем урок
	l, err := h.lessons.Get(ctx, cmd.LessonID)
	if err != nil {
		return nil, err
	}

	if h.config.SequentialUnlock {
		all, err := h.lessons.List(ctx)
		if err != nil {
			return nil, err
		}
		if !lesson.IsUnlocked(all, l, user.CompletedSet()) {
			return nil, shared.ErrLessonLocked
		}
	}

	if l.RewardDefaulted() {
		h.log.Warn("lesson has no positive xp reward, using default",
			logger.LessonID(l.ID), logger.XPAmount(lesson.DefaultXPReward))
	}

	// Шаг 4: Вычисляем новое состояние
	now := h.clock.Now()
	today := progress.DateOf(now.In(h.clock.Location()))

	completion, err := progress.Plan(user, l.ID, l.Reward(), today)
	if err != nil {
		return nil, err
	}

	// Шаг 5: Условная запись
	if err := h.users.ApplyCompletion(ctx, completion, now); err != nil {
		if errors.Is(err, shared.ErrConcurrentModification) {
			return nil, h.resolveConflict(ctx, cmd, err)
		}
		return nil, err
	}

	h.log.Info("lesson completed",
		logger.UserID(cmd.UserID),
		logger.LessonID(l.ID),
		logger.XPAmount(completion.XPGained),
		logger.LevelValue(completion.NewLevel),
		logger.StreakValue(completion.NewStreak))

	// Шаг 6: Публикуем события
	h.publishEvents(completion, now)

	return &CompleteLessonResult{
		LessonID:        l.ID,
		XPGained:        completion.XPGained,
		NewTotalXP:      completion.NewTotalXP,
		NewLevel:        completion.NewLevel,
		LeveledUp:       completion.LeveledUp,
		NewStreak:       completion.NewStreak,
		PreviousStreak:  completion.PreviousStreak,
		StreakIncreased: completion.StreakIncreased(),
		BestStreak:      completion.BestStreak,
		CompletionDate:  completion.CompletionDate.String(),
	}, nil
}

// resolveConflict перечитывает запись после неудачной условной записи.
func (h *CompleteLessonHandler) resolveConflict(ctx context.Context, cmd CompleteLessonCommand, cause error) error {
	current, err := h.users.Get(ctx, cmd.UserID)
	if err != nil {
		return err
	}
	if current.HasCompleted(cmd.LessonID) {
		return shared.ErrLessonCompleted
	}

	h.log.Warn("completion lost a concurrent update",
		logger.UserID(cmd.UserID), logger.LessonID(cmd.LessonID))
	return shared.ErrCompletionRace.Wrap(cause)
}

func (h *CompleteLessonHandler) publishEvents(c progress.Completion, now time.Time) {
	if h.publisher == nil {
		return
	}

	events := []shared.Event{
		shared.NewLessonCompletedEvent(c.UserID, c.LessonID, c.XPGained, c.NewTotalXP, c.CompletionDate.String(), now),
		shared.NewXPGainedEvent(c.UserID, c.XPGained, c.NewTotalXP, "lesson", c.LessonID, now),
	}
	if c.LeveledUp {
		events = append(events, shared.NewLevelUpEvent(c.UserID, c.PreviousLevel, c.NewLevel, c.NewTotalXP, now))
	}
	if c.StreakChanged() {
		events = append(events, shared.NewStreakChangedEvent(c.UserID, c.PreviousStreak, c.NewStreak, c.BestStreak, now))
	}

	for _, e := range events {
		if err := h.publisher.Publish(e); err != nil {
			h.log.Error("failed to publish event",
				logger.String("event_type", string(e.EventType())), logger.Err(err))
		}
	}
}
