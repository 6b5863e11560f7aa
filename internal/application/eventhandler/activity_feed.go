// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"time"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/activity"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ACTIVITY FEED HANDLER
// Превращает события прогресса в записи ленты активности пользователя.
//
// Лента обновляется оптимистично: прочитали версию, добавили запись,
// записали с условием на версию. При конфликте операция повторяется.
// XPGained не пишется в ленту: его данные уже есть в LessonCompleted.
// ═══════════════════════════════════════════════════════════════════════════

// ActivityFeedConfig содержит конфигурацию обработчика.
type ActivityFeedConfig struct {
	// Timeout - ограничение на обработку одного события.
	Timeout time.Duration

	// Retry - политика повторов при конфликте версий и сбоях хранилища.
	Retry retry.Policy
}

// DefaultActivityFeedConfig возвращает конфигурацию по умолчанию.
func DefaultActivityFeedConfig() ActivityFeedConfig {
	return ActivityFeedConfig{
		Timeout: 5 * time.Second,
		Retry: retry.NewPolicy(
			retry.WithMaxAttempts(10),
			retry.WithInitialDelay(5*time.Millisecond),
			retry.WithMaxDelay(200*time.Millisecond),
			retry.WithJitter(0.5),
			retry.WithRetryIf(shared.IsRetryable),
		),
	}
}

// ActivityFeedHandler записывает события в ленту активности.
type ActivityFeedHandler struct {
	feeds  activity.Repository
	logger *logger.Logger
	config ActivityFeedConfig
}

// NewActivityFeedHandler создаёт обработчик.
func NewActivityFeedHandler(feeds activity.Repository, log *logger.Logger, config ActivityFeedConfig) *ActivityFeedHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &ActivityFeedHandler{
		feeds:  feeds,
		logger: log.With(logger.Component("activity_feed")),
		config: config,
	}
}

// Register подписывает обработчик на нужные события.
func (h *ActivityFeedHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventUserRegistered,
		shared.EventLessonCompleted,
		shared.EventLevelUp,
		shared.EventStreakUpdated,
		shared.EventStreakReset,
	} {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle обрабатывает одно событие.
func (h *ActivityFeedHandler) Handle(event shared.Event) error {
	entry, ok := toEntry(event)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	userID := event.AggregateID()
	err := retry.Do(ctx, h.config.Retry, func(ctx context.Context) error {
		feed, err := h.feeds.Get(ctx, userID)
		if err != nil {
			return err
		}
		expected := feed.Version
		if err := feed.Add(entry); err != nil {
			return retry.Permanent(err)
		}
		return h.feeds.Save(ctx, feed, expected)
	})
	if err != nil {
		h.logger.Error("failed to append activity",
			logger.UserID(userID),
			logger.String("kind", string(entry.Kind)),
			logger.Err(err))
		return err
	}

	h.logger.Debug("activity appended", logger.UserID(userID), logger.String("kind", string(entry.Kind)))
	return nil
}

// toEntry сопоставляет событию запись ленты.
func toEntry(event shared.Event) (activity.Entry, bool) {
	at := event.OccurredAt()

	switch e := event.(type) {
	case shared.UserRegisteredEvent:
		return activity.Entry{Kind: activity.KindJoined, At: at}, true

	case shared.LessonCompletedEvent:
		return activity.Entry{
			Kind:     activity.KindLessonCompleted,
			LessonID: e.LessonID,
			XP:       e.XPGained,
			TotalXP:  e.NewTotal,
			Date:     e.Date,
			At:       at,
		}, true

	case shared.LevelUpEvent:
		return activity.Entry{Kind: activity.KindLevelUp, Level: e.NewLevel, TotalXP: e.TotalXP, At: at}, true

	case shared.StreakChangedEvent:
		kind := activity.KindStreakExtended
		if e.EventType() == shared.EventStreakReset {
			kind = activity.KindStreakReset
		}
		return activity.Entry{Kind: kind, Streak: e.NewStreak, At: at}, true
	}
	return activity.Entry{}, false
}
