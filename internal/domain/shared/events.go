package shared

import (
	"time"
)

// EventType - тип доменного события.
type EventType string

// Типы доменных событий. Каждое публикуется после того, как описанное им
// изменение сохранено.
const (
	// События аккаунта
	EventUserRegistered EventType = "user.registered"

	// События прогресса
	EventLessonCompleted EventType = "progress.lesson_completed"
	EventXPGained        EventType = "progress.xp_gained"
	EventLevelUp         EventType = "progress.level_up"
	EventStreakUpdated   EventType = "progress.streak_updated"
	EventStreakReset     EventType = "progress.streak_reset"

	// События каталога
	EventLessonsSeeded EventType = "lesson.seeded"
)

// Event - базовый интерфейс доменных событий.
type Event interface {
	// EventType возвращает тип события.
	EventType() EventType

	// OccurredAt возвращает время события.
	OccurredAt() time.Time

	// AggregateID возвращает ID агрегата, породившего событие.
	AggregateID() string

	// Payload возвращает данные события в виде map для сериализации.
	Payload() map[string]interface{}
}

// BaseEvent - общая часть всех событий.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType реализует интерфейс Event.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt реализует интерфейс Event.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID реализует интерфейс Event.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent создаёт базовое событие.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// События аккаунта
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent публикуется при создании профиля.
type UserRegisteredEvent struct {
	BaseEvent
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Payload реализует интерфейс Event.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":        e.Email,
		"display_name": e.DisplayName,
	}
}

// NewUserRegisteredEvent создаёт событие.
func NewUserRegisteredEvent(userID, email, displayName string, at time.Time) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventUserRegistered, userID, at),
		Email:       email,
		DisplayName: displayName,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// События прогресса
// ═══════════════════════════════════════════════════════════════════════════

// LessonCompletedEvent публикуется один раз на пару (пользователь, урок).
type LessonCompletedEvent struct {
	BaseEvent
	LessonID string `json:"lesson_id"`
	XPGained int    `json:"xp_gained"`
	NewTotal int    `json:"new_total"`
	Date     string `json:"date"`
}

// Payload реализует интерфейс Event.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"lesson_id": e.LessonID,
		"xp_gained": e.XPGained,
		"new_total": e.NewTotal,
		"date":      e.Date,
	}
}

// NewLessonCompletedEvent создаёт событие.
func NewLessonCompletedEvent(userID, lessonID string, xpGained, newTotal int, date string, at time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent(EventLessonCompleted, userID, at),
		LessonID:  lessonID,
		XPGained:  xpGained,
		NewTotal:  newTotal,
		Date:      date,
	}
}

// XPGainedEvent публикуется при начислении XP.
type XPGainedEvent struct {
	BaseEvent
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	Source   string `json:"source"`
	SourceID string `json:"source_id,omitempty"`
}

// Payload реализует интерфейс Event.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
		"source_id": e.SourceID,
	}
}

// NewXPGainedEvent создаёт событие.
func NewXPGainedEvent(userID string, amount, newTotal int, source, sourceID string, at time.Time) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, userID, at),
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
		SourceID:  sourceID,
	}
}

// LevelUpEvent публикуется, когда завершение урока повышает уровень.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
	TotalXP  int `json:"total_xp"`
}

// Payload реализует интерфейс Event.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"total_xp":  e.TotalXP,
	}
}

// NewLevelUpEvent создаёт событие.
func NewLevelUpEvent(userID string, oldLevel, newLevel, totalXP int, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID, at),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// StreakChangedEvent публикуется с типом EventStreakUpdated, когда серия
// выросла или началась, и с EventStreakReset, когда пропуск сбросил её до 1.
type StreakChangedEvent struct {
	BaseEvent
	OldStreak  int `json:"old_streak"`
	NewStreak  int `json:"new_streak"`
	BestStreak int `json:"best_streak"`
}

// Payload реализует интерфейс Event.
func (e StreakChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_streak":  e.OldStreak,
		"new_streak":  e.NewStreak,
		"best_streak": e.BestStreak,
	}
}

// NewStreakChangedEvent выбирает тип события по переходу.
func NewStreakChangedEvent(userID string, oldStreak, newStreak, best int, at time.Time) StreakChangedEvent {
	eventType := EventStreakUpdated
	if newStreak < oldStreak || (newStreak == 1 && oldStreak > 1) {
		eventType = EventStreakReset
	}
	return StreakChangedEvent{
		BaseEvent:  NewBaseEvent(eventType, userID, at),
		OldStreak:  oldStreak,
		NewStreak:  newStreak,
		BestStreak: best,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// События каталога
// ═══════════════════════════════════════════════════════════════════════════

// LessonsSeededEvent публикуется после заполнения каталога.
type LessonsSeededEvent struct {
	BaseEvent
	Count int `json:"count"`
}

// Payload реализует интерфейс Event.
func (e LessonsSeededEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"count": e.Count}
}

// NewLessonsSeededEvent создаёт событие.
func NewLessonsSeededEvent(count int, at time.Time) LessonsSeededEvent {
	return LessonsSeededEvent{
		BaseEvent: NewBaseEvent(EventLessonsSeeded, "lessons", at),
		Count:     count,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Порты шины
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler - функция-обработчик события.
type EventHandler func(event Event) error

// EventPublisher - интерфейс публикации событий.
type EventPublisher interface {
	// Publish отправляет событие подписчикам.
	Publish(event Event) error
}

// EventSubscriber - интерфейс подписки на события.
type EventSubscriber interface {
	// Subscribe регистрирует обработчик для типа события.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll регистрирует обработчик для всех событий.
	SubscribeAll(handler EventHandler) error
}

// EventBus объединяет публикацию и подписку.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
