package eventhandler

import (
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
)

// EventLogHandler пишет каждое доменное событие в структурированный лог.
type EventLogHandler struct {
	logger *logger.Logger
}

// NewEventLogHandler создаёт обработчик.
func NewEventLogHandler(log *logger.Logger) *EventLogHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &EventLogHandler{logger: log.With(logger.Component("events"))}
}

// Register подписывает обработчик на все события.
func (h *EventLogHandler) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(h.Handle)
}

// Handle логирует событие.
func (h *EventLogHandler) Handle(event shared.Event) error {
	fields := []logger.Field{
		logger.String("event_type", string(event.EventType())),
		logger.String("aggregate_id", event.AggregateID()),
		logger.Time("occurred_at", event.OccurredAt()),
	}
	for k, v := range event.Payload() {
		fields = append(fields, logger.Any(k, v))
	}
	h.logger.Info("domain event", fields...)
	return nil
}
