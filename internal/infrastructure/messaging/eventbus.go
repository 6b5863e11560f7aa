// Package messaging implements the in-process event bus that carries
// progress events from the command handlers to their subscribers.
package messaging

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")
	ErrHandlerPanic   = errors.New("handler panicked")
	errNilHandler     = errors.New("event bus: nil handler")
	errNilEvent       = errors.New("event bus: nil event")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig configures InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on background workers; Publish does not wait.
	AsyncMode bool

	// WorkerPoolSize bounds concurrent async handlers. Defaults to 10.
	WorkerPoolSize int

	EnableMetrics bool
	Logger        *logger.Logger
}

// DefaultInMemoryEventBusConfig is async with 10 workers and metrics on.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 10, EnableMetrics: true}
}

// InMemoryEventBus delivers events to handlers in this process. Handler
// errors and panics are logged and counted, never returned to the publisher.
type InMemoryEventBus struct {
	async   bool
	slots   chan struct{}
	log     *logger.Logger
	metrics *EventBusMetrics

	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	wildcard []shared.EventHandler
	closed   bool
	done     chan struct{}
	inFlight sync.WaitGroup
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	workers := config.WorkerPoolSize
	if workers <= 0 {
		workers = 10
	}

	b := &InMemoryEventBus{
		async:  config.AsyncMode,
		slots:  make(chan struct{}, workers),
		log:    log.With(logger.Component("eventbus")),
		byType: make(map[shared.EventType][]shared.EventHandler),
		done:   make(chan struct{}),
	}
	if config.EnableMetrics {
		b.metrics = NewEventBusMetrics()
	}
	return b
}

// Subscribe registers handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.register(func() {
		b.byType[eventType] = append(b.byType[eventType], handler)
	}, handler)
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.register(func() {
		b.wildcard = append(b.wildcard, handler)
	}, handler)
}

func (b *InMemoryEventBus) register(add func(), handler shared.EventHandler) error {
	if handler == nil {
		return errNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// Publish hands event to its type subscribers, then to the wildcard ones.
// In sync mode handlers run in the caller's goroutine in that order.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	typed := b.byType[event.EventType()]
	targets := make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))
	targets = append(append(targets, typed...), b.wildcard...)
	if b.async {
		// Added under the read lock so Close cannot miss them.
		b.inFlight.Add(len(targets))
	}
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.published(event.EventType())
	}

	for _, h := range targets {
		if b.async {
			go b.dispatch(event, h)
		} else {
			b.deliver(event, h)
		}
	}
	return nil
}

func (b *InMemoryEventBus) dispatch(event shared.Event, h shared.EventHandler) {
	defer b.inFlight.Done()

	select {
	case b.slots <- struct{}{}:
	case <-b.done:
		return
	}
	defer func() { <-b.slots }()

	b.deliver(event, h)
}

func (b *InMemoryEventBus) deliver(event shared.Event, h shared.EventHandler) {
	start := time.Now()
	err := b.call(event, h)
	if b.metrics != nil {
		b.metrics.handled(time.Since(start), err)
	}
	if err != nil {
		b.log.Error("event handler failed",
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
			logger.Err(err))
	}
}

func (b *InMemoryEventBus) call(event shared.Event, h shared.EventHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				logger.String("event_type", string(event.EventType())),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(event)
}

// Close rejects further publishes and waits for running handlers. Async
// handlers still waiting for a worker are dropped.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.inFlight.Wait()
	return nil
}

// Drain waits for every handler dispatched so far, without closing the bus.
func (b *InMemoryEventBus) Drain() {
	b.inFlight.Wait()
}

// Metrics returns the counters, or nil when disabled.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts publishes and handler runs.
type EventBusMetrics struct {
	mu        sync.Mutex
	byType    map[shared.EventType]int64
	runs      atomic.Int64
	failures  atomic.Int64
	totalTime atomic.Int64
}

func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{byType: make(map[shared.EventType]int64)}
}

func (m *EventBusMetrics) published(t shared.EventType) {
	m.mu.Lock()
	m.byType[t]++
	m.mu.Unlock()
}

func (m *EventBusMetrics) handled(d time.Duration, err error) {
	m.runs.Add(1)
	m.totalTime.Add(int64(d))
	if err != nil {
		m.failures.Add(1)
	}
}

// EventBusMetricsSnapshot is a point-in-time copy of the counters.
type EventBusMetricsSnapshot struct {
	Published              map[shared.EventType]int64 `json:"published"`
	TotalPublished         int64                      `json:"total_published"`
	HandlerExecutions      int64                      `json:"handler_executions"`
	HandlerFailures        int64                      `json:"handler_failures"`
	AverageHandlerDuration time.Duration              `json:"average_handler_duration"`
}

func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	s := EventBusMetricsSnapshot{
		HandlerExecutions: m.runs.Load(),
		HandlerFailures:   m.failures.Load(),
	}
	if s.HandlerExecutions > 0 {
		s.AverageHandlerDuration = time.Duration(m.totalTime.Load() / s.HandlerExecutions)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s.Published = make(map[shared.EventType]int64, len(m.byType))
	for t, n := range m.byType {
		s.Published[t] = n
		s.TotalPublished += n
	}
	return s
}
