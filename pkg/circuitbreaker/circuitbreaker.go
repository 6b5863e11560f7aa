// Package circuitbreaker stops callers from piling onto a backend that keeps
// failing. After enough consecutive failures the breaker opens and rejects
// calls until a cool-down passes; then a limited number of probe calls decide
// whether it closes again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrCircuitOpen is returned without running the call while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrProbeInFlight is returned in half-open state when every probe slot is taken.
	ErrProbeInFlight = errors.New("circuit breaker probe in flight")
)

// IsRejected reports whether err came from the breaker rather than the call.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrProbeInFlight)
}

// Settings tune a breaker. Zero values are replaced by defaults in New.
type Settings struct {
	Name string

	// FailureThreshold consecutive failures open a closed breaker.
	FailureThreshold int

	// SuccessThreshold consecutive probe successes close a half-open breaker.
	SuccessThreshold int

	// CoolDown is how long the breaker stays open before probing.
	CoolDown time.Duration

	// Probes is how many calls may run concurrently while half-open.
	Probes int

	// IsFailure classifies errors. Nil counts every non-nil error.
	IsFailure func(error) bool

	// OnStateChange runs under the breaker lock and must not call back into it.
	OnStateChange func(name string, from, to State)

	Now func() time.Time
}

// Option adjusts Settings.
type Option func(*Settings)

func WithFailureThreshold(n int) Option       { return func(s *Settings) { s.FailureThreshold = n } }
func WithSuccessThreshold(n int) Option       { return func(s *Settings) { s.SuccessThreshold = n } }
func WithTimeout(d time.Duration) Option       { return func(s *Settings) { s.CoolDown = d } }
func WithProbes(n int) Option                  { return func(s *Settings) { s.Probes = n } }
func WithIsFailure(fn func(error) bool) Option { return func(s *Settings) { s.IsFailure = fn } }
func WithClock(now func() time.Time) Option    { return func(s *Settings) { s.Now = now } }

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *Settings) { s.OnStateChange = fn }
}

// Counts are cumulative call outcomes since creation or the last Reset.
type Counts struct {
	Requests       int
	TotalSuccesses int
	TotalFailures  int
}

// CircuitBreaker guards calls to one backend. Safe for concurrent use.
type CircuitBreaker struct {
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	streak   int // consecutive failures (closed) or successes (half-open)
	openedAt time.Time
	inFlight int
}

// New builds a breaker. Non-positive thresholds fall back to 5 failures,
// 2 successes, a 30s cool-down and a single probe.
func New(name string, opts ...Option) *CircuitBreaker {
	s := Settings{Name: name}
	for _, opt := range opts {
		opt(&s)
	}
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = 2
	}
	if s.CoolDown <= 0 {
		s.CoolDown = 30 * time.Second
	}
	if s.Probes <= 0 {
		s.Probes = 1
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return &CircuitBreaker{settings: s}
}

// StoreBreaker is the breaker wrapped around the document store: five
// backend failures open it, one good probe after five seconds closes it.
func StoreBreaker(isFailure func(error) bool, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("docstore",
		WithFailureThreshold(5),
		WithSuccessThreshold(1),
		WithTimeout(5*time.Second),
		WithIsFailure(isFailure),
		WithOnStateChange(onStateChange),
	)
}

// Execute runs fn unless the breaker rejects the call, then records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn(ctx)
	cb.record(probe, err)
	return err
}

func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.settings.Now().Sub(cb.openedAt) < cb.settings.CoolDown {
			return false, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.inFlight >= cb.settings.Probes {
			return false, ErrProbeInFlight
		}
		cb.inFlight++
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) record(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe && cb.inFlight > 0 {
		cb.inFlight--
	}
	cb.counts.Requests++

	failed := err != nil
	if failed && cb.settings.IsFailure != nil {
		failed = cb.settings.IsFailure(err)
	}
	if !failed {
		cb.counts.TotalSuccesses++
	} else {
		cb.counts.TotalFailures++
	}

	switch cb.state {
	case StateClosed:
		if !failed {
			cb.streak = 0
			return
		}
		cb.streak++
		if cb.streak >= cb.settings.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			cb.transition(StateOpen)
			return
		}
		cb.streak++
		if cb.streak >= cb.settings.SuccessThreshold {
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.streak = 0
	cb.inFlight = 0
	if to == StateOpen {
		cb.openedAt = cb.settings.Now()
	}
	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cool-down has
// passed still reports open until the next call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the breaker and clears its counters without notifying.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.counts = Counts{}
	cb.streak = 0
	cb.inFlight = 0
}

func (cb *CircuitBreaker) Name() string { return cb.settings.Name }
