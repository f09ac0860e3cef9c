package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Execute while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
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
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails fast once a dependency has failed failureThreshold
// times in a row. After timeout it lets a single trial call through; the
// breaker closes again after successThreshold successful trials.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failures         int32
	successes        int32
	openedAt         time.Time
	trialInFlight    bool
	failureThreshold int32
	successThreshold int32
	timeout          time.Duration
	onStateChange    func(from, to State)
	now              func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(failureThreshold, successThreshold int32, timeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		now:              time.Now,
	}
}

// SetStateChangeCallback registers a callback for state transitions. The
// callback runs outside the breaker's lock.
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Execute runs fn unless the breaker is open and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}

	callErr := fn()
	cb.record(trial, callErr == nil)
	return callErr
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// admit decides whether a call may proceed and whether it is a half-open trial.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	var from State
	changed := false

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) <= cb.timeout {
			cb.mu.Unlock()
			return false, ErrOpen
		}
		from, changed = cb.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.trialInFlight {
			cb.mu.Unlock()
			cb.notify(changed, from, StateHalfOpen)
			return false, ErrOpen
		}
		cb.trialInFlight = true
		trial = true
	}
	cb.mu.Unlock()

	cb.notify(changed, from, StateHalfOpen)
	return trial, nil
}

func (cb *CircuitBreaker) record(trial, ok bool) {
	cb.mu.Lock()
	var (
		from, to State
		changed  bool
	)
	if trial {
		cb.trialInFlight = false
	}

	switch {
	case ok && cb.state == StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			to = StateClosed
			from, changed = cb.transition(to)
		}
	case ok:
		cb.failures = 0
	case cb.state == StateHalfOpen:
		to = StateOpen
		from, changed = cb.transition(to)
	case cb.state == StateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			to = StateOpen
			from, changed = cb.transition(to)
		}
	}
	cb.mu.Unlock()

	cb.notify(changed, from, to)
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) (from State, changed bool) {
	from = cb.state
	if from == to {
		return from, false
	}
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	return from, true
}

func (cb *CircuitBreaker) notify(changed bool, from, to State) {
	if !changed {
		return
	}
	cb.mu.Lock()
	fn := cb.onStateChange
	cb.mu.Unlock()
	if fn != nil {
		fn(from, to)
	}
}
