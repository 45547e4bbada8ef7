package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker counts consecutive failures. Only errors for which the
// classifier returns true count as failures; anything else resets the count
// like a success does.
type CircuitBreaker struct {
	maxFailures     int
	resetTimeout    time.Duration
	isFailure       func(error) bool
	now             func() time.Time
	failureCount    int
	lastFailureTime time.Time
	state           State
	probing         bool
	mu              sync.Mutex
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, isFailure func(error) bool) *CircuitBreaker {
	if isFailure == nil {
		isFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		isFailure:    isFailure,
		now:          time.Now,
		state:        StateClosed,
	}
}

// Execute runs fn unless the circuit is open. The lock is not held while fn
// runs, so slow calls on one breaker do not serialize each other. In the
// half-open state a single probe call is let through.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) <= cb.resetTimeout {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return nil
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err != nil && cb.isFailure(err) {
		cb.failureCount++
		cb.lastFailureTime = cb.now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
		}
		return
	}

	cb.state = StateClosed
	cb.failureCount = 0
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Group hands out one breaker per key, e.g. per gateway account, so one
// failing account does not block the others.
type Group struct {
	maxFailures  int
	resetTimeout time.Duration
	isFailure    func(error) bool

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func NewGroup(maxFailures int, resetTimeout time.Duration, isFailure func(error) bool) *Group {
	return &Group{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		isFailure:    isFailure,
		breakers:     make(map[string]*CircuitBreaker),
	}
}

func (g *Group) Get(key string) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb, ok := g.breakers[key]
	if !ok {
		cb = NewCircuitBreaker(g.maxFailures, g.resetTimeout, g.isFailure)
		g.breakers[key] = cb
	}
	return cb
}
