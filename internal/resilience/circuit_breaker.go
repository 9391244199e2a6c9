package resilience

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState is the current disposition of a breaker.
type CircuitState int

const (
	StateClosed   CircuitState = iota // normal operation
	StateOpen                         // requests fail immediately
	StateHalfOpen                     // probing whether the upstream recovered
)

// halfOpenProbes is how many trial requests may run after the reset timeout
// before the breaker must decide to close or re-open.
const halfOpenProbes = 3

// CircuitBreaker sheds load from an upstream speech API that keeps failing:
// after maxFailures consecutive errors calls fail fast until resetTimeout
// elapses, then a few probe requests decide whether to resume.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu             sync.RWMutex
	state          CircuitState
	failures       int // consecutive failures while closed
	lastFailure    time.Time
	probesAdmitted int // requests let through in half-open
	probeSuccesses int
	totalRequests  int64
	totalFailures  int64
}

// NewCircuitBreaker creates a closed breaker named for the upstream it
// protects.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Call runs fn under breaker protection, recording its outcome. When the
// circuit is open the call fails immediately without invoking fn.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allowRequest() {
		return fmt.Errorf("%s circuit breaker is open", cb.name)
	}

	err := fn()
	cb.RecordResult(err == nil)
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.probesAdmitted = 1
			cb.probeSuccesses = 0
			return true
		}
		return false

	case StateHalfOpen:
		if cb.probesAdmitted < halfOpenProbes {
			cb.probesAdmitted++
			return true
		}
		return false
	}

	return false
}

// RecordResult feeds one request outcome into the breaker. Call does this
// automatically; clients that manage their own request flow use it directly.
func (cb *CircuitBreaker) RecordResult(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	if success {
		cb.recordSuccess()
	} else {
		cb.recordFailure()
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.probeSuccesses++
		if cb.probeSuccesses >= halfOpenProbes {
			cb.state = StateClosed
			cb.failures = 0
			cb.probesAdmitted = 0
			cb.probeSuccesses = 0
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.totalFailures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}

	case StateHalfOpen:
		// One failed probe re-opens the circuit.
		cb.state = StateOpen
		cb.probesAdmitted = 0
		cb.probeSuccesses = 0
	}
}

// GetState returns the breaker's current state.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns the state plus lifetime request/failure counts and the
// failure rate in percent.
func (cb *CircuitBreaker) GetStats() (state CircuitState, requestCount, failureCount int64, failureRate float64) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	state = cb.state
	requestCount = cb.totalRequests
	failureCount = cb.totalFailures
	if requestCount > 0 {
		failureRate = float64(failureCount) / float64(requestCount) * 100.0
	}
	return
}

// Reset forces the breaker back to closed and zeroes its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probesAdmitted = 0
	cb.probeSuccesses = 0
	cb.totalRequests = 0
	cb.totalFailures = 0
}
