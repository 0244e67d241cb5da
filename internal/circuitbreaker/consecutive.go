package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dskow/library-gateway/internal/metrics"
)

// ConsecutiveBreaker trips after a run of consecutive failures. It opens when
// failureThreshold consecutive calls fail, rejects calls for retryTimeout,
// then lets a single probe call through (half-open). A probe success closes
// the breaker; a probe failure reopens it immediately without re-counting.
type ConsecutiveBreaker struct {
	mu sync.Mutex

	state      State
	dependency string
	logger     *slog.Logger

	consecutiveFailures int
	lastFailure         time.Time

	failureThreshold int
	retryTimeout     time.Duration
}

// New creates a breaker for the named dependency.
func New(dependency string, failureThreshold int, retryTimeout time.Duration, logger *slog.Logger) *ConsecutiveBreaker {
	return &ConsecutiveBreaker{
		state:            StateClosed,
		dependency:       dependency,
		logger:           logger,
		failureThreshold: failureThreshold,
		retryTimeout:     retryTimeout,
	}
}

// Allow reports whether a call may proceed. While open, it returns false
// until retryTimeout has elapsed since the last failure; the first Allow
// after that transitions to half-open and admits a live probe. The guarded
// call itself runs outside the breaker lock, so concurrent callers may race
// to probe in half-open — acceptable, since any one failure reopens.
func (b *ConsecutiveBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(b.lastFailure) > b.retryTimeout {
			b.transitionTo(StateHalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess records a successful dependency call. Resets the failure
// counter and, from half-open, closes the breaker.
func (b *ConsecutiveBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	if b.state == StateHalfOpen {
		b.transitionTo(StateClosed)
	}
}

// RecordFailure records a failed dependency call. From closed, reaching the
// threshold opens the breaker; from half-open, a single failure reopens it.
func (b *ConsecutiveBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.failureThreshold {
			b.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		b.transitionTo(StateOpen)
	}
}

// State returns the current circuit breaker state.
func (b *ConsecutiveBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Dependency returns the name of the dependency this breaker guards.
func (b *ConsecutiveBreaker) Dependency() string {
	return b.dependency
}

// Reset forces the breaker back to closed state.
func (b *ConsecutiveBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.transitionTo(StateClosed)
}

// transitionTo changes the breaker state, emitting metrics and logging.
// Must be called with b.mu held.
func (b *ConsecutiveBreaker) transitionTo(newState State) {
	if b.state == newState {
		return
	}

	from := b.state
	b.state = newState

	metrics.CircuitBreakerStateChanges.WithLabelValues(b.dependency, from.String(), newState.String()).Inc()
	metrics.CircuitBreakerState.WithLabelValues(b.dependency).Set(float64(newState))

	b.logger.Info("circuit breaker state change",
		"dependency", b.dependency,
		"from", from.String(),
		"to", newState.String(),
	)

	if newState == StateClosed {
		b.consecutiveFailures = 0
	}
}
