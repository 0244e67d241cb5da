// Package circuitbreaker protects the gateway's outbound dependency calls.
// Each dependency (catalog, rating, rental) gets its own breaker instance;
// failures in one never affect another's state.
package circuitbreaker

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation; calls pass through.
	StateOpen                  // Failing; calls are short-circuited to the fallback.
	StateHalfOpen              // Probing; the next call tests recovery.
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
