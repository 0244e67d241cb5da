package circuitbreaker

import "errors"

// ErrOpen is returned by Protect when the circuit is open and the fallback
// value was substituted without invoking the operation.
var ErrOpen = errors.New("circuit breaker open")

// Protect runs op through the breaker. While the circuit is open it returns
// fallback and ErrOpen without invoking op. Otherwise op executes (outside
// the breaker lock) and its outcome is recorded; on failure the fallback is
// returned alongside op's error.
func Protect[T any](b *ConsecutiveBreaker, fallback T, op func() (T, error)) (T, error) {
	if !b.Allow() {
		return fallback, ErrOpen
	}

	v, err := op()
	if err != nil {
		b.RecordFailure()
		return fallback, err
	}

	b.RecordSuccess()
	return v, nil
}

// Do runs an operation with no result value through the breaker.
func Do(b *ConsecutiveBreaker, op func() error) error {
	_, err := Protect(b, struct{}{}, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}
