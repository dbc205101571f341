// Package retry wraps the transient-failure loops around broker publishes
// and store writes. Exponential backoff suits outages of unknown length
// (NATS connection flaps); the constant variant is for short store
// contention where a fixed pause and a small attempt budget are enough.
package retry

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Operation func() error

// DefaultInitialInterval is the first exponential pause when the caller
// passes zero.
const DefaultInitialInterval = 100 * time.Millisecond

// Exponential retries op with exponentially growing pauses until it
// succeeds or maxElapsed passes. onRetry observes each failed attempt and
// may be nil.
func Exponential(op Operation, initial, maxElapsed time.Duration, onRetry func(error, time.Duration)) error {
	if initial <= 0 {
		initial = DefaultInitialInterval
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	if maxElapsed > 0 {
		bo.MaxElapsedTime = maxElapsed
	}

	return backoff.RetryNotify(backoff.Operation(op), bo, func(err error, next time.Duration) {
		if onRetry != nil {
			onRetry(err, next)
		}
	})
}

// Constant retries op up to attempts times with a fixed pause between
// attempts. Attempts below one count as one.
func Constant(op Operation, interval time.Duration, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(interval)
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}
