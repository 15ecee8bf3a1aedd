package retry

import (
	"context"
	"fmt"
	"log"
	"time"
)

// #region policy

// Policy is the bounded-retry budget shared by every external read in the
// control loops (telemetry window, enforcement target). One uniform policy
// replaces per-call-site manual retries; after the budget is spent the caller
// proceeds on last-known state rather than stalling its loop.
type Policy struct {
	Attempts int           `yaml:"attempts"` // total attempts, including the first
	Delay    time.Duration `yaml:"delay"`    // pause between attempts
	Timeout  time.Duration `yaml:"timeout"`  // per-attempt timeout
}

// DefaultPolicy returns the short budget used inside the hot loops.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Delay:    250 * time.Millisecond,
		Timeout:  2 * time.Second,
	}
}

// #endregion policy

// #region do

// Do runs fn under the policy. Each attempt gets its own timeout context.
// It returns nil on the first success, the last error once the budget is
// spent, or the context error if ctx is cancelled between attempts.
func (p Policy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		lastErr = fn(attemptCtx)
		cancel()

		if lastErr == nil {
			return nil
		}
		if i < attempts-1 {
			log.Printf("[RETRY] %s attempt %d/%d failed: %v", name, i+1, attempts, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}
	}

	return fmt.Errorf("%s: budget of %d attempts spent: %w", name, attempts, lastErr)
}

// #endregion do
