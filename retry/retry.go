// Package retry runs an operation under an explicit exponential backoff
// policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// Retryable reports whether a failed attempt may be retried. When nil,
	// every error except a context error is retried.
	Retryable func(error) bool

	// Sleep waits between attempts. When nil a timer is used; tests inject a
	// recorder.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default is three attempts with backoff doubling from 250ms up to 5s.
func Default() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2,
	}
}

// ExhaustedError is returned when the last permitted attempt fails.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Backoff is the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= mult
		if p.MaxBackoff > 0 && d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && time.Duration(d) > p.MaxBackoff {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// context ends or the attempts run out. It returns the number of attempts
// made. Exhaustion is reported as an *ExhaustedError wrapping the last error.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err == nil {
				err = cerr
			}
			return attempt - 1, err
		}

		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if !p.retryable(err) {
			return attempt, err
		}
		if attempt >= max {
			return attempt, &ExhaustedError{Attempts: attempt, Err: err}
		}
		if serr := p.sleep(ctx, p.Backoff(attempt)); serr != nil {
			return attempt, err
		}
	}
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return !errors.Is(err, context.DeadlineExceeded)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
