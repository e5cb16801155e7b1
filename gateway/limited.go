package gateway

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/rustyeddy/aitrader/market"
)

// NewLimiter allows perMinute calls per minute with the given burst.
// A non-positive rate disables limiting.
func NewLimiter(perMinute float64, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), burst)
}

// Limited makes every call wait on a shared limiter and bounds it with a
// per-call timeout. One Limited is shared by all model runs.
type Limited struct {
	next    Gateway
	limiter *rate.Limiter
	timeout time.Duration
}

func NewLimited(next Gateway, limiter *rate.Limiter, timeout time.Duration) *Limited {
	return &Limited{next: next, limiter: limiter, timeout: timeout}
}

func (g *Limited) QueryPrice(ctx context.Context, symbol string, day market.Day) (float64, error) {
	var p float64
	err := g.call(ctx, OpQueryPrice, func(ctx context.Context) error {
		var err error
		p, err = g.next.QueryPrice(ctx, symbol, day)
		return err
	})
	return p, err
}

func (g *Limited) QueryContext(ctx context.Context, query string) (string, error) {
	var s string
	err := g.call(ctx, OpQueryContext, func(ctx context.Context) error {
		var err error
		s, err = g.next.QueryContext(ctx, query)
		return err
	})
	return s, err
}

func (g *Limited) call(ctx context.Context, op string, fn func(context.Context) error) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return &Error{Op: op, Err: err}
		}
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	// A call that ran out its own budget while the caller is still alive is
	// a transient failure.
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &Error{Op: op, Err: err, Retryable: true}
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Op: op, Err: err}
}
