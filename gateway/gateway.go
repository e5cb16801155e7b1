// Package gateway is the capability set a decision engine may call during a
// trading day: quoted prices and free-text market context.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/aitrader/market"
)

// Gateway answers tool calls. Implementations must be safe for concurrent
// use by every model run.
type Gateway interface {
	QueryPrice(ctx context.Context, symbol string, day market.Day) (float64, error)
	QueryContext(ctx context.Context, query string) (string, error)
}

// Operation names used in errors and traces.
const (
	OpQueryPrice   = "query_price"
	OpQueryContext = "query_context"
)

// ErrNoContextSource is returned by QueryContext when no source is wired.
var ErrNoContextSource = errors.New("no context source configured")

// Error is a failed gateway call. Retryable marks transient failures such as
// timeouts, throttling and 5xx responses.
type Error struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a gateway error marked retryable.
func IsRetryable(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Retryable
}

// ContextSource answers free-text queries about the market.
type ContextSource interface {
	Lookup(ctx context.Context, query string) (string, error)
}

// ContextFunc adapts a function to ContextSource.
type ContextFunc func(ctx context.Context, query string) (string, error)

func (f ContextFunc) Lookup(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}
