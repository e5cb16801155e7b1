package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/rustyeddy/aitrader/market"
)

// Local serves prices from an in-memory price book and delegates context
// queries to an optional source.
type Local struct {
	Book    *market.PriceBook
	Context ContextSource
}

func NewLocal(book *market.PriceBook, src ContextSource) *Local {
	return &Local{Book: book, Context: src}
}

func (g *Local) QueryPrice(ctx context.Context, symbol string, day market.Day) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &Error{Op: OpQueryPrice, Err: err}
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0, &Error{Op: OpQueryPrice, Err: errors.New("empty symbol")}
	}
	p, err := g.Book.Price(symbol, day)
	if err != nil {
		return 0, &Error{Op: OpQueryPrice, Err: err}
	}
	return p, nil
}

func (g *Local) QueryContext(ctx context.Context, query string) (string, error) {
	if g.Context == nil {
		return "", &Error{Op: OpQueryContext, Err: ErrNoContextSource}
	}
	if strings.TrimSpace(query) == "" {
		return "", &Error{Op: OpQueryContext, Err: errors.New("empty query")}
	}
	out, err := g.Context.Lookup(ctx, query)
	if err != nil {
		var ge *Error
		if errors.As(err, &ge) {
			return "", err
		}
		return "", &Error{Op: OpQueryContext, Err: err, Retryable: ctx.Err() == nil}
	}
	return out, nil
}
