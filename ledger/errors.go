package ledger

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/aitrader/market"
)

// ErrRejected is matched by every validation failure. A rejected action
// leaves the ledger unchanged and the day is applied as a hold.
var ErrRejected = errors.New("action rejected")

// ErrOutOfOrder is returned when a day is applied that is not after the last
// snapshot.
var ErrOutOfOrder = errors.New("trading day out of order")

type InsufficientFundsError struct {
	Symbol    string
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds to buy %s: need %.2f, have %.2f", e.Symbol, e.Required, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrRejected }

type InsufficientSharesError struct {
	Symbol    string
	Requested float64
	Held      float64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares to sell %s: requested %g, held %g", e.Symbol, e.Requested, e.Held)
}

func (e *InsufficientSharesError) Is(target error) bool { return target == ErrRejected }

// PriceMismatchError means the action's price is not the quoted price of the
// day. Quoted is 0 when the symbol has no quote.
type PriceMismatchError struct {
	Symbol string
	Day    market.Day
	Price  float64
	Quoted float64
}

func (e *PriceMismatchError) Error() string {
	if e.Quoted == 0 {
		return fmt.Sprintf("no quote for %s on %s", e.Symbol, e.Day)
	}
	return fmt.Sprintf("price %g for %s does not match quote %g on %s", e.Price, e.Symbol, e.Quoted, e.Day)
}

func (e *PriceMismatchError) Is(target error) bool { return target == ErrRejected }

type InvalidActionError struct {
	Action Action
	Reason string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %s: %s", e.Action, e.Reason)
}

func (e *InvalidActionError) Is(target error) bool { return target == ErrRejected }
