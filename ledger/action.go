package ledger

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/aitrader/journal"
)

// Kind of action a model takes on a trading day.
type Kind string

const (
	Hold Kind = "hold"
	Buy  Kind = "buy"
	Sell Kind = "sell"
)

// ParseKind accepts hold, buy or sell in any case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Hold, Buy, Sell:
		return k, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Action is the single decision of one model on one trading day. Symbol,
// Quantity and Price are ignored for Hold.
type Action struct {
	Kind      Kind    `json:"kind"`
	Symbol    string  `json:"symbol,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Rationale string  `json:"rationale,omitempty"`
}

// HoldAction returns a hold with the given rationale.
func HoldAction(rationale string) Action {
	return Action{Kind: Hold, Rationale: rationale}
}

func (a Action) IsHold() bool { return a.Kind == Hold || a.Kind == "" }

func (a Action) String() string {
	if a.IsHold() {
		return "hold"
	}
	return fmt.Sprintf("%s %g %s @ %g", a.Kind, a.Quantity, a.Symbol, a.Price)
}

// Trace converts the action into its journal form.
func (a Action) Trace() *journal.ActionTrace {
	if a.IsHold() {
		return &journal.ActionTrace{Kind: string(Hold)}
	}
	return &journal.ActionTrace{Kind: string(a.Kind), Symbol: a.Symbol, Quantity: a.Quantity, Price: a.Price}
}

func (a Action) side() journal.Side {
	if a.Kind == Sell {
		return journal.Sell
	}
	return journal.Buy
}
