// Package types holds the order vocabulary shared by the execution core.
package types

import "strings"

// Action is what the strategy layer asks for on a symbol.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction normalizes free-form input; anything unrecognized is HOLD-like
// and will be rejected by the safety guard before reaching an exchange.
func ParseAction(s string) Action {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return ActionBuy
	case "SELL":
		return ActionSell
	case "HOLD":
		return ActionHold
	default:
		return Action(strings.ToUpper(strings.TrimSpace(s)))
	}
}

func (a Action) IsTrade() bool {
	return a == ActionBuy || a == ActionSell
}

// Side is the exchange-facing order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// Signal is the per-symbol, per-cycle intent consumed from the strategy
// layer: an action plus a target portfolio weight and the price it was
// computed against.
type Signal struct {
	Action         Action  `json:"action"`
	TargetWeight   float64 `json:"target_weight"`
	ReferencePrice float64 `json:"reference_price"`
	Reason         string  `json:"reason,omitempty"`
	// MomentumNegative feeds the momentum-reversal exit rule.
	MomentumNegative bool `json:"momentum_negative,omitempty"`
}
