// Package exitrule decides when an open position should be flattened. It
// never decides entries; those come exclusively from the strategy layer.
package exitrule

import (
	"github.com/shopspring/decimal"

	"quantbot/internal/position"
	"quantbot/internal/types"
)

// Exit reasons, recorded verbatim in the journal.
const (
	ReasonMomentum     = "momentum exit"
	ReasonTakeProfit   = "takeprofit"
	ReasonTrailingStop = "trailing stop"
)

// Params are the tunable thresholds, hot-reloadable at runtime.
type Params struct {
	TakeProfitMult decimal.Decimal
	TrailingDD     decimal.Decimal
}

// Input is the evaluation context for one symbol on one cycle.
type Input struct {
	Position         position.Position
	CurrentPrice     decimal.Decimal
	MomentumNegative bool
}

// Decision carries the verdict plus the numbers that produced it, so the
// journal can show exactly which threshold fired.
type Decision struct {
	Action    types.Action
	Reason    string
	Price     decimal.Decimal
	Threshold decimal.Decimal
}

func hold() Decision {
	return Decision{Action: types.ActionHold}
}

// Evaluate runs the exit chain in priority order, first match wins:
// momentum reversal, then take-profit, then trailing stop. Positions that
// are flat or have no usable entry/peak always hold.
func Evaluate(in Input, p Params) Decision {
	pos := in.Position
	if !pos.InPosition || !in.CurrentPrice.IsPositive() {
		return hold()
	}

	if in.MomentumNegative {
		return Decision{
			Action: types.ActionSell,
			Reason: ReasonMomentum,
			Price:  in.CurrentPrice,
		}
	}

	if pos.EntryPrice.IsPositive() && p.TakeProfitMult.GreaterThan(decimal.NewFromInt(1)) {
		target := pos.EntryPrice.Mul(p.TakeProfitMult)
		if in.CurrentPrice.GreaterThanOrEqual(target) {
			return Decision{
				Action:    types.ActionSell,
				Reason:    ReasonTakeProfit,
				Price:     in.CurrentPrice,
				Threshold: target,
			}
		}
	}

	if pos.PeakPrice.IsPositive() && p.TrailingDD.IsPositive() {
		floor := pos.PeakPrice.Mul(decimal.NewFromInt(1).Sub(p.TrailingDD))
		if in.CurrentPrice.LessThanOrEqual(floor) {
			return Decision{
				Action:    types.ActionSell,
				Reason:    ReasonTrailingStop,
				Price:     in.CurrentPrice,
				Threshold: floor,
			}
		}
	}

	return hold()
}
