// Package precision converts raw quantities and prices into exchange-legal
// values: exact multiples of the symbol's lot step and price tick, with the
// resulting notional re-checked against the exchange minimum. All arithmetic
// is decimal; binary floats drift on values like 0.1 steps.
package precision

import (
	"github.com/shopspring/decimal"

	"quantbot/internal/types"
)

// FloorToStep returns the largest multiple of step that is <= value.
// A zero step means the symbol carries no constraint and value passes
// through unchanged. Quantities are always floored: an order must never
// promise more than the balance that backs it.
func FloorToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return value
	}
	return value.Div(step).Floor().Mul(step)
}

// CeilToStep returns the smallest multiple of step that is >= value.
func CeilToStep(value, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return value
	}
	return value.Div(step).Ceil().Mul(step)
}

// RoundPriceToTick snaps a price onto the tick grid in the direction that
// cannot hurt: BUY floors (never bid above the intended price), SELL ceils
// (never offer below it).
func RoundPriceToTick(value, tick decimal.Decimal, side types.Side) decimal.Decimal {
	if side == types.SideSell {
		return CeilToStep(value, tick)
	}
	return FloorToStep(value, tick)
}

// Notional returns quantity * price.
func Notional(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price)
}

// NotionalOK reports whether the post-rounding order value still clears the
// exchange minimum. Rounding down a borderline quantity can silently drop
// an order below minNotional; such orders are rejected, never bumped up.
func NotionalOK(qty, price, minNotional decimal.Decimal) bool {
	if minNotional.IsZero() {
		return true
	}
	return Notional(qty, price).GreaterThanOrEqual(minNotional)
}
