package exitrule

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"quantbot/internal/position"
	"quantbot/internal/types"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func params() Params {
	return Params{TakeProfitMult: d("1.8"), TrailingDD: d("0.12")}
}

func openPos(entry, peak string) position.Position {
	return position.Position{
		Symbol:     "BTCUSDT",
		InPosition: true,
		Quantity:   d("0.01"),
		EntryPrice: d(entry),
		PeakPrice:  d(peak),
	}
}

func TestHoldWhenFlat(t *testing.T) {
	dec := Evaluate(Input{Position: position.Position{Symbol: "BTCUSDT"}, CurrentPrice: d("100")}, params())
	assert.Equal(t, types.ActionHold, dec.Action)
}

func TestHoldWithoutValidPrice(t *testing.T) {
	dec := Evaluate(Input{Position: openPos("100", "100"), CurrentPrice: d("0")}, params())
	assert.Equal(t, types.ActionHold, dec.Action)
}

func TestMomentumExitWinsOverEverything(t *testing.T) {
	// Price is also past take-profit; momentum still reports first.
	dec := Evaluate(Input{
		Position:         openPos("100", "185"),
		CurrentPrice:     d("185"),
		MomentumNegative: true,
	}, params())
	assert.Equal(t, types.ActionSell, dec.Action)
	assert.Equal(t, ReasonMomentum, dec.Reason)
}

func TestTakeProfitAtMultiple(t *testing.T) {
	dec := Evaluate(Input{Position: openPos("100", "181"), CurrentPrice: d("181")}, params())
	assert.Equal(t, types.ActionSell, dec.Action)
	assert.Equal(t, ReasonTakeProfit, dec.Reason)
	assert.Equal(t, "180", dec.Threshold.String())
	assert.Equal(t, "181", dec.Price.String())
}

func TestTakeProfitExactBoundaryFires(t *testing.T) {
	dec := Evaluate(Input{Position: openPos("100", "180"), CurrentPrice: d("180")}, params())
	assert.Equal(t, types.ActionSell, dec.Action)
	assert.Equal(t, ReasonTakeProfit, dec.Reason)
}

func TestTrailingStopFromPeak(t *testing.T) {
	// floor = 200 * (1 - 0.12) = 176; 175 <= 176
	dec := Evaluate(Input{Position: openPos("150", "200"), CurrentPrice: d("175")}, params())
	assert.Equal(t, types.ActionSell, dec.Action)
	assert.Equal(t, ReasonTrailingStop, dec.Reason)
	assert.Equal(t, "176", dec.Threshold.String())
}

func TestTrailingStopHoldsAboveFloor(t *testing.T) {
	dec := Evaluate(Input{Position: openPos("150", "200"), CurrentPrice: d("176.01")}, params())
	assert.Equal(t, types.ActionHold, dec.Action)
}

func TestHoldInTheMiddle(t *testing.T) {
	dec := Evaluate(Input{Position: openPos("100", "120"), CurrentPrice: d("110")}, params())
	assert.Equal(t, types.ActionHold, dec.Action)
}

func TestDisabledThresholdsNeverFire(t *testing.T) {
	off := Params{TakeProfitMult: decimal.Zero, TrailingDD: decimal.Zero}
	dec := Evaluate(Input{Position: openPos("100", "1000"), CurrentPrice: d("1")}, off)
	assert.Equal(t, types.ActionHold, dec.Action)
}
