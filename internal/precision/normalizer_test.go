package precision

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"quantbot/internal/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFloorToStep(t *testing.T) {
	cases := []struct {
		value, step, want string
	}{
		{"0.123456", "0.001", "0.123"},
		{"0.123456", "0.00001", "0.12345"},
		{"5", "1", "5"},
		{"5.999", "0.5", "5.5"},
		{"0.0009", "0.001", "0"},
		{"0.3", "0.1", "0.3"}, // 0.3 is not representable in binary floats
		{"42.7", "0", "42.7"}, // zero step: no constraint
	}
	for _, tc := range cases {
		got := FloorToStep(dec(tc.value), dec(tc.step))
		assert.True(t, dec(tc.want).Equal(got), "floor(%s,%s)=%s want %s", tc.value, tc.step, got, tc.want)
	}
}

func TestCeilToStep(t *testing.T) {
	cases := []struct {
		value, step, want string
	}{
		{"0.123456", "0.001", "0.124"},
		{"5", "1", "5"},
		{"5.001", "0.5", "5.5"},
		{"0.0001", "0.001", "0.001"},
		{"42.7", "0", "42.7"},
	}
	for _, tc := range cases {
		got := CeilToStep(dec(tc.value), dec(tc.step))
		assert.True(t, dec(tc.want).Equal(got), "ceil(%s,%s)=%s want %s", tc.value, tc.step, got, tc.want)
	}
}

func TestRoundingIsIdempotent(t *testing.T) {
	values := []string{"0.123456", "99.999", "0.00042", "1234.5678"}
	steps := []string{"0.001", "0.5", "0.00000001"}
	for _, v := range values {
		for _, s := range steps {
			once := FloorToStep(dec(v), dec(s))
			twice := FloorToStep(once, dec(s))
			assert.True(t, once.Equal(twice), "floor not idempotent for %s/%s", v, s)

			onceUp := CeilToStep(dec(v), dec(s))
			twiceUp := CeilToStep(onceUp, dec(s))
			assert.True(t, onceUp.Equal(twiceUp), "ceil not idempotent for %s/%s", v, s)
		}
	}
}

func TestFloorIsLargestMultipleBelow(t *testing.T) {
	value, step := dec("0.123456"), dec("0.001")
	got := FloorToStep(value, step)
	assert.True(t, got.LessThanOrEqual(value))
	// one more step must overshoot
	assert.True(t, got.Add(step).GreaterThan(value))
	// exact multiple of step
	assert.True(t, got.Mod(step).IsZero())
}

func TestRoundPriceToTickBySide(t *testing.T) {
	tick := dec("0.01")
	price := dec("100.018")

	buy := RoundPriceToTick(price, tick, types.SideBuy)
	sell := RoundPriceToTick(price, tick, types.SideSell)

	assert.True(t, dec("100.01").Equal(buy), "buy rounds down, got %s", buy)
	assert.True(t, dec("100.02").Equal(sell), "sell rounds up, got %s", sell)
}

func TestNotionalOK(t *testing.T) {
	assert.True(t, NotionalOK(dec("0.002"), dec("40000"), dec("10")))
	assert.False(t, NotionalOK(dec("0.0002"), dec("40000"), dec("10")))
	// boundary counts as passing
	assert.True(t, NotionalOK(dec("0.00025"), dec("40000"), dec("10")))
	// no minimum configured
	assert.True(t, NotionalOK(dec("0.0000001"), dec("1"), decimal.Zero))
}
