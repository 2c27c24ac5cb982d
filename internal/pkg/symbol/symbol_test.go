package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		base  string
		quote string
	}{
		{"BTC/USDT", "BTC", "USDT"},
		{"btcusdt", "BTC", "USDT"},
		{" eth/btc ", "ETH", "BTC"},
		{"SOLUSDC", "SOL", "USDC"},
		{"USDT", "", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		got := Parse(tc.in)
		assert.Equal(t, tc.base, got.Base, tc.in)
		assert.Equal(t, tc.quote, got.Quote, tc.in)
	}
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{"btc/usdt", "BTCUSDT", "ethusdt", "", "XYZQ"})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "XYZQ"}, got)
}
