package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbot/internal/exchange"
	"quantbot/internal/guard"
	"quantbot/internal/journal"
	"quantbot/internal/types"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func btcFilters() exchange.SymbolFilters {
	return exchange.SymbolFilters{
		Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT",
		StepSize: d("0.00001"), TickSize: d("0.01"), MinNotional: d("5"),
	}
}

func guardCfg() guard.Config {
	return guard.Config{
		MinNotional:             d("10"),
		PreventDuplicateEntries: true,
		PreventIfOpenOrders:     true,
		CancelBuysBeforeSell:    true,
		SellFraction:            d("1"),
		CashBuffer:              d("0.40"),
		MaxOrderValue:           d("250"),
	}
}

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func newSim(t *testing.T, cash string) (*Simulated, *journal.Journal) {
	t.Helper()
	j := openJournal(t)
	ledger := NewLedger(map[string]decimal.Decimal{"USDT": d(cash)})
	filters := StaticFilters{"BTCUSDT": btcFilters()}
	return NewSimulated(filters, j, guardCfg(), ledger), j
}

func TestSimulatedBuyFillsImmediately(t *testing.T) {
	sim, j := newSim(t, "1000")

	res, err := sim.Execute(context.Background(), Intent{
		Symbol: "BTCUSDT", Action: types.ActionBuy, TargetWeight: 0.5, ReferencePrice: d("40000"),
	})
	require.NoError(t, err)
	assert.True(t, res.Filled())
	assert.Contains(t, res.OrderID, "SIM-")
	// investable 600 capped at 250 -> 0.00625 BTC
	assert.Equal(t, "0.00625", res.Quantity.String())
	assert.Equal(t, "0.00625", sim.Ledger().Balance("BTC").String())
	assert.Equal(t, "750", sim.Ledger().Balance("USDT").String())

	entries, err := j.LoadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "paper", entries[0].Mode)
	assert.Equal(t, StatusFilled, entries[0].Status)
	assert.Equal(t, 0.5, entries[0].TargetWeight, "decision context is journaled")
}

func TestSimulatedSecondBuyIsDuplicateEntry(t *testing.T) {
	sim, j := newSim(t, "1000")
	ctx := context.Background()

	_, err := sim.Execute(ctx, Intent{Symbol: "BTCUSDT", Action: types.ActionBuy, ReferencePrice: d("40000")})
	require.NoError(t, err)

	res, err := sim.Execute(ctx, Intent{Symbol: "BTCUSDT", Action: types.ActionBuy, ReferencePrice: d("40000")})
	require.NoError(t, err)
	assert.True(t, res.Skipped())
	assert.Equal(t, guard.ReasonDuplicateEntry, res.Reason)

	entries, err := j.LoadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, StatusSkipped, entries[1].Status)
}

func TestSimulatedRoundTrip(t *testing.T) {
	sim, _ := newSim(t, "1000")
	ctx := context.Background()

	buy, err := sim.Execute(ctx, Intent{Symbol: "BTCUSDT", Action: types.ActionBuy, ReferencePrice: d("40000")})
	require.NoError(t, err)
	require.True(t, buy.Filled())

	sell, err := sim.Execute(ctx, Intent{Symbol: "BTCUSDT", Action: types.ActionSell, ReferencePrice: d("44000")})
	require.NoError(t, err)
	require.True(t, sell.Filled())
	assert.Equal(t, buy.Quantity.String(), sell.Quantity.String())

	assert.True(t, sim.Ledger().Balance("BTC").IsZero())
	// 750 + 0.00625*44000 = 1025
	assert.Equal(t, "1025", sim.Ledger().Balance("USDT").String())
}

func TestSimulatedSkipsBelowMinNotional(t *testing.T) {
	sim, _ := newSim(t, "12") // investable 7.2 < 10

	res, err := sim.Execute(context.Background(), Intent{
		Symbol: "BTCUSDT", Action: types.ActionBuy, ReferencePrice: d("40000"),
	})
	require.NoError(t, err)
	assert.True(t, res.Skipped())
	assert.Equal(t, guard.ReasonBelowMinNotional, res.Reason)
	assert.Equal(t, "12", sim.Ledger().Balance("USDT").String(), "skip must not touch the ledger")
}

func TestSimulatedUnknownSymbolFails(t *testing.T) {
	sim, j := newSim(t, "1000")

	res, err := sim.Execute(context.Background(), Intent{
		Symbol: "DOGEUSDT", Action: types.ActionBuy, ReferencePrice: d("0.1"),
	})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)

	entries, err := j.LoadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusFailed, entries[0].Status)
}

// fakeGateway implements exchange.Gateway for live-adapter tests.
type fakeGateway struct {
	balances   map[string]exchange.Balance
	openOrders []exchange.OpenOrder
	filters    exchange.SymbolFilters

	createReq *exchange.OrderRequest
	createRes exchange.OrderResult
	createErr error
}

func (f *fakeGateway) Balances(context.Context) (map[string]exchange.Balance, error) {
	return f.balances, nil
}

func (f *fakeGateway) OpenOrders(context.Context, string) ([]exchange.OpenOrder, error) {
	return f.openOrders, nil
}

func (f *fakeGateway) SymbolFilters(context.Context, string) (exchange.SymbolFilters, error) {
	return f.filters, nil
}

func (f *fakeGateway) CreateOrder(_ context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	f.createReq = &req
	return f.createRes, f.createErr
}

func (f *fakeGateway) CancelOrder(context.Context, string, int64) error { return nil }

func (f *fakeGateway) TickerPrice(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeGateway) Klines(context.Context, string, string, int) ([]exchange.Kline, error) {
	return nil, nil
}

func newLive(t *testing.T, gw *fakeGateway, cfg LiveConfig) (*Live, *journal.Journal) {
	t.Helper()
	j := openJournal(t)
	grd := guard.New(gw, guardCfg())
	return NewLive(gw, grd, j, cfg), j
}

func TestLiveBuyAppliesOffsetAndTickRounding(t *testing.T) {
	gw := &fakeGateway{
		balances: map[string]exchange.Balance{"USDT": {Asset: "USDT", Free: d("1000")}},
		filters:  btcFilters(),
		createRes: exchange.OrderResult{
			OrderID: "987", Status: "NEW",
		},
	}
	live, j := newLive(t, gw, LiveConfig{
		DefaultOrderType: types.OrderTypeLimit,
		PriceOffsetBps:   d("5"),
		MinNotional:      d("10"),
	})

	res, err := live.Execute(context.Background(), Intent{
		Symbol: "BTCUSDT", Action: types.ActionBuy, TargetWeight: 0.25, ReferencePrice: d("40000"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, res.Status)
	assert.Equal(t, "987", res.OrderID)

	require.NotNil(t, gw.createReq)
	// 40000 * (1 - 5/10000) = 39980, already on the 0.01 tick
	assert.Equal(t, "39980", gw.createReq.Price.String())
	assert.Equal(t, types.SideBuy, gw.createReq.Side)

	entries, err := j.LoadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "live", entries[0].Mode)
	assert.Equal(t, StatusSubmitted, entries[0].Status)
	assert.Equal(t, 0.25, entries[0].TargetWeight)
}

func TestLiveFilledResponseUsesExchangeFillNumbers(t *testing.T) {
	gw := &fakeGateway{
		balances: map[string]exchange.Balance{"USDT": {Asset: "USDT", Free: d("1000")}},
		filters:  btcFilters(),
		createRes: exchange.OrderResult{
			OrderID:         "988",
			Status:          "FILLED",
			ExecutedQty:     d("0.00625"),
			CumulativeQuote: d("250.125"),
			AvgFillPrice:    d("40020"),
		},
	}
	live, _ := newLive(t, gw, LiveConfig{DefaultOrderType: types.OrderTypeLimit, MinNotional: d("10")})

	res, err := live.Execute(context.Background(), Intent{
		Symbol: "BTCUSDT", Action: types.ActionBuy, ReferencePrice: d("40000"),
	})
	require.NoError(t, err)
	assert.True(t, res.Filled())
	assert.Equal(t, "0.00625", res.Quantity.String())
	assert.Equal(t, "40020", res.Price.String())
}

func TestLiveGuardSkipDoesNotSubmit(t *testing.T) {
	gw := &fakeGateway{
		balances:   map[string]exchange.Balance{"USDT": {Asset: "USDT", Free: d("1000")}},
		openOrders: []exchange.OpenOrder{{OrderID: 5, Side: types.SideBuy}},
		filters:    btcFilters(),
	}
	live, _ := newLive(t, gw, LiveConfig{MinNotional: d("10")})

	res, err := live.Execute(context.Background(), Intent{
		Symbol: "BTCUSDT", Action: types.ActionBuy, ReferencePrice: d("40000"),
	})
	require.NoError(t, err)
	assert.True(t, res.Skipped())
	assert.Equal(t, guard.ReasonOpenOrders, res.Reason)
	assert.Nil(t, gw.createReq, "no order may reach the exchange")
}

func TestLiveTerminalRejectionIsNotRetryable(t *testing.T) {
	gw := &fakeGateway{
		balances:  map[string]exchange.Balance{"USDT": {Asset: "USDT", Free: d("1000")}},
		filters:   btcFilters(),
		createErr: &common.APIError{Code: -2010, Message: "Account has insufficient balance"},
	}
	live, j := newLive(t, gw, LiveConfig{MinNotional: d("10")})

	res, err := live.Execute(context.Background(), Intent{
		Symbol: "BTCUSDT", Action: types.ActionBuy, ReferencePrice: d("40000"),
	})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.False(t, res.Retryable)
	assert.EqualValues(t, -2010, res.ErrCode)
	assert.Contains(t, res.ErrMsg, "insufficient balance")

	entries, jerr := j.LoadAll()
	require.NoError(t, jerr)
	require.Len(t, entries, 1)
	assert.EqualValues(t, -2010, entries[0].ErrCode)
}

func TestLiveRateLimitIsRetryable(t *testing.T) {
	gw := &fakeGateway{
		balances:  map[string]exchange.Balance{"USDT": {Asset: "USDT", Free: d("1000")}},
		filters:   btcFilters(),
		createErr: &common.APIError{Code: -1003, Message: "Too many requests"},
	}
	live, _ := newLive(t, gw, LiveConfig{MinNotional: d("10")})

	res, err := live.Execute(context.Background(), Intent{
		Symbol: "BTCUSDT", Action: types.ActionBuy, ReferencePrice: d("40000"),
	})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.True(t, res.Retryable)
}

func TestLiveMarketOrderCarriesNoPrice(t *testing.T) {
	gw := &fakeGateway{
		balances: map[string]exchange.Balance{"BTC": {Asset: "BTC", Free: d("0.005")}},
		filters:  btcFilters(),
		createRes: exchange.OrderResult{
			OrderID: "989", Status: "FILLED",
			ExecutedQty: d("0.005"), CumulativeQuote: d("200"), AvgFillPrice: d("40000"),
		},
	}
	live, _ := newLive(t, gw, LiveConfig{DefaultOrderType: types.OrderTypeLimit, MinNotional: d("10")})

	res, err := live.Execute(context.Background(), Intent{
		Symbol: "BTCUSDT", Action: types.ActionSell, ReferencePrice: d("40000"),
		OrderType: types.OrderTypeMarket, Reason: "trailing stop",
	})
	require.NoError(t, err)
	require.True(t, res.Filled())

	require.NotNil(t, gw.createReq)
	assert.Equal(t, types.OrderTypeMarket, gw.createReq.Type)
	assert.True(t, gw.createReq.Price.IsZero())
}
