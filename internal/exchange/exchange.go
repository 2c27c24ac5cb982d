// Package exchange defines the integration surface against the spot
// exchange. The execution core talks only to the Gateway interface; the
// Binance implementation lives in binance.go, and tests substitute fakes.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"quantbot/internal/types"
)

// Balance is one asset's account balance.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// OpenOrder is an order resting on the exchange book.
type OpenOrder struct {
	OrderID     int64
	Symbol      string
	Side        types.Side
	Type        types.OrderType
	Price       decimal.Decimal
	OrigQty     decimal.Decimal
	ExecutedQty decimal.Decimal
	Status      string
	CreatedAt   time.Time
}

// SymbolFilters carries the exchange's trading rules for one symbol.
// Read-mostly; cached by the gateway after the first fetch.
type SymbolFilters struct {
	Symbol      string
	BaseAsset   string
	QuoteAsset  string
	StepSize    decimal.Decimal
	TickSize    decimal.Decimal
	MinNotional decimal.Decimal
}

// OrderRequest is a fully-normalized order ready for submission. Quantity
// and price must already sit on the step/tick grid.
type OrderRequest struct {
	Symbol   string
	Side     types.Side
	Type     types.OrderType
	Quantity decimal.Decimal
	Price    decimal.Decimal // ignored for MARKET
}

// OrderResult is the exchange's normalized response to a submission.
type OrderResult struct {
	OrderID          string
	Status           string
	ExecutedQty      decimal.Decimal
	CumulativeQuote  decimal.Decimal
	AvgFillPrice     decimal.Decimal
	TransactedAt     time.Time
}

// Filled reports whether the order is fully executed.
func (r OrderResult) Filled() bool {
	return r.Status == "FILLED"
}

// Kline is one OHLCV candle.
type Kline struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Gateway is the full exchange surface the execution core consumes. Every
// call is synchronous and honors the context deadline; a deadline hit must
// be treated by callers as an unknown outcome, not a failure.
type Gateway interface {
	Balances(ctx context.Context) (map[string]Balance, error)
	OpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error)
	SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error)
	CreateOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
}
