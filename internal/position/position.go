// Package position is the single source of truth for per-symbol position
// state. One process owns the store file; all mutations persist atomically
// so a crash mid-write cannot corrupt it.
package position

import (
	"time"

	"github.com/shopspring/decimal"

	"quantbot/internal/types"
)

// Source identifies what triggered a state mutation.
type Source string

const (
	SourceEngine    Source = "engine"
	SourceExchange  Source = "exchange"
	SourceSimulated Source = "simulated"
)

// OrderStatus is the lifecycle of a tracked order.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "new"
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusError    OrderStatus = "error"
)

// OrderRecord tracks one order attached to a position. At most one record
// per symbol is pending at any time.
type OrderRecord struct {
	OrderID   string          `json:"order_id"`
	Side      types.Side      `json:"side"`
	Type      types.OrderType `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Status    OrderStatus     `json:"status"`
	Pending   bool            `json:"pending"`
	Timestamp time.Time       `json:"timestamp"`
}

// Position is the durable per-symbol record. The invariant while
// InPosition is true: EntryPrice > 0 and PeakPrice >= EntryPrice. Entry and
// peak fields are cleared together on flattening, never partially.
type Position struct {
	Symbol         string          `json:"symbol"`
	InPosition     bool            `json:"in_position"`
	Quantity       decimal.Decimal `json:"quantity"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	EntryTime      time.Time       `json:"entry_time,omitzero"`
	PeakPrice      decimal.Decimal `json:"peak_price"`
	PeakTime       time.Time       `json:"peak_time,omitzero"`
	LastUpdateTime time.Time       `json:"last_update_time,omitzero"`
	LastSource     Source          `json:"last_source,omitempty"`
	PendingOrder   *OrderRecord    `json:"pending_order,omitempty"`
}

func newFlatPosition(symbol string) Position {
	return Position{Symbol: symbol}
}

// flatten clears all entry/peak bookkeeping in one step.
func (p *Position) flatten() {
	p.InPosition = false
	p.Quantity = decimal.Zero
	p.EntryPrice = decimal.Zero
	p.EntryTime = time.Time{}
	p.PeakPrice = decimal.Zero
	p.PeakTime = time.Time{}
}
