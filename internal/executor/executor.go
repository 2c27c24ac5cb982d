// Package executor turns validated trade intents into orders. Two
// interchangeable adapters share one contract: Simulated fills against an
// in-memory ledger, Live signs and submits to the exchange. Both run the
// identical guard chain and append every attempt to the trade journal
// before returning.
package executor

import (
	"context"

	"github.com/shopspring/decimal"

	"quantbot/internal/types"
)

// Execution result statuses.
const (
	StatusFilled    = "filled"
	StatusSubmitted = "submitted"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Intent is one per-symbol, per-cycle order request from the orchestrator.
// OrderType left empty falls back to the configured default.
type Intent struct {
	Symbol         string
	Action         types.Action
	TargetWeight   float64
	ReferencePrice decimal.Decimal
	OrderType      types.OrderType
	Reason         string
}

// Result is the normalized outcome of one Execute call.
type Result struct {
	TraceID   string
	Status    string
	OrderID   string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Reason    string
	ErrCode   int64
	ErrMsg    string
	Retryable bool
}

// Skipped reports a guard rejection: expected, not an error.
func (r Result) Skipped() bool { return r.Status == StatusSkipped }

// Filled reports a confirmed fill the position store should absorb.
func (r Result) Filled() bool { return r.Status == StatusFilled }

// Adapter is the order-submission contract. A returned error means the
// attempt failed (or its outcome is unknown); guard rejections come back as
// a skipped Result with a nil error. Adapters never retry internally: a
// re-submission is always an explicit caller decision.
type Adapter interface {
	Execute(ctx context.Context, intent Intent) (Result, error)
	Mode() string
}
