// Package guard holds the pre-trade safety checks. Every order intent
// passes through the full chain before anything touches the exchange; a
// failed check yields a structured skip, not an error. Errors are reserved
// for "could not read exchange state", and those fail closed.
package guard

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"quantbot/internal/exchange"
	"quantbot/internal/logger"
	"quantbot/internal/precision"
	"quantbot/internal/types"
)

// Skip reasons, stable strings used in the journal.
const (
	ReasonInvalidAction    = "invalid action"
	ReasonInvalidPrice     = "invalid reference price"
	ReasonOpenOrders       = "open orders exist"
	ReasonDuplicateEntry   = "already holding position"
	ReasonBelowMinNotional = "below min notional"
	ReasonNothingToSell    = "no free balance to sell"
)

// Config carries the safety knobs. All values are validated at config load;
// the guard trusts them.
type Config struct {
	MinNotional             decimal.Decimal
	PreventDuplicateEntries bool
	PreventIfOpenOrders     bool
	CancelBuysBeforeSell    bool
	SellFraction            decimal.Decimal
	CashBuffer              decimal.Decimal
	MaxOrderValue           decimal.Decimal
}

// Outcome is the result of the check chain. When Allowed is true, Quantity
// is sized, floored to the symbol's step and ready for submission.
type Outcome struct {
	Allowed  bool
	Reason   string
	Quantity decimal.Decimal
	Notional decimal.Decimal
}

func skip(reason string) Outcome {
	return Outcome{Allowed: false, Reason: reason}
}

// AccountReader is the slice of the exchange surface the guard needs. The
// live adapter passes the real gateway; the simulated adapter passes its
// in-memory ledger so paper trades run the identical chain.
type AccountReader interface {
	Balances(ctx context.Context) (map[string]exchange.Balance, error)
	OpenOrders(ctx context.Context, symbol string) ([]exchange.OpenOrder, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
}

// Guard runs the pre-trade chain against account state.
type Guard struct {
	gw  AccountReader
	cfg Config
}

func New(gw AccountReader, cfg Config) *Guard {
	return &Guard{gw: gw, cfg: cfg}
}

// Check runs the full chain for one intent. The returned error means
// exchange state could not be read and no trade may be attempted; it is
// never a rejection.
func (g *Guard) Check(ctx context.Context, filters exchange.SymbolFilters, action types.Action, refPrice decimal.Decimal) (Outcome, error) {
	if action != types.ActionBuy && action != types.ActionSell {
		return skip(ReasonInvalidAction), nil
	}
	if !refPrice.IsPositive() {
		return skip(ReasonInvalidPrice), nil
	}

	if outcome, done, err := g.checkOpenOrders(ctx, filters.Symbol, action); err != nil {
		return Outcome{}, err
	} else if done {
		return outcome, nil
	}

	balances, err := g.gw.Balances(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("read balances: %w", err)
	}

	if action == types.ActionBuy {
		return g.sizeBuy(filters, refPrice, balances)
	}
	return g.sizeSell(filters, refPrice, balances)
}

// checkOpenOrders enforces the never-stack-orders rule. For SELL intents it
// may first cancel resting BUY orders, then re-checks.
func (g *Guard) checkOpenOrders(ctx context.Context, symbol string, action types.Action) (Outcome, bool, error) {
	if !g.cfg.PreventIfOpenOrders {
		return Outcome{}, false, nil
	}
	open, err := g.gw.OpenOrders(ctx, symbol)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("read open orders: %w", err)
	}
	if len(open) == 0 {
		return Outcome{}, false, nil
	}

	if action == types.ActionSell && g.cfg.CancelBuysBeforeSell {
		canceled := 0
		for _, o := range open {
			if o.Side != types.SideBuy {
				continue
			}
			if err := g.gw.CancelOrder(ctx, symbol, o.OrderID); err != nil {
				return Outcome{}, false, fmt.Errorf("cancel buy order %d: %w", o.OrderID, err)
			}
			logger.Infof("%s: canceled resting BUY order %d ahead of SELL", symbol, o.OrderID)
			canceled++
		}
		if canceled > 0 {
			open, err = g.gw.OpenOrders(ctx, symbol)
			if err != nil {
				return Outcome{}, false, fmt.Errorf("re-read open orders: %w", err)
			}
		}
	}
	if len(open) > 0 {
		return skip(ReasonOpenOrders), true, nil
	}
	return Outcome{}, false, nil
}

// sizeBuy computes the order quantity from the investable quote balance:
// free * (1 - cash_buffer), capped by the per-order ceiling, then floored
// to the step grid. The post-rounding notional must clear the minimum or
// the intent is skipped, never bumped up.
func (g *Guard) sizeBuy(filters exchange.SymbolFilters, refPrice decimal.Decimal, balances map[string]exchange.Balance) (Outcome, error) {
	if g.cfg.PreventDuplicateEntries {
		base := balances[filters.BaseAsset]
		held := base.Free.Add(base.Locked)
		if held.IsPositive() && precision.NotionalOK(held, refPrice, g.effectiveMinNotional(filters)) {
			return skip(ReasonDuplicateEntry), nil
		}
	}

	quote := balances[filters.QuoteAsset]
	budget := quote.Free.Mul(decimal.NewFromInt(1).Sub(g.cfg.CashBuffer))
	if g.cfg.MaxOrderValue.IsPositive() && budget.GreaterThan(g.cfg.MaxOrderValue) {
		budget = g.cfg.MaxOrderValue
	}
	if !budget.IsPositive() {
		return skip(ReasonBelowMinNotional), nil
	}

	qty := precision.FloorToStep(budget.Div(refPrice), filters.StepSize)
	minNotional := g.effectiveMinNotional(filters)
	if !precision.NotionalOK(qty, refPrice, minNotional) {
		return skip(ReasonBelowMinNotional), nil
	}
	return Outcome{Allowed: true, Quantity: qty, Notional: precision.Notional(qty, refPrice)}, nil
}

// sizeSell sells from the actually-free base balance, optionally scaled by
// sell_fraction. Quantities are never back-computed from a target weight.
func (g *Guard) sizeSell(filters exchange.SymbolFilters, refPrice decimal.Decimal, balances map[string]exchange.Balance) (Outcome, error) {
	base := balances[filters.BaseAsset]
	if !base.Free.IsPositive() {
		return skip(ReasonNothingToSell), nil
	}
	qty := base.Free
	if g.cfg.SellFraction.IsPositive() && g.cfg.SellFraction.LessThan(decimal.NewFromInt(1)) {
		qty = qty.Mul(g.cfg.SellFraction)
	}
	qty = precision.FloorToStep(qty, filters.StepSize)
	if !precision.NotionalOK(qty, refPrice, g.effectiveMinNotional(filters)) {
		return skip(ReasonBelowMinNotional), nil
	}
	return Outcome{Allowed: true, Quantity: qty, Notional: precision.Notional(qty, refPrice)}, nil
}

// effectiveMinNotional is the stricter of the configured floor and the
// exchange's own filter.
func (g *Guard) effectiveMinNotional(filters exchange.SymbolFilters) decimal.Decimal {
	if filters.MinNotional.GreaterThan(g.cfg.MinNotional) {
		return filters.MinNotional
	}
	return g.cfg.MinNotional
}
