// Package engine runs the per-wake control loop: reconcile state against
// account truth, evaluate exits, consult the strategy layer and hand
// validated intents to the execution adapter. Symbols are processed
// strictly in sequence; two concurrent BUYs would double-spend the shared
// quote balance.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"quantbot/internal/exchange"
	"quantbot/internal/executor"
	"quantbot/internal/exitrule"
	"quantbot/internal/guard"
	"quantbot/internal/logger"
	"quantbot/internal/position"
	"quantbot/internal/signal"
	"quantbot/internal/types"
)

// PriceSource supplies the current reference price for a symbol.
type PriceSource interface {
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Config carries the loop's knobs, resolved from the main config at build
// time.
type Config struct {
	Symbols             []string
	Interval            time.Duration
	MinNotional         decimal.Decimal
	UseMarketOnRiskExit bool
	CallTimeout         time.Duration
}

// FillListener observes confirmed fills, e.g. for notifications.
type FillListener func(symbol string, action types.Action, res executor.Result, reason string)

// ErrorListener observes per-symbol cycle failures.
type ErrorListener func(symbol string, err error)

// Engine owns one wake cycle end to end.
type Engine struct {
	cfg      Config
	store    *position.Store
	adapter  executor.Adapter
	account  guard.AccountReader
	filters  executor.FilterSource
	prices   PriceSource
	signals  signal.Provider
	exitPrms func() exitrule.Params
	onFill   FillListener
	onError  ErrorListener

	lastSlot map[string]string
}

func New(cfg Config, store *position.Store, adapter executor.Adapter, account guard.AccountReader,
	filters executor.FilterSource, prices PriceSource, signals signal.Provider,
	exitParams func() exitrule.Params) *Engine {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		adapter:  adapter,
		account:  account,
		filters:  filters,
		prices:   prices,
		signals:  signals,
		exitPrms: exitParams,
		lastSlot: make(map[string]string),
	}
}

// OnFill registers the fill listener. Not safe to call once cycles run.
func (e *Engine) OnFill(fn FillListener) { e.onFill = fn }

// OnError registers the failure listener. Not safe to call once cycles run.
func (e *Engine) OnError(fn ErrorListener) { e.onError = fn }

// SlotID identifies the wake slot a timestamp belongs to. Two wakes inside
// the same slot must not trade twice. Seconds stay in the key so
// sub-minute intervals get distinct slots.
func SlotID(now time.Time, interval time.Duration) string {
	if interval <= 0 {
		interval = time.Minute
	}
	return now.UTC().Truncate(interval).Format("2006-01-02T15:04:05") + "/" + interval.String()
}

// RunCycle processes every configured symbol for the wake at now. Errors
// on one symbol abort that symbol only; the cycle itself always completes.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) {
	slot := SlotID(now, e.cfg.Interval)
	for _, symbol := range e.cfg.Symbols {
		if e.lastSlot[symbol] == slot {
			logger.Debugf("%s: slot %s already processed, skipping", symbol, slot)
			continue
		}
		if err := e.processSymbol(ctx, symbol); err != nil {
			logger.Errorf("%s: cycle aborted: %v", symbol, err)
			if e.onError != nil {
				e.onError(symbol, err)
			}
			continue
		}
		e.lastSlot[symbol] = slot
	}
}

// processSymbol runs the single-symbol pipeline. Any failure to read
// exchange state returns before state is mutated: a timeout is an unknown
// outcome, never a guess.
func (e *Engine) processSymbol(ctx context.Context, symbol string) error {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	filters, err := e.filters.SymbolFilters(cctx, symbol)
	if err != nil {
		return fmt.Errorf("load filters: %w", err)
	}
	price, err := e.prices.TickerPrice(cctx, symbol)
	if err != nil {
		return fmt.Errorf("ticker price: %w", err)
	}
	if !price.IsPositive() {
		return fmt.Errorf("non-positive ticker price %s", price)
	}
	balances, err := e.account.Balances(cctx)
	if err != nil {
		return fmt.Errorf("balances: %w", err)
	}

	base := balances[filters.BaseAsset]
	baseQty := base.Free.Add(base.Locked)
	pos, err := e.store.SyncSnapshot(symbol, baseQty, price, e.effectiveMinNotional(filters), e.source())
	if err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if pos, err = e.resolvePending(cctx, symbol, pos); err != nil {
		return fmt.Errorf("resolve pending order: %w", err)
	}
	if pos, err = e.store.OnTick(symbol, price); err != nil {
		return fmt.Errorf("on tick: %w", err)
	}

	sig, err := e.signals.Signal(cctx, symbol)
	if err != nil {
		// A broken strategy layer must not block risk exits; treat as HOLD
		// with no momentum information.
		logger.Warnf("%s: signal provider failed, holding: %v", symbol, err)
		sig = types.Signal{Action: types.ActionHold}
	}

	if pos.InPosition {
		dec := exitrule.Evaluate(exitrule.Input{
			Position:         pos,
			CurrentPrice:     price,
			MomentumNegative: sig.MomentumNegative,
		}, e.exitPrms())
		if dec.Action == types.ActionSell {
			logger.Infof("%s: exit rule fired: %s (price=%s threshold=%s)", symbol, dec.Reason, dec.Price, dec.Threshold)
			return e.submit(ctx, symbol, executor.Intent{
				Symbol:         symbol,
				Action:         types.ActionSell,
				ReferencePrice: price,
				OrderType:      e.riskExitOrderType(),
				Reason:         dec.Reason,
			})
		}
	}

	switch {
	case sig.Action == types.ActionBuy && !pos.InPosition:
		return e.submit(ctx, symbol, executor.Intent{
			Symbol:         symbol,
			Action:         types.ActionBuy,
			TargetWeight:   sig.TargetWeight,
			ReferencePrice: price,
			Reason:         sig.Reason,
		})
	case sig.Action == types.ActionSell && pos.InPosition:
		return e.submit(ctx, symbol, executor.Intent{
			Symbol:         symbol,
			Action:         types.ActionSell,
			ReferencePrice: price,
			Reason:         sig.Reason,
		})
	}
	return nil
}

// resolvePending settles the tracked order once it no longer rests on the
// book, so the symbol is free to trade again. Balances are the truth for
// what executed: a vanished BUY that left a position behind filled,
// anything else was canceled or expired.
func (e *Engine) resolvePending(ctx context.Context, symbol string, pos position.Position) (position.Position, error) {
	rec := pos.PendingOrder
	if rec == nil || !rec.Pending {
		return pos, nil
	}
	open, err := e.account.OpenOrders(ctx, symbol)
	if err != nil {
		return pos, fmt.Errorf("open orders: %w", err)
	}
	for _, o := range open {
		if strconv.FormatInt(o.OrderID, 10) == rec.OrderID {
			return pos, nil
		}
	}
	status := position.OrderStatusCanceled
	if (rec.Side == types.SideBuy && pos.InPosition) ||
		(rec.Side == types.SideSell && !pos.InPosition) {
		status = position.OrderStatusFilled
	}
	logger.Infof("%s: order %s no longer resting, settling as %s", symbol, rec.OrderID, status)
	return e.store.ClearPending(symbol, status)
}

// submit hands the intent to the adapter and folds the outcome back into
// the position store.
func (e *Engine) submit(ctx context.Context, symbol string, intent executor.Intent) error {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	res, err := e.adapter.Execute(cctx, intent)
	if err != nil {
		return fmt.Errorf("execute %s: %w", intent.Action, err)
	}
	switch res.Status {
	case executor.StatusFilled:
		if intent.Action == types.ActionBuy {
			if _, err := e.store.OnBuyFilled(symbol, res.Quantity, res.Price, e.source()); err != nil {
				return err
			}
		} else {
			if _, err := e.store.OnSellFilled(symbol, res.Quantity, e.source()); err != nil {
				return err
			}
		}
		if e.onFill != nil {
			e.onFill(symbol, intent.Action, res, intent.Reason)
		}
	case executor.StatusSubmitted:
		_, err := e.store.RecordOrder(symbol, position.OrderRecord{
			OrderID:  res.OrderID,
			Side:     sideFor(intent.Action),
			Type:     orderTypeOr(intent.OrderType),
			Quantity: res.Quantity,
			Price:    res.Price,
			Status:   position.OrderStatusOpen,
			Pending:  true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) source() position.Source {
	if e.adapter.Mode() == "paper" {
		return position.SourceSimulated
	}
	return position.SourceExchange
}

func (e *Engine) riskExitOrderType() types.OrderType {
	if e.cfg.UseMarketOnRiskExit {
		return types.OrderTypeMarket
	}
	return ""
}

func (e *Engine) effectiveMinNotional(filters exchange.SymbolFilters) decimal.Decimal {
	if filters.MinNotional.GreaterThan(e.cfg.MinNotional) {
		return filters.MinNotional
	}
	return e.cfg.MinNotional
}

func sideFor(action types.Action) types.Side {
	if action == types.ActionSell {
		return types.SideSell
	}
	return types.SideBuy
}

func orderTypeOr(t types.OrderType) types.OrderType {
	if t == "" {
		return types.OrderTypeLimit
	}
	return t
}
