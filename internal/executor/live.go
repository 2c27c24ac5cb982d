package executor

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"quantbot/internal/exchange"
	"quantbot/internal/guard"
	"quantbot/internal/journal"
	"quantbot/internal/logger"
	"quantbot/internal/precision"
	"quantbot/internal/types"
)

var bpsDivisor = decimal.NewFromInt(10000)

// LiveConfig carries the submission knobs for the live adapter.
type LiveConfig struct {
	DefaultOrderType types.OrderType
	// PriceOffsetBps shifts limit prices away from the reference on the
	// safe side: BUY bids below it, SELL offers above it.
	PriceOffsetBps decimal.Decimal
	MinNotional    decimal.Decimal
}

// Live submits real signed orders. It never retries: an ambiguous outcome
// (timeout) is surfaced to the caller, who must reconcile state before any
// re-submission.
type Live struct {
	gw  exchange.Gateway
	grd *guard.Guard
	jnl *journal.Journal
	cfg LiveConfig
}

func NewLive(gw exchange.Gateway, grd *guard.Guard, jnl *journal.Journal, cfg LiveConfig) *Live {
	if cfg.DefaultOrderType == "" {
		cfg.DefaultOrderType = types.OrderTypeLimit
	}
	return &Live{gw: gw, grd: grd, jnl: jnl, cfg: cfg}
}

func (l *Live) Mode() string { return "live" }

func (l *Live) Execute(ctx context.Context, intent Intent) (Result, error) {
	traceID := journal.NewTraceID()

	filters, err := l.gw.SymbolFilters(ctx, intent.Symbol)
	if err != nil {
		return l.fail(traceID, intent, "load symbol filters", err)
	}

	outcome, err := l.grd.Check(ctx, filters, intent.Action, intent.ReferencePrice)
	if err != nil {
		return l.fail(traceID, intent, "guard state read", err)
	}
	if !outcome.Allowed {
		return l.skip(traceID, intent, outcome.Reason)
	}

	orderType := intent.OrderType
	if orderType == "" {
		orderType = l.cfg.DefaultOrderType
	}
	side := sideFor(intent.Action)

	var price decimal.Decimal
	if orderType == types.OrderTypeLimit {
		price = precision.RoundPriceToTick(l.offsetPrice(intent.ReferencePrice, side), filters.TickSize, side)
		// Tick rounding can drag a borderline notional under the floor.
		if !precision.NotionalOK(outcome.Quantity, price, l.effectiveMinNotional(filters)) {
			return l.skip(traceID, intent, guard.ReasonBelowMinNotional)
		}
	}

	req := exchange.OrderRequest{
		Symbol:   intent.Symbol,
		Side:     side,
		Type:     orderType,
		Quantity: outcome.Quantity,
		Price:    price,
	}
	logger.Infof("[%s] submitting %s %s %s qty=%s price=%s", traceID, intent.Symbol, side, orderType, req.Quantity, req.Price)

	res, err := l.gw.CreateOrder(ctx, req)
	if err != nil {
		return l.fail(traceID, intent, "create order", err)
	}

	out := Result{
		TraceID:  traceID,
		OrderID:  res.OrderID,
		Quantity: outcome.Quantity,
		Price:    price,
		Reason:   intent.Reason,
	}
	if res.Filled() {
		out.Status = StatusFilled
		out.Quantity = res.ExecutedQty
		out.Price = res.AvgFillPrice
	} else {
		out.Status = StatusSubmitted
	}
	l.journalResult(intent, out)
	return out, nil
}

func (l *Live) offsetPrice(ref decimal.Decimal, side types.Side) decimal.Decimal {
	if l.cfg.PriceOffsetBps.IsZero() {
		return ref
	}
	offset := ref.Mul(l.cfg.PriceOffsetBps).Div(bpsDivisor)
	if side == types.SideBuy {
		return ref.Sub(offset)
	}
	return ref.Add(offset)
}

func (l *Live) effectiveMinNotional(filters exchange.SymbolFilters) decimal.Decimal {
	if filters.MinNotional.GreaterThan(l.cfg.MinNotional) {
		return filters.MinNotional
	}
	return l.cfg.MinNotional
}

func (l *Live) skip(traceID string, intent Intent, reason string) (Result, error) {
	out := Result{TraceID: traceID, Status: StatusSkipped, Reason: reason}
	logger.Infof("[%s] %s %s skipped: %s", traceID, intent.Symbol, intent.Action, reason)
	l.journalResult(intent, out)
	return out, nil
}

func (l *Live) fail(traceID string, intent Intent, stage string, err error) (Result, error) {
	out := Result{
		TraceID:   traceID,
		Status:    StatusFailed,
		Reason:    stage,
		ErrCode:   exchange.ErrorCode(err),
		ErrMsg:    err.Error(),
		Retryable: exchange.Retryable(err),
	}
	if exchange.IsTimeout(err) {
		out.Reason = stage + " (outcome unknown)"
	}
	logger.Errorf("[%s] %s %s failed at %s: %v", traceID, intent.Symbol, intent.Action, stage, err)
	l.journalResult(intent, out)
	return out, fmt.Errorf("%s %s: %s: %w", intent.Symbol, intent.Action, stage, err)
}

func (l *Live) journalResult(intent Intent, r Result) {
	e := journal.Entry{
		TraceID:      r.TraceID,
		Mode:         l.Mode(),
		Symbol:       intent.Symbol,
		Action:       intent.Action,
		TargetWeight: intent.TargetWeight,
		Status:       r.Status,
		OrderID:      r.OrderID,
		Reason:       r.Reason,
		ErrCode:      r.ErrCode,
		ErrMsg:       r.ErrMsg,
	}
	if r.Quantity.IsPositive() {
		e.Quantity = r.Quantity.String()
		e.Notional = r.Quantity.Mul(priceOr(r.Price, intent.ReferencePrice)).String()
	}
	if r.Price.IsPositive() {
		e.Price = r.Price.String()
	}
	if err := l.jnl.Append(e); err != nil {
		logger.Errorf("[%s] journal append failed: %v", r.TraceID, err)
	}
}

func priceOr(p, fallback decimal.Decimal) decimal.Decimal {
	if p.IsPositive() {
		return p
	}
	return fallback
}

func sideFor(action types.Action) types.Side {
	if action == types.ActionSell {
		return types.SideSell
	}
	return types.SideBuy
}
