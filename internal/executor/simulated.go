package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quantbot/internal/exchange"
	"quantbot/internal/guard"
	"quantbot/internal/journal"
	"quantbot/internal/logger"
	"quantbot/internal/types"
)

// FilterSource provides symbol trading rules. The live gateway satisfies
// it; paper runs can also use a static table.
type FilterSource interface {
	SymbolFilters(ctx context.Context, symbol string) (exchange.SymbolFilters, error)
}

// Ledger is the in-memory account backing paper trades. It satisfies
// guard.AccountReader so the simulated adapter runs the same guard chain as
// live; paper orders never rest, so there are never open orders to report.
type Ledger struct {
	mu   sync.RWMutex
	free map[string]decimal.Decimal
}

// NewLedger seeds the paper account, typically with just quote currency.
func NewLedger(initial map[string]decimal.Decimal) *Ledger {
	free := make(map[string]decimal.Decimal, len(initial))
	for asset, amount := range initial {
		free[strings.ToUpper(asset)] = amount
	}
	return &Ledger{free: free}
}

func (l *Ledger) Balances(context.Context) (map[string]exchange.Balance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]exchange.Balance, len(l.free))
	for asset, amount := range l.free {
		if amount.IsZero() {
			continue
		}
		out[asset] = exchange.Balance{Asset: asset, Free: amount}
	}
	return out, nil
}

func (l *Ledger) OpenOrders(context.Context, string) ([]exchange.OpenOrder, error) {
	return nil, nil
}

func (l *Ledger) CancelOrder(context.Context, string, int64) error {
	return nil
}

// Balance returns the free amount of one asset.
func (l *Ledger) Balance(asset string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.free[strings.ToUpper(asset)]
}

func (l *Ledger) apply(debitAsset string, debit decimal.Decimal, creditAsset string, credit decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	have := l.free[debitAsset]
	if have.LessThan(debit) {
		return fmt.Errorf("ledger: %s balance %s short of %s", debitAsset, have, debit)
	}
	l.free[debitAsset] = have.Sub(debit)
	l.free[creditAsset] = l.free[creditAsset].Add(credit)
	return nil
}

// Simulated fills every allowed order immediately at the reference price.
// Partial fills are not modeled.
type Simulated struct {
	filters FilterSource
	grd     *guard.Guard
	jnl     *journal.Journal
	ledger  *Ledger
}

func NewSimulated(filters FilterSource, jnl *journal.Journal, guardCfg guard.Config, ledger *Ledger) *Simulated {
	return &Simulated{
		filters: filters,
		grd:     guard.New(ledger, guardCfg),
		jnl:     jnl,
		ledger:  ledger,
	}
}

func (s *Simulated) Mode() string { return "paper" }

// Ledger exposes the paper account, used by snapshot reconciliation.
func (s *Simulated) Ledger() *Ledger { return s.ledger }

func (s *Simulated) Execute(ctx context.Context, intent Intent) (Result, error) {
	traceID := journal.NewTraceID()

	filters, err := s.filters.SymbolFilters(ctx, intent.Symbol)
	if err != nil {
		out := Result{
			TraceID:   traceID,
			Status:    StatusFailed,
			Reason:    "load symbol filters",
			ErrMsg:    err.Error(),
			Retryable: exchange.Retryable(err),
		}
		s.journalResult(intent, out)
		return out, fmt.Errorf("%s %s: load symbol filters: %w", intent.Symbol, intent.Action, err)
	}

	outcome, err := s.grd.Check(ctx, filters, intent.Action, intent.ReferencePrice)
	if err != nil {
		// Ledger reads cannot fail in practice; keep the fail-closed shape
		// anyway so both adapters behave identically.
		out := Result{TraceID: traceID, Status: StatusFailed, Reason: "guard state read", ErrMsg: err.Error()}
		s.journalResult(intent, out)
		return out, err
	}
	if !outcome.Allowed {
		out := Result{TraceID: traceID, Status: StatusSkipped, Reason: outcome.Reason}
		logger.Infof("[%s] %s %s skipped: %s", traceID, intent.Symbol, intent.Action, outcome.Reason)
		s.journalResult(intent, out)
		return out, nil
	}

	price := intent.ReferencePrice
	cost := outcome.Quantity.Mul(price)
	if intent.Action == types.ActionBuy {
		err = s.ledger.apply(filters.QuoteAsset, cost, filters.BaseAsset, outcome.Quantity)
	} else {
		err = s.ledger.apply(filters.BaseAsset, outcome.Quantity, filters.QuoteAsset, cost)
	}
	if err != nil {
		out := Result{TraceID: traceID, Status: StatusFailed, Reason: "ledger update", ErrMsg: err.Error()}
		s.journalResult(intent, out)
		return out, err
	}

	out := Result{
		TraceID:  traceID,
		Status:   StatusFilled,
		OrderID:  "SIM-" + uuid.NewString()[:8],
		Quantity: outcome.Quantity,
		Price:    price,
		Reason:   intent.Reason,
	}
	logger.Infof("[%s] paper fill %s %s qty=%s price=%s", traceID, intent.Symbol, intent.Action, out.Quantity, out.Price)
	s.journalResult(intent, out)
	return out, nil
}

func (s *Simulated) journalResult(intent Intent, r Result) {
	e := journal.Entry{
		TraceID:      r.TraceID,
		Mode:         s.Mode(),
		Symbol:       intent.Symbol,
		Action:       intent.Action,
		TargetWeight: intent.TargetWeight,
		Status:       r.Status,
		OrderID:      r.OrderID,
		Reason:       r.Reason,
		ErrMsg:       r.ErrMsg,
	}
	if r.Quantity.IsPositive() {
		e.Quantity = r.Quantity.String()
		e.Notional = r.Quantity.Mul(priceOr(r.Price, intent.ReferencePrice)).String()
	}
	if r.Price.IsPositive() {
		e.Price = r.Price.String()
	}
	if err := s.jnl.Append(e); err != nil {
		logger.Errorf("[%s] journal append failed: %v", r.TraceID, err)
	}
}

// StaticFilters is a FilterSource backed by a fixed table, keyed by symbol.
type StaticFilters map[string]exchange.SymbolFilters

func (s StaticFilters) SymbolFilters(_ context.Context, symbol string) (exchange.SymbolFilters, error) {
	f, ok := s[strings.ToUpper(symbol)]
	if !ok {
		return exchange.SymbolFilters{}, fmt.Errorf("no filters for symbol %s", symbol)
	}
	return f, nil
}
