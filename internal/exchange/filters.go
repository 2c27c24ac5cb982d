package exchange

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// ParseSymbolFilters builds SymbolFilters from the raw strings the exchange
// publishes. A string that does not parse is a configuration error: trading
// against a symbol whose lot rules are unknown is never safe, so there is no
// silent default.
func ParseSymbolFilters(symbol, baseAsset, quoteAsset, stepSize, tickSize, minNotional string) (SymbolFilters, error) {
	f := SymbolFilters{
		Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		BaseAsset:  strings.ToUpper(strings.TrimSpace(baseAsset)),
		QuoteAsset: strings.ToUpper(strings.TrimSpace(quoteAsset)),
	}
	var err error
	if f.StepSize, err = parseFilterValue("stepSize", stepSize); err != nil {
		return SymbolFilters{}, fmt.Errorf("symbol %s: %w", symbol, err)
	}
	if f.TickSize, err = parseFilterValue("tickSize", tickSize); err != nil {
		return SymbolFilters{}, fmt.Errorf("symbol %s: %w", symbol, err)
	}
	if f.MinNotional, err = parseFilterValue("minNotional", minNotional); err != nil {
		return SymbolFilters{}, fmt.Errorf("symbol %s: %w", symbol, err)
	}
	return f, nil
}

func parseFilterValue(name, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		// Absent filter means the exchange imposes no constraint.
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable %s %q: %w", name, raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative %s %q", name, raw)
	}
	return d, nil
}

// filterCache memoizes per-symbol filters. Exchange trading rules change
// rarely; one fetch per process lifetime is enough.
type filterCache struct {
	mu      sync.RWMutex
	bySym   map[string]SymbolFilters
}

func newFilterCache() *filterCache {
	return &filterCache{bySym: make(map[string]SymbolFilters)}
}

func (c *filterCache) get(symbol string) (SymbolFilters, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.bySym[symbol]
	return f, ok
}

func (c *filterCache) put(f SymbolFilters) {
	c.mu.Lock()
	c.bySym[f.Symbol] = f
	c.mu.Unlock()
}
