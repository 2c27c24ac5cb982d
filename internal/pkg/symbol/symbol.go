// Package symbol normalizes trading-pair notation. Exchange calls use the
// joined form ("BTCUSDT"); configs may write either that or "BTC/USDT".
package symbol

import "strings"

type Symbol struct {
	Base  string
	Quote string
}

// Pair returns the exchange form, e.g. "BTCUSDT".
func (s Symbol) Pair() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// quoteAssets lists the quote currencies recognized when splitting a joined
// pair. Longer suffixes are tried first.
var quoteAssets = []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}

// Parse splits "BTC/USDT" or "BTCUSDT" into base and quote. Returns the zero
// Symbol when the input matches no known quote asset.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range quoteAssets {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}
	return Symbol{}
}

// Normalize returns the exchange form of any accepted notation, or "" when
// the input cannot be parsed.
func Normalize(s string) string {
	return Parse(s).Pair()
}

// NormalizeList normalizes and de-duplicates, preserving order. Entries that
// fail to parse are kept upper-cased as-is so an unusual pair still trades.
func NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Normalize(s)
		if norm == "" {
			norm = strings.ToUpper(strings.TrimSpace(s))
			if norm == "" {
				continue
			}
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
