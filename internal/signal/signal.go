// Package signal defines the strategy-layer contract consumed by the
// control loop. Signal derivation itself lives outside this repo; the
// Static provider pins intents from config for paper runs and tests.
package signal

import (
	"context"
	"strings"
	"sync"

	"quantbot/internal/types"
)

// Provider supplies one intent per symbol per cycle.
type Provider interface {
	Signal(ctx context.Context, symbol string) (types.Signal, error)
}

// Static serves fixed intents keyed by symbol; unknown symbols HOLD. Set
// swaps an intent at runtime, which is what the tests drive cycles with.
type Static struct {
	mu      sync.RWMutex
	intents map[string]types.Signal
}

func NewStatic(intents map[string]types.Signal) *Static {
	m := make(map[string]types.Signal, len(intents))
	for sym, sig := range intents {
		m[strings.ToUpper(sym)] = sig
	}
	return &Static{intents: m}
}

func (s *Static) Signal(_ context.Context, symbol string) (types.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sig, ok := s.intents[strings.ToUpper(symbol)]; ok {
		return sig, nil
	}
	return types.Signal{Action: types.ActionHold}, nil
}

// Set replaces the intent for one symbol.
func (s *Static) Set(symbol string, sig types.Signal) {
	s.mu.Lock()
	s.intents[strings.ToUpper(symbol)] = sig
	s.mu.Unlock()
}
