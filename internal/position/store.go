package position

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"quantbot/internal/logger"
)

// Store keeps every symbol's Position in memory and mirrors each mutation
// to a single JSON file via write-temp-then-rename. Single-writer: only the
// control loop mutates it, enforced process-wide by the instance lock.
type Store struct {
	path string

	mu        sync.RWMutex
	positions map[string]Position
	now       func() time.Time
}

// NewStore loads the state file at path, creating an empty store when the
// file does not exist yet.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:      path,
		positions: make(map[string]Position),
		now:       func() time.Time { return time.Now().UTC() },
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read position store: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.positions); err != nil {
		return nil, fmt.Errorf("position store %s is corrupt: %w", path, err)
	}
	for sym, p := range s.positions {
		if p.Symbol == "" {
			p.Symbol = sym
			s.positions[sym] = p
		}
	}
	logger.Infof("position store loaded: %s (%d symbols)", path, len(s.positions))
	return s, nil
}

// Get returns the current record for symbol, a flat default when the symbol
// has never been seen.
func (s *Store) Get(symbol string) Position {
	symbol = normalizeKey(symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.positions[symbol]; ok {
		return p
	}
	return newFlatPosition(symbol)
}

// All returns every tracked position sorted by symbol.
func (s *Store) All() []Position {
	s.mu.RLock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// SyncSnapshot reconciles the record against exchange truth before any
// decision is made. InPosition derives purely from qty*price >= minNotional:
// dust is not a position. Entry/peak are seeded from the current price only
// when a position is discovered with no prior record, which understates the
// true cost basis after a restart; the seed is logged so the approximation
// is visible.
func (s *Store) SyncSnapshot(symbol string, qty, price, minNotional decimal.Decimal, source Source) (Position, error) {
	symbol = normalizeKey(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok {
		p = newFlatPosition(symbol)
	}
	now := s.now()
	holding := qty.Mul(price).GreaterThanOrEqual(minNotional)

	switch {
	case holding && !p.InPosition:
		p.InPosition = true
		p.Quantity = qty
		if p.EntryPrice.IsZero() {
			p.EntryPrice = price
			p.EntryTime = now
			logger.Warnf("%s: position discovered without entry record, seeding entry=%s from market price (cost basis approximate)", symbol, price)
		}
		if p.PeakPrice.LessThan(p.EntryPrice) {
			p.PeakPrice = p.EntryPrice
			p.PeakTime = now
		}
		if price.GreaterThan(p.PeakPrice) {
			p.PeakPrice = price
			p.PeakTime = now
		}
	case holding && p.InPosition:
		p.Quantity = qty
		if price.GreaterThan(p.PeakPrice) {
			p.PeakPrice = price
			p.PeakTime = now
		}
	case !holding && p.InPosition:
		logger.Infof("%s: balance below min notional (qty=%s price=%s), flattening", symbol, qty, price)
		p.flatten()
	default:
		p.Quantity = decimal.Zero
	}

	p.LastUpdateTime = now
	p.LastSource = source
	s.positions[symbol] = p
	if err := s.persistLocked("sync_snapshot", symbol); err != nil {
		return Position{}, err
	}
	return p, nil
}

// OnTick raises the peak price monotonically while in position. A price at
// or below the current peak is a no-op and does not touch the disk.
func (s *Store) OnTick(symbol string, price decimal.Decimal) (Position, error) {
	symbol = normalizeKey(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok || !p.InPosition || !price.GreaterThan(p.PeakPrice) {
		if ok {
			return p, nil
		}
		return newFlatPosition(symbol), nil
	}
	now := s.now()
	p.PeakPrice = price
	p.PeakTime = now
	p.LastUpdateTime = now
	p.LastSource = SourceEngine
	s.positions[symbol] = p
	if err := s.persistLocked("on_tick", symbol); err != nil {
		return Position{}, err
	}
	return p, nil
}

// OnBuyFilled records a confirmed entry fill. Authoritative: overrides
// whatever the last snapshot derived.
func (s *Store) OnBuyFilled(symbol string, qty, price decimal.Decimal, source Source) (Position, error) {
	symbol = normalizeKey(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok {
		p = newFlatPosition(symbol)
	}
	now := s.now()
	p.InPosition = true
	p.Quantity = p.Quantity.Add(qty)
	if p.EntryPrice.IsZero() {
		p.EntryPrice = price
		p.EntryTime = now
	}
	if p.PeakPrice.LessThan(price) {
		p.PeakPrice = price
		p.PeakTime = now
	}
	if p.PeakPrice.LessThan(p.EntryPrice) {
		p.PeakPrice = p.EntryPrice
		p.PeakTime = now
	}
	p.LastUpdateTime = now
	p.LastSource = source
	if p.PendingOrder != nil {
		p.PendingOrder.Status = OrderStatusFilled
		p.PendingOrder.Pending = false
	}
	s.positions[symbol] = p
	if err := s.persistLocked("on_buy_filled", symbol); err != nil {
		return Position{}, err
	}
	return p, nil
}

// OnSellFilled records a confirmed exit fill. A full exit (or one that
// leaves only dust, judged by the next snapshot) flattens the record.
func (s *Store) OnSellFilled(symbol string, qty decimal.Decimal, source Source) (Position, error) {
	symbol = normalizeKey(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok {
		p = newFlatPosition(symbol)
	}
	now := s.now()
	remaining := p.Quantity.Sub(qty)
	if remaining.IsPositive() {
		p.Quantity = remaining
	} else {
		p.flatten()
	}
	p.LastUpdateTime = now
	p.LastSource = source
	if p.PendingOrder != nil {
		p.PendingOrder.Status = OrderStatusFilled
		p.PendingOrder.Pending = false
	}
	s.positions[symbol] = p
	if err := s.persistLocked("on_sell_filled", symbol); err != nil {
		return Position{}, err
	}
	return p, nil
}

// RecordOrder attaches the single in-flight order so a restart does not
// forget it exists. Refuses to stack a second pending order.
func (s *Store) RecordOrder(symbol string, rec OrderRecord) (Position, error) {
	symbol = normalizeKey(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok {
		p = newFlatPosition(symbol)
	}
	if rec.Pending && p.PendingOrder != nil && p.PendingOrder.Pending {
		return p, fmt.Errorf("%s: order %s still pending, refusing to record %s",
			symbol, p.PendingOrder.OrderID, rec.OrderID)
	}
	now := s.now()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	p.PendingOrder = &rec
	p.LastUpdateTime = now
	p.LastSource = SourceEngine
	s.positions[symbol] = p
	if err := s.persistLocked("record_order", symbol); err != nil {
		return Position{}, err
	}
	return p, nil
}

// ClearPending marks the tracked order settled with the given status.
func (s *Store) ClearPending(symbol string, status OrderStatus) (Position, error) {
	symbol = normalizeKey(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[symbol]
	if !ok || p.PendingOrder == nil {
		if ok {
			return p, nil
		}
		return newFlatPosition(symbol), nil
	}
	p.PendingOrder.Pending = false
	p.PendingOrder.Status = status
	p.LastUpdateTime = s.now()
	p.LastSource = SourceEngine
	s.positions[symbol] = p
	if err := s.persistLocked("clear_pending", symbol); err != nil {
		return Position{}, err
	}
	return p, nil
}

// persistLocked writes the full map to a temp file in the store's directory
// and renames it over the live file. Callers hold s.mu.
func (s *Store) persistLocked(trigger, symbol string) error {
	data, err := json.MarshalIndent(s.positions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal position store: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".positions-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace position store: %w", err)
	}
	logger.Debugf("position store persisted: trigger=%s symbol=%s at=%s", trigger, symbol, s.now().Format(time.RFC3339))
	return nil
}

func normalizeKey(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
