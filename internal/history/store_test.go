package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbot/internal/exchange"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	return s
}

func bars(start int64, n int) []exchange.Kline {
	out := make([]exchange.Kline, 0, n)
	for i := 0; i < n; i++ {
		open := start + int64(i)*900_000
		out = append(out, exchange.Kline{
			OpenTime:  open,
			CloseTime: open + 899_999,
			Open:      100 + float64(i),
			High:      101 + float64(i),
			Low:       99 + float64(i),
			Close:     100.5 + float64(i),
			Volume:    10,
		})
	}
	return out
}

func TestUpsertAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "btcusdt", "15m", bars(1_700_000_000_000, 5)))

	got, err := s.Recent(ctx, "BTCUSDT", "15m", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].OpenTime < got[1].OpenTime, "oldest first")
	assert.Equal(t, 104.5, got[2].Close)
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "BTCUSDT", "15m", bars(1_700_000_000_000, 5)))
	// Same range again with a revised close on the last bar.
	revised := bars(1_700_000_000_000, 5)
	revised[4].Close = 999
	require.NoError(t, s.Upsert(ctx, "BTCUSDT", "15m", revised))

	n, err := s.Count(ctx, "BTCUSDT", "15m")
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	got, err := s.Recent(ctx, "BTCUSDT", "15m", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, float64(999), got[0].Close)
}

func TestLatestOpenTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	latest, err := s.LatestOpenTime(ctx, "BTCUSDT", "15m")
	require.NoError(t, err)
	assert.Zero(t, latest)

	require.NoError(t, s.Upsert(ctx, "BTCUSDT", "15m", bars(1_700_000_000_000, 3)))
	latest, err = s.LatestOpenTime(ctx, "BTCUSDT", "15m")
	require.NoError(t, err)
	assert.EqualValues(t, 1_700_000_000_000+2*900_000, latest)
}

func TestIntervalsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "BTCUSDT", "15m", bars(1_700_000_000_000, 2)))
	require.NoError(t, s.Upsert(ctx, "BTCUSDT", "1h", bars(1_700_000_000_000, 4)))

	n, err := s.Count(ctx, "BTCUSDT", "15m")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

type fakeFetcher struct {
	mu     sync.Mutex
	calls  []string
	failOn string
}

func (f *fakeFetcher) Klines(_ context.Context, symbol, _ string, limit int) ([]exchange.Kline, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	f.mu.Unlock()
	if symbol == f.failOn {
		return nil, errors.New("fetch failed")
	}
	return bars(1_700_000_000_000, limit), nil
}

func TestBackfillFetchesEverySymbol(t *testing.T) {
	s := newTestStore(t)
	fetcher := &fakeFetcher{}
	symbols := make([]string, 0, 9)
	for i := 0; i < 9; i++ {
		symbols = append(symbols, fmt.Sprintf("SYM%dUSDT", i))
	}

	require.NoError(t, Backfill(context.Background(), s, fetcher, symbols, "15m", 10))
	assert.Len(t, fetcher.calls, 9)

	n, err := s.Count(context.Background(), "SYM0USDT", "15m")
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)
}

func TestBackfillPropagatesFetchError(t *testing.T) {
	s := newTestStore(t)
	fetcher := &fakeFetcher{failOn: "ETHUSDT"}

	err := Backfill(context.Background(), s, fetcher, []string{"BTCUSDT", "ETHUSDT"}, "15m", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETHUSDT")
}
