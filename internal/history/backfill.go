package history

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"quantbot/internal/exchange"
	"quantbot/internal/logger"
)

const maxBackfillWorkers = 4

// KlineFetcher is the slice of the exchange surface backfill needs.
type KlineFetcher interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]exchange.Kline, error)
}

// Backfill fetches recent candles for every symbol on a bounded worker
// pool and stores them. Fetches run in parallel; they read market data
// only and never touch account balance, so the per-symbol order loop's
// serialization rule does not apply here.
func Backfill(ctx context.Context, store *Store, fetcher KlineFetcher, symbols []string, interval string, limit int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBackfillWorkers)
	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			klines, err := fetcher.Klines(ctx, symbol, interval, limit)
			if err != nil {
				return fmt.Errorf("backfill %s: %w", symbol, err)
			}
			if err := store.Upsert(ctx, symbol, interval, klines); err != nil {
				return fmt.Errorf("backfill %s: %w", symbol, err)
			}
			logger.Debugf("backfilled %d %s candles for %s", len(klines), interval, symbol)
			return nil
		})
	}
	return g.Wait()
}
