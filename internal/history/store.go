// Package history caches OHLCV candles in a local SQLite database so
// repeated runs and warm-up calculations do not refetch the same ranges.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"quantbot/internal/exchange"
)

// Candle is one stored OHLCV bar. (symbol, interval, open_time) is the
// natural key; re-inserting the same bar overwrites it, which makes
// backfill idempotent.
type Candle struct {
	ID        uint   `gorm:"primaryKey"`
	Symbol    string `gorm:"size:32;uniqueIndex:idx_candle_key,priority:1"`
	Interval  string `gorm:"size:8;uniqueIndex:idx_candle_key,priority:2"`
	OpenTime  int64  `gorm:"uniqueIndex:idx_candle_key,priority:3"`
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CreatedAt time.Time
}

func (Candle) TableName() string { return "candles" }

// Store wraps the SQLite candle cache.
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history store: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.AutoMigrate(&Candle{}); err != nil {
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Upsert stores a batch of candles, replacing bars that already exist.
func (s *Store) Upsert(ctx context.Context, symbol, interval string, klines []exchange.Kline) error {
	if len(klines) == 0 {
		return nil
	}
	rows := make([]Candle, 0, len(klines))
	for _, k := range klines {
		rows = append(rows, Candle{
			Symbol:    strings.ToUpper(symbol),
			Interval:  interval,
			OpenTime:  k.OpenTime,
			CloseTime: k.CloseTime,
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "interval"}, {Name: "open_time"}},
		DoUpdates: clause.AssignmentColumns([]string{"close_time", "open", "high", "low", "close", "volume"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert candles: %w", err)
	}
	return nil
}

// Recent returns up to limit bars for the symbol, newest last.
func (s *Store) Recent(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	var desc []Candle
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND interval = ?", strings.ToUpper(symbol), interval).
		Order("open_time DESC").
		Limit(limit).
		Find(&desc).Error
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	out := make([]Candle, len(desc))
	for i, c := range desc {
		out[len(desc)-1-i] = c
	}
	return out, nil
}

// LatestOpenTime returns the newest stored bar's open time, 0 when empty.
func (s *Store) LatestOpenTime(ctx context.Context, symbol, interval string) (int64, error) {
	var c Candle
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND interval = ?", strings.ToUpper(symbol), interval).
		Order("open_time DESC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("latest open time: %w", err)
	}
	return c.OpenTime, nil
}

// Count returns the number of stored bars for the symbol and interval.
func (s *Store) Count(ctx context.Context, symbol, interval string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Candle{}).
		Where("symbol = ? AND interval = ?", strings.ToUpper(symbol), interval).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count candles: %w", err)
	}
	return n, nil
}
