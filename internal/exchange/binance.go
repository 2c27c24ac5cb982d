package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"quantbot/internal/logger"
	"quantbot/internal/pkg/circuit"
	"quantbot/internal/types"
)

const (
	defaultHTTPTimeout    = 10 * time.Second
	breakerFailThreshold  = 5
	breakerCooldownPeriod = 30 * time.Second
)

// BinanceConfig carries connection settings for the spot REST API.
type BinanceConfig struct {
	APIKey       string
	APISecret    string
	BaseURL      string
	HTTPTimeout  time.Duration
	RecvWindowMs int
	ProxyURL     string
}

var _ Gateway = (*BinanceGateway)(nil)

// BinanceGateway implements Gateway against the Binance spot REST API.
type BinanceGateway struct {
	cfg     BinanceConfig
	client  *binance.Client
	breaker *circuit.Breaker
	filters *filterCache
}

// NewBinanceGateway builds the spot client. Credentials may be empty for
// read-only use (paper mode still fetches filters and prices).
func NewBinanceGateway(cfg BinanceConfig) (*BinanceGateway, error) {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}
	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		client.BaseURL = base
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &BinanceGateway{
		cfg:     cfg,
		client:  client,
		breaker: circuit.NewBreaker("binance-rest", breakerFailThreshold, breakerCooldownPeriod),
		filters: newFilterCache(),
	}, nil
}

func (g *BinanceGateway) opts() []binance.RequestOption {
	if g.cfg.RecvWindowMs > 0 {
		return []binance.RequestOption{binance.WithRecvWindow(int64(g.cfg.RecvWindowMs))}
	}
	return nil
}

// call runs fn under the circuit breaker. Timeouts do not trip the breaker
// as failures twice; one RecordFailure per call is enough.
func (g *BinanceGateway) call(name string, fn func() error) error {
	if !g.breaker.Allow() {
		return fmt.Errorf("%s: %w", name, ErrBreakerOpen)
	}
	if err := fn(); err != nil {
		g.breaker.RecordFailure()
		return err
	}
	g.breaker.RecordSuccess()
	return nil
}

func (g *BinanceGateway) Balances(ctx context.Context) (map[string]Balance, error) {
	var out map[string]Balance
	err := g.call("balances", func() error {
		acct, err := g.client.NewGetAccountService().Do(ctx, g.opts()...)
		if err != nil {
			return err
		}
		out = make(map[string]Balance, len(acct.Balances))
		for _, b := range acct.Balances {
			free, err := decimal.NewFromString(b.Free)
			if err != nil {
				return fmt.Errorf("unparseable free balance for %s: %w", b.Asset, err)
			}
			locked, err := decimal.NewFromString(b.Locked)
			if err != nil {
				return fmt.Errorf("unparseable locked balance for %s: %w", b.Asset, err)
			}
			if free.IsZero() && locked.IsZero() {
				continue
			}
			asset := strings.ToUpper(b.Asset)
			out[asset] = Balance{Asset: asset, Free: free, Locked: locked}
		}
		return nil
	})
	return out, err
}

func (g *BinanceGateway) OpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	var out []OpenOrder
	err := g.call("open_orders", func() error {
		orders, err := g.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx, g.opts()...)
		if err != nil {
			return err
		}
		out = make([]OpenOrder, 0, len(orders))
		for _, o := range orders {
			oo := OpenOrder{
				OrderID:   o.OrderID,
				Symbol:    o.Symbol,
				Status:    string(o.Status),
				CreatedAt: time.UnixMilli(o.Time).UTC(),
			}
			if o.Side == binance.SideTypeSell {
				oo.Side = types.SideSell
			} else {
				oo.Side = types.SideBuy
			}
			if o.Type == binance.OrderTypeMarket {
				oo.Type = types.OrderTypeMarket
			} else {
				oo.Type = types.OrderTypeLimit
			}
			if oo.Price, err = decimal.NewFromString(o.Price); err != nil {
				return fmt.Errorf("order %d: unparseable price %q: %w", o.OrderID, o.Price, err)
			}
			if oo.OrigQty, err = decimal.NewFromString(o.OrigQuantity); err != nil {
				return fmt.Errorf("order %d: unparseable quantity %q: %w", o.OrderID, o.OrigQuantity, err)
			}
			if oo.ExecutedQty, err = decimal.NewFromString(o.ExecutedQuantity); err != nil {
				return fmt.Errorf("order %d: unparseable executed quantity %q: %w", o.OrderID, o.ExecutedQuantity, err)
			}
			out = append(out, oo)
		}
		return nil
	})
	return out, err
}

// SymbolFilters returns the trading rules for symbol. Fetched once per
// process; a parse failure is fatal for the symbol rather than defaulted.
func (g *BinanceGateway) SymbolFilters(ctx context.Context, symbol string) (SymbolFilters, error) {
	if f, ok := g.filters.get(symbol); ok {
		return f, nil
	}
	var out SymbolFilters
	err := g.call("exchange_info", func() error {
		info, err := g.client.NewExchangeInfoService().Symbols(symbol).Do(ctx)
		if err != nil {
			return err
		}
		for _, s := range info.Symbols {
			if !strings.EqualFold(s.Symbol, symbol) {
				continue
			}
			stepSize, tickSize, minNotional := extractRawFilters(s.Filters)
			out, err = ParseSymbolFilters(s.Symbol, s.BaseAsset, s.QuoteAsset, stepSize, tickSize, minNotional)
			return err
		}
		return fmt.Errorf("symbol %s not present in exchange info", symbol)
	})
	if err != nil {
		return SymbolFilters{}, err
	}
	g.filters.put(out)
	logger.Infof("loaded filters for %s: step=%s tick=%s min_notional=%s",
		out.Symbol, out.StepSize, out.TickSize, out.MinNotional)
	return out, nil
}

// extractRawFilters pulls the three filters the execution core cares about
// out of the raw filter maps. Newer API versions publish NOTIONAL instead of
// MIN_NOTIONAL; both carry a minNotional field.
func extractRawFilters(filters []map[string]interface{}) (stepSize, tickSize, minNotional string) {
	for _, f := range filters {
		ft, _ := f["filterType"].(string)
		switch ft {
		case "LOT_SIZE":
			stepSize, _ = f["stepSize"].(string)
		case "PRICE_FILTER":
			tickSize, _ = f["tickSize"].(string)
		case "MIN_NOTIONAL", "NOTIONAL":
			if minNotional == "" {
				minNotional, _ = f["minNotional"].(string)
			}
		}
	}
	return stepSize, tickSize, minNotional
}

func (g *BinanceGateway) CreateOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	var out OrderResult
	err := g.call("create_order", func() error {
		svc := g.client.NewCreateOrderService().
			Symbol(req.Symbol).
			Quantity(req.Quantity.String())
		if req.Side == types.SideSell {
			svc = svc.Side(binance.SideTypeSell)
		} else {
			svc = svc.Side(binance.SideTypeBuy)
		}
		if req.Type == types.OrderTypeMarket {
			svc = svc.Type(binance.OrderTypeMarket)
		} else {
			svc = svc.Type(binance.OrderTypeLimit).
				TimeInForce(binance.TimeInForceTypeGTC).
				Price(req.Price.String())
		}
		res, err := svc.Do(ctx, g.opts()...)
		if err != nil {
			return err
		}
		out = OrderResult{
			OrderID:      strconv.FormatInt(res.OrderID, 10),
			Status:       string(res.Status),
			TransactedAt: time.UnixMilli(res.TransactTime).UTC(),
		}
		if out.ExecutedQty, err = decimal.NewFromString(res.ExecutedQuantity); err != nil {
			return fmt.Errorf("order %d: unparseable executed quantity %q: %w", res.OrderID, res.ExecutedQuantity, err)
		}
		if out.CumulativeQuote, err = decimal.NewFromString(res.CummulativeQuoteQuantity); err != nil {
			return fmt.Errorf("order %d: unparseable cumulative quote %q: %w", res.OrderID, res.CummulativeQuoteQuantity, err)
		}
		if out.ExecutedQty.IsPositive() {
			out.AvgFillPrice = out.CumulativeQuote.Div(out.ExecutedQty)
		} else {
			out.AvgFillPrice = req.Price
		}
		return nil
	})
	return out, err
}

func (g *BinanceGateway) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return g.call("cancel_order", func() error {
		_, err := g.client.NewCancelOrderService().
			Symbol(symbol).
			OrderID(orderID).
			Do(ctx, g.opts()...)
		return err
	})
}

func (g *BinanceGateway) TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := g.call("ticker_price", func() error {
		prices, err := g.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return err
		}
		if len(prices) == 0 {
			return fmt.Errorf("no ticker price for %s", symbol)
		}
		out, err = decimal.NewFromString(prices[0].Price)
		if err != nil {
			return fmt.Errorf("unparseable ticker price %q for %s: %w", prices[0].Price, symbol, err)
		}
		return nil
	})
	return out, err
}

func (g *BinanceGateway) Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	var out []Kline
	err := g.call("klines", func() error {
		kls, err := g.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		if err != nil {
			return err
		}
		out = make([]Kline, 0, len(kls))
		for _, k := range kls {
			kl := Kline{OpenTime: k.OpenTime, CloseTime: k.CloseTime}
			if kl.Open, err = strconv.ParseFloat(k.Open, 64); err != nil {
				return fmt.Errorf("kline %d: bad open %q: %w", k.OpenTime, k.Open, err)
			}
			if kl.High, err = strconv.ParseFloat(k.High, 64); err != nil {
				return fmt.Errorf("kline %d: bad high %q: %w", k.OpenTime, k.High, err)
			}
			if kl.Low, err = strconv.ParseFloat(k.Low, 64); err != nil {
				return fmt.Errorf("kline %d: bad low %q: %w", k.OpenTime, k.Low, err)
			}
			if kl.Close, err = strconv.ParseFloat(k.Close, 64); err != nil {
				return fmt.Errorf("kline %d: bad close %q: %w", k.OpenTime, k.Close, err)
			}
			if kl.Volume, err = strconv.ParseFloat(k.Volume, 64); err != nil {
				return fmt.Errorf("kline %d: bad volume %q: %w", k.OpenTime, k.Volume, err)
			}
			out = append(out, kl)
		}
		return nil
	})
	return out, err
}

// klineIntervals holds the supported spot kline intervals, coarse to fine.
var klineIntervals = []struct {
	d     time.Duration
	label string
}{
	{3 * 24 * time.Hour, "3d"},
	{24 * time.Hour, "1d"},
	{12 * time.Hour, "12h"},
	{8 * time.Hour, "8h"},
	{6 * time.Hour, "6h"},
	{4 * time.Hour, "4h"},
	{2 * time.Hour, "2h"},
	{time.Hour, "1h"},
	{30 * time.Minute, "30m"},
	{15 * time.Minute, "15m"},
	{5 * time.Minute, "5m"},
	{3 * time.Minute, "3m"},
	{time.Minute, "1m"},
}

// KlineInterval maps an arbitrary wake interval onto the coarsest supported
// kline interval that fits inside it. Not every scheduler interval is a
// valid kline interval; "45s" and "2m" wakes still need candles. Anything
// below one minute reads 1m candles.
func KlineInterval(d time.Duration) string {
	for _, ki := range klineIntervals {
		if d >= ki.d {
			return ki.label
		}
	}
	return "1m"
}
