// Package app wires the bot together: one instance lock, the stores, the
// exchange gateway, the execution adapter for the configured mode, the
// control loop and the surrounding services.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"quantbot/internal/config"
	"quantbot/internal/config/loader"
	"quantbot/internal/engine"
	"quantbot/internal/exchange"
	"quantbot/internal/executor"
	"quantbot/internal/exitrule"
	"quantbot/internal/guard"
	"quantbot/internal/history"
	"quantbot/internal/journal"
	"quantbot/internal/logger"
	"quantbot/internal/notifier"
	"quantbot/internal/pkg/symbol"
	"quantbot/internal/position"
	"quantbot/internal/scheduler"
	"quantbot/internal/signal"
	"quantbot/internal/transport/httpapi"
	"quantbot/internal/types"
)

// App holds the fully-wired bot, built but not yet running.
type App struct {
	cfg *config.Config

	lock       *position.InstanceLock
	store      *position.Store
	jnl        *journal.Journal
	gateway    *exchange.BinanceGateway
	exitLoader *loader.ExitLoader
	history    *history.Store
	engine     *engine.Engine
	sched      *scheduler.AlignedScheduler
	httpSrv    *httpapi.Server
	telegram   notifier.Notifier
	signals    *signal.Static
}

// NewApp builds every component from the validated config. The instance
// lock is taken here: construction of a second bot against the same store
// path fails before anything can trade.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	lock, err := position.AcquireInstanceLock(cfg.Storage.LockPath)
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}

	a := &App{cfg: cfg, lock: lock}
	if err := a.build(); err != nil {
		lock.Release()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg := a.cfg

	store, err := position.NewStore(cfg.Storage.PositionsPath)
	if err != nil {
		return err
	}
	a.store = store

	jnl, err := journal.Open(cfg.Storage.JournalPath)
	if err != nil {
		return err
	}
	a.jnl = jnl

	gwCfg := exchange.BinanceConfig{
		APIKey:       cfg.Exchange.APIKey,
		APISecret:    cfg.Exchange.APISecret,
		BaseURL:      cfg.Exchange.BaseURL,
		HTTPTimeout:  time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
		RecvWindowMs: cfg.Exchange.RecvWindowMs,
	}
	if cfg.Exchange.Proxy.Enabled {
		gwCfg.ProxyURL = cfg.Exchange.Proxy.RESTURL
	}
	gateway, err := exchange.NewBinanceGateway(gwCfg)
	if err != nil {
		return fmt.Errorf("build exchange gateway: %w", err)
	}
	a.gateway = gateway

	a.exitLoader = loader.NewExitLoader(cfg.Exit.RulesPath, loader.ExitParams{
		TakeProfitMult: cfg.Exit.TakeProfitMult,
		TrailingDD:     cfg.Exit.TrailingDD,
	})
	if err := a.exitLoader.Start(); err != nil {
		return err
	}

	if path := strings.TrimSpace(cfg.Storage.HistoryDBPath); path != "" {
		hist, err := history.NewStore(path)
		if err != nil {
			return err
		}
		a.history = hist
	}

	guardCfg := guard.Config{
		MinNotional:             decimal.NewFromFloat(cfg.Exchange.Orders.MinNotional),
		PreventDuplicateEntries: cfg.Exchange.Orders.PreventDuplicateEntries,
		PreventIfOpenOrders:     cfg.Exchange.Orders.PreventIfOpenOrders,
		CancelBuysBeforeSell:    cfg.Exchange.Orders.CancelBuysBeforeSell,
		SellFraction:            decimal.NewFromFloat(cfg.Exchange.Orders.SellFraction),
		CashBuffer:              decimal.NewFromFloat(cfg.Risk.CashBuffer),
		MaxOrderValue:           decimal.NewFromFloat(cfg.Execution.MaxOrderValue),
	}

	var (
		adapter executor.Adapter
		account guard.AccountReader
	)
	if cfg.Execution.IsLive() {
		grd := guard.New(gateway, guardCfg)
		adapter = executor.NewLive(gateway, grd, jnl, executor.LiveConfig{
			DefaultOrderType: orderType(cfg.Execution.DefaultOrderType),
			PriceOffsetBps:   decimal.NewFromFloat(cfg.Exchange.Orders.PriceOffsetBps),
			MinNotional:      guardCfg.MinNotional,
		})
		account = gateway
		logger.Infof("execution mode: LIVE against %s", cfg.Exchange.Name)
	} else {
		ledger := executor.NewLedger(map[string]decimal.Decimal{
			paperQuoteAsset(cfg.Universe): decimal.NewFromFloat(cfg.Execution.PaperCash),
		})
		adapter = executor.NewSimulated(gateway, jnl, guardCfg, ledger)
		account = ledger
		logger.Infof("execution mode: PAPER with %.2f starting cash", cfg.Execution.PaperCash)
	}

	a.signals = signal.NewStatic(nil)
	exitParams := func() exitrule.Params {
		snap := a.exitLoader.Snapshot()
		return exitrule.Params{
			TakeProfitMult: decimal.NewFromFloat(snap.Params.TakeProfitMult),
			TrailingDD:     decimal.NewFromFloat(snap.Params.TrailingDD),
		}
	}

	a.engine = engine.New(engine.Config{
		Symbols:             cfg.NormalizedUniverse(),
		Interval:            cfg.Scheduler.IntervalDuration(),
		MinNotional:         guardCfg.MinNotional,
		UseMarketOnRiskExit: cfg.Exchange.Orders.UseMarketOnRiskExit,
		CallTimeout:         time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	}, store, adapter, account, gateway, gateway, a.signals, exitParams)

	if cfg.Notify.Telegram.Enabled {
		a.telegram = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
		a.engine.OnFill(a.telegram.NotifyFill)
		a.engine.OnError(a.telegram.NotifyError)
	}

	if cfg.App.HTTPAddr != "" {
		srv, err := httpapi.NewServer(httpapi.ServerConfig{
			Addr:      cfg.App.HTTPAddr,
			Mode:      adapter.Mode(),
			Positions: store,
			Journal:   jnl,
		})
		if err != nil {
			return err
		}
		a.httpSrv = srv
	}

	return nil
}

// Signals exposes the strategy intents so an external layer (or an
// operator tool) can drive the engine.
func (a *App) Signals() *signal.Static { return a.signals }

// Run starts the scheduler loop plus the HTTP server and blocks until the
// context is canceled or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)

	if a.history != nil {
		// Warm the candle cache before the first wake; a backfill failure
		// is logged, not fatal, the loop can fetch on demand later. The
		// wake interval is mapped onto a supported kline interval since
		// not every valid wake interval is one.
		interval := exchange.KlineInterval(a.cfg.Scheduler.IntervalDuration())
		if err := history.Backfill(ctx, a.history, a.gateway, a.cfg.NormalizedUniverse(), interval, 200); err != nil {
			logger.Warnf("history backfill incomplete: %v", err)
		}
	}

	if a.httpSrv != nil {
		group.Go(func() error {
			logger.Infof("http status server listening on %s", a.httpSrv.Addr())
			if err := a.httpSrv.Start(ctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		a.sched = scheduler.NewAlignedScheduler(ctx,
			a.cfg.Scheduler.IntervalDuration(),
			time.Duration(a.cfg.Scheduler.OffsetSeconds)*time.Second)
		a.sched.RunImmediately = a.cfg.Scheduler.RunImmediately
		a.sched.Start(func(now time.Time) {
			a.engine.RunCycle(ctx, now)
		})
		return nil
	})

	return group.Wait()
}

func (a *App) close() {
	if a.exitLoader != nil {
		a.exitLoader.Close()
	}
	if a.jnl != nil {
		a.jnl.Close()
	}
	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			logger.Warnf("release instance lock: %v", err)
		}
	}
}

func orderType(raw string) types.OrderType {
	if strings.EqualFold(strings.TrimSpace(raw), "MARKET") {
		return types.OrderTypeMarket
	}
	return types.OrderTypeLimit
}

// paperQuoteAsset picks the quote currency to seed the paper ledger with,
// derived from the first universe symbol. Mixed-quote universes are not a
// paper-mode use case; USDT is the fallback.
func paperQuoteAsset(universe []string) string {
	for _, raw := range universe {
		if sym := symbol.Parse(raw); sym.Quote != "" {
			return sym.Quote
		}
	}
	return "USDT"
}
