package config

import "strings"

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9985"
	defaultAppLogPath       = "logs/quantbot.log"
	defaultSchedInterval    = "15m"
	defaultSchedOffset      = 5
	defaultExchangeName     = "binance"
	defaultExchangeREST     = "https://api.binance.com"
	defaultRecvWindowMs     = 5000
	defaultTimeoutSeconds   = 30
	defaultMinNotional      = 10.0
	defaultSellFraction     = 1.0
	defaultExecMode         = "paper"
	defaultMaxOrderValue    = 250.0
	defaultPaperCash        = 10000.0
	defaultOrderType        = "LIMIT"
	defaultCashBuffer       = 0.40
	defaultTakeProfitMult   = 1.8
	defaultTrailingDD       = 0.12
	defaultPositionsPath    = "data/positions.json"
	defaultJournalPath      = "data/journal.jsonl"
	defaultLockPath         = "data/quantbot.lock"
	defaultHistoryDBPath    = "data/history.db"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Scheduler.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Execution.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Exit.applyDefaults(keys)
	c.Storage.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (s *SchedulerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("scheduler.interval", &s.Interval, defaultSchedInterval),
		fieldDefault{
			key:   "scheduler.offset_seconds",
			need:  func() bool { return s.OffsetSeconds <= 0 },
			apply: func() { s.OffsetSeconds = defaultSchedOffset },
		},
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.name", &e.Name, defaultExchangeName),
		stringFieldDefault("exchange.base_url", &e.BaseURL, defaultExchangeREST),
		fieldDefault{
			key:   "exchange.recv_window_ms",
			need:  func() bool { return e.RecvWindowMs <= 0 },
			apply: func() { e.RecvWindowMs = defaultRecvWindowMs },
		},
		fieldDefault{
			key:   "exchange.timeout_seconds",
			need:  func() bool { return e.TimeoutSeconds <= 0 },
			apply: func() { e.TimeoutSeconds = defaultTimeoutSeconds },
		},
		fieldDefault{
			key:   "exchange.orders.min_notional",
			need:  func() bool { return e.Orders.MinNotional <= 0 },
			apply: func() { e.Orders.MinNotional = defaultMinNotional },
		},
		fieldDefault{
			key:   "exchange.orders.sell_fraction",
			need:  func() bool { return e.Orders.SellFraction <= 0 },
			apply: func() { e.Orders.SellFraction = defaultSellFraction },
		},
		boolFieldDefault("exchange.orders.prevent_duplicate_entries", &e.Orders.PreventDuplicateEntries, true),
		boolFieldDefault("exchange.orders.prevent_if_open_orders", &e.Orders.PreventIfOpenOrders, true),
		boolFieldDefault("exchange.orders.cancel_buys_before_sell", &e.Orders.CancelBuysBeforeSell, true),
		boolFieldDefault("exchange.orders.use_market_on_risk_exit", &e.Orders.UseMarketOnRiskExit, true),
	)
	e.Proxy.RESTURL = strings.TrimSpace(e.Proxy.RESTURL)
}

func (e *ExecutionConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("execution.mode", &e.Mode, defaultExecMode),
		stringFieldDefault("execution.default_order_type", &e.DefaultOrderType, defaultOrderType),
		fieldDefault{
			key:   "execution.max_order_value",
			need:  func() bool { return e.MaxOrderValue <= 0 },
			apply: func() { e.MaxOrderValue = defaultMaxOrderValue },
		},
		fieldDefault{
			key:   "execution.paper_cash",
			need:  func() bool { return e.PaperCash <= 0 },
			apply: func() { e.PaperCash = defaultPaperCash },
		},
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.cash_buffer",
			need:  func() bool { return r.CashBuffer <= 0 },
			apply: func() { r.CashBuffer = defaultCashBuffer },
		},
	)
}

func (e *ExitConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "exit.takeprofit_mult",
			need:  func() bool { return e.TakeProfitMult <= 0 },
			apply: func() { e.TakeProfitMult = defaultTakeProfitMult },
		},
		fieldDefault{
			key:   "exit.trailing_dd",
			need:  func() bool { return e.TrailingDD <= 0 },
			apply: func() { e.TrailingDD = defaultTrailingDD },
		},
	)
}

func (s *StorageConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("storage.positions_path", &s.PositionsPath, defaultPositionsPath),
		stringFieldDefault("storage.journal_path", &s.JournalPath, defaultJournalPath),
		stringFieldDefault("storage.lock_path", &s.LockPath, defaultLockPath),
		stringFieldDefault("storage.history_db_path", &s.HistoryDBPath, defaultHistoryDBPath),
	)
}

func applyFieldDefaults(keys keySet, defaults ...fieldDefault) {
	for _, def := range defaults {
		if keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
