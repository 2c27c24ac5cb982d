package config

import "strings"

// Config is the full runtime configuration of the bot. Every recognized key
// is declared here; anything the YAML sets that does not map to a field is a
// load error, so typos fail at startup instead of defaulting deep in a cycle.
type Config struct {
	// Include lists extra config files merged before this one; consumed by
	// the loader, kept here so strict decoding accepts the key.
	Include []string `toml:"include"`

	App       AppConfig       `toml:"app"`
	Universe  []string        `toml:"universe"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Execution ExecutionConfig `toml:"execution"`
	Risk      RiskConfig      `toml:"risk"`
	Exit      ExitConfig      `toml:"exit"`
	Storage   StorageConfig   `toml:"storage"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

type SchedulerConfig struct {
	Interval       string `toml:"interval"`
	OffsetSeconds  int    `toml:"offset_seconds"`
	RunImmediately bool   `toml:"run_immediately"`
}

// ExchangeConfig describes how to reach the spot exchange and the order
// safety knobs applied before anything is submitted to it.
type ExchangeConfig struct {
	Name           string       `toml:"name"`
	BaseURL        string       `toml:"base_url"`
	APIKey         string       `toml:"api_key"`
	APISecret      string       `toml:"api_secret"`
	RecvWindowMs   int          `toml:"recv_window_ms"`
	TimeoutSeconds int          `toml:"timeout_seconds"`
	Proxy          ProxyConfig  `toml:"proxy"`
	Orders         OrdersConfig `toml:"orders"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

type OrdersConfig struct {
	// MinNotional is the floor (in quote currency) below which a balance is
	// dust rather than a position, and below which no order is placed. The
	// exchange's own per-symbol minNotional filter still applies on top.
	MinNotional             float64 `toml:"min_notional"`
	PriceOffsetBps          float64 `toml:"price_offset_bps"`
	PreventDuplicateEntries bool    `toml:"prevent_duplicate_entries"`
	PreventIfOpenOrders     bool    `toml:"prevent_if_open_orders"`
	CancelBuysBeforeSell    bool    `toml:"cancel_buys_before_sell"`
	SellFraction            float64 `toml:"sell_fraction"`
	UseMarketOnRiskExit     bool    `toml:"use_market_on_risk_exit"`
}

type ExecutionConfig struct {
	Mode             string  `toml:"mode"` // "paper" | "live"
	MaxOrderValue    float64 `toml:"max_order_value"`
	DefaultOrderType string  `toml:"default_order_type"` // "LIMIT" | "MARKET"
	// PaperCash seeds the simulated ledger's quote balance in paper mode.
	PaperCash float64 `toml:"paper_cash"`
}

type RiskConfig struct {
	CashBuffer float64 `toml:"cash_buffer"`
}

type ExitConfig struct {
	TakeProfitMult float64 `toml:"takeprofit_mult"`
	TrailingDD     float64 `toml:"trailing_dd"`
	// RulesPath, when set, points at a YAML file whose exit parameters are
	// hot-reloaded at runtime; the values above act as the initial snapshot.
	RulesPath string `toml:"rules_path"`
}

type StorageConfig struct {
	PositionsPath string `toml:"positions_path"`
	JournalPath   string `toml:"journal_path"`
	LockPath      string `toml:"lock_path"`
	HistoryDBPath string `toml:"history_db_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// IsLive reports whether orders reach the real exchange.
func (e ExecutionConfig) IsLive() bool {
	return strings.EqualFold(strings.TrimSpace(e.Mode), "live")
}

// NormalizedUniverse returns the symbol universe upper-cased, trimmed and
// de-duplicated, preserving order.
func (c *Config) NormalizedUniverse() []string {
	seen := make(map[string]bool, len(c.Universe))
	out := make([]string, 0, len(c.Universe))
	for _, sym := range c.Universe {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

// keySet tracks which config paths the YAML explicitly set, so defaults only
// fill keys the operator left out.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the defaulting rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
