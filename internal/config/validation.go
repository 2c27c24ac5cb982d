package config

import (
	"fmt"
	"strings"
)

// validate rejects configurations that would be unsafe to trade with.
func validate(c *Config) error {
	if len(c.NormalizedUniverse()) == 0 {
		return fmt.Errorf("universe requires at least one symbol")
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(c.Execution.IsLive()); err != nil {
		return err
	}
	if err := c.Execution.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Exit.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (s *SchedulerConfig) validate() error {
	if _, ok := parseIntervalString(s.Interval); !ok {
		return fmt.Errorf("scheduler.interval is not a valid interval: %q", s.Interval)
	}
	if s.OffsetSeconds < 0 {
		return fmt.Errorf("scheduler.offset_seconds must be >= 0")
	}
	return nil
}

func (e *ExchangeConfig) validate(live bool) error {
	if strings.TrimSpace(e.BaseURL) == "" {
		return fmt.Errorf("exchange.base_url cannot be empty")
	}
	if live {
		if strings.TrimSpace(e.APIKey) == "" || strings.TrimSpace(e.APISecret) == "" {
			return fmt.Errorf("execution.mode=live requires exchange.api_key and exchange.api_secret")
		}
	}
	o := e.Orders
	if o.MinNotional <= 0 {
		return fmt.Errorf("exchange.orders.min_notional must be > 0")
	}
	if o.PriceOffsetBps < 0 || o.PriceOffsetBps > 500 {
		return fmt.Errorf("exchange.orders.price_offset_bps must be in [0,500]")
	}
	if o.SellFraction <= 0 || o.SellFraction > 1 {
		return fmt.Errorf("exchange.orders.sell_fraction must be in (0,1]")
	}
	if e.Proxy.Enabled && strings.TrimSpace(e.Proxy.RESTURL) == "" {
		return fmt.Errorf("exchange.proxy.enabled requires exchange.proxy.rest_url")
	}
	return nil
}

func (e *ExecutionConfig) validate() error {
	mode := strings.ToLower(strings.TrimSpace(e.Mode))
	if mode != "paper" && mode != "live" {
		return fmt.Errorf("execution.mode must be paper or live, got %q", e.Mode)
	}
	if e.MaxOrderValue <= 0 {
		return fmt.Errorf("execution.max_order_value must be > 0")
	}
	switch strings.ToUpper(strings.TrimSpace(e.DefaultOrderType)) {
	case "LIMIT", "MARKET":
	default:
		return fmt.Errorf("execution.default_order_type must be LIMIT or MARKET")
	}
	if e.PaperCash <= 0 {
		return fmt.Errorf("execution.paper_cash must be > 0")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.CashBuffer < 0 || r.CashBuffer >= 1 {
		return fmt.Errorf("risk.cash_buffer must be in [0,1)")
	}
	return nil
}

func (e *ExitConfig) validate() error {
	if e.TakeProfitMult <= 1 {
		return fmt.Errorf("exit.takeprofit_mult must be > 1")
	}
	if e.TrailingDD <= 0 || e.TrailingDD >= 1 {
		return fmt.Errorf("exit.trailing_dd must be in (0,1)")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		return fmt.Errorf("notify.telegram.enabled requires bot_token and chat_id")
	}
	return nil
}
