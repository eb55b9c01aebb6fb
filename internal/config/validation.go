package config

import (
	"fmt"
	"strings"
)

var knownAnalyzers = map[string]bool{
	"indicator": true, "pattern": true, "volatility": true,
	"sentiment": true, "copytrade": true,
}

var knownMarketSources = map[string]bool{
	"binance": true, "static": true,
}

func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Analyzers.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Retrain.validate(); err != nil {
		return err
	}
	if err := c.Intervals.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	src := strings.ToLower(strings.TrimSpace(m.Source))
	if !knownMarketSources[src] {
		return fmt.Errorf("market.source %q is not supported (binance, static)", m.Source)
	}
	m.Source = src
	if strings.TrimSpace(m.Symbol) == "" {
		return fmt.Errorf("market.symbol cannot be empty")
	}
	if m.KlineLimit < 30 || m.KlineLimit > 1000 {
		return fmt.Errorf("market.kline_limit must be in [30,1000]")
	}
	return nil
}

func (a *AnalyzersConfig) validate() error {
	if len(a.Enabled) == 0 {
		return fmt.Errorf("analyzers.enabled requires at least one analyzer")
	}
	seen := make(map[string]bool, len(a.Enabled))
	for i, name := range a.Enabled {
		name = strings.ToLower(strings.TrimSpace(name))
		if !knownAnalyzers[name] {
			return fmt.Errorf("analyzers.enabled contains unknown analyzer %q", a.Enabled[i])
		}
		if seen[name] {
			return fmt.Errorf("analyzers.enabled lists %q twice", name)
		}
		seen[name] = true
		a.Enabled[i] = name
	}
	return nil
}

func (t *TradingConfig) validate() error {
	mode := strings.ToLower(strings.TrimSpace(t.Mode))
	// Live order routing does not exist in this build.
	if mode != "paper" {
		return fmt.Errorf("trading.mode %q is not supported, only paper trading is available", t.Mode)
	}
	t.Mode = mode
	if t.MinConfidence < 0 || t.MinConfidence > 1 {
		return fmt.Errorf("trading.min_confidence must be in [0,1]")
	}
	if t.OrderSizeUSD <= 0 {
		return fmt.Errorf("trading.order_size_usd must be > 0")
	}
	if t.InitialCashUSD < t.OrderSizeUSD {
		return fmt.Errorf("trading.initial_cash_usd must cover at least one order")
	}
	return nil
}

func (r *RetrainConfig) validate() error {
	if r.TradeThreshold < 1 {
		return fmt.Errorf("retrain.trade_threshold must be >= 1")
	}
	if r.IntervalHours < 1 {
		return fmt.Errorf("retrain.interval_hours must be >= 1")
	}
	if r.CheckHours < 1 {
		return fmt.Errorf("retrain.check_hours must be >= 1")
	}
	return nil
}

func (i *IntervalsConfig) validate() error {
	if i.CycleSeconds < 1 {
		return fmt.Errorf("intervals.cycle_seconds must be >= 1")
	}
	if i.CycleTimeoutSeconds < 1 {
		return fmt.Errorf("intervals.cycle_timeout_seconds must be >= 1")
	}
	if i.MonitorMinutes < 1 {
		return fmt.Errorf("intervals.monitor_minutes must be >= 1")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}
