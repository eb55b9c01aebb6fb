package config

import (
	"path/filepath"
	"strings"
)

const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":9980"
	defaultAppDataDir     = "data"
	defaultMarketSource   = "static"
	defaultMarketSymbol   = "BTCUSDT"
	defaultKlineInterval  = "1m"
	defaultKlineLimit     = 120
	defaultMarketREST     = "https://fapi.binance.com"
	defaultMarketTimeout  = 10
	defaultWeightsPath    = "configs/weights.yaml"
	defaultTradingMode    = "paper"
	defaultMinConfidence  = 0.6
	defaultOrderSizeUSD   = 100
	defaultInitialCashUSD = 10000
	defaultCycleSeconds   = 30
	defaultCycleTimeout   = 20
	defaultMonitorMinutes = 10
	defaultRetrainTrades  = 100
	defaultRetrainHours   = 24
	defaultCheckHours     = 12
	defaultRetrainTimeout = 120
	defaultReportCron     = "0 0 0 * * *"
)

var defaultAnalyzers = []string{"indicator", "pattern", "volatility", "sentiment", "copytrade"}

func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Market.applyDefaults(c.App.DataDir)
	c.Analyzers.applyDefaults(c.App.DataDir)
	c.Consensus.applyDefaults()
	c.Trading.applyDefaults()
	c.Safety.applyDefaults(c.App.DataDir)
	c.Memory.applyDefaults(c.App.DataDir)
	c.Retrain.applyDefaults(c.App.DataDir)
	c.Intervals.applyDefaults()
	c.Report.applyDefaults(c.App.DataDir)
}

func (a *AppConfig) applyDefaults() {
	if a == nil {
		return
	}
	defaultString(&a.Env, defaultAppEnv)
	defaultString(&a.LogLevel, defaultAppLogLevel)
	defaultString(&a.HTTPAddr, defaultAppHTTPAddr)
	defaultString(&a.DataDir, defaultAppDataDir)
}

func (m *MarketConfig) applyDefaults(dataDir string) {
	if m == nil {
		return
	}
	defaultString(&m.Source, defaultMarketSource)
	defaultString(&m.Symbol, defaultMarketSymbol)
	defaultString(&m.KlineInterval, defaultKlineInterval)
	defaultString(&m.RESTBaseURL, defaultMarketREST)
	defaultString(&m.HeadlineFeed, filepath.Join(dataDir, "news", "headlines.json"))
	if m.KlineLimit <= 0 {
		m.KlineLimit = defaultKlineLimit
	}
	if m.TimeoutSeconds <= 0 {
		m.TimeoutSeconds = defaultMarketTimeout
	}
}

func (a *AnalyzersConfig) applyDefaults(dataDir string) {
	if a == nil {
		return
	}
	if len(a.Enabled) == 0 {
		a.Enabled = append([]string(nil), defaultAnalyzers...)
	}
	defaultString(&a.CopytradeFeed, filepath.Join(dataDir, "copytrade", "signals.json"))
}

func (c *ConsensusConfig) applyDefaults() {
	if c == nil {
		return
	}
	defaultString(&c.WeightsPath, defaultWeightsPath)
}

func (t *TradingConfig) applyDefaults() {
	if t == nil {
		return
	}
	defaultString(&t.Mode, defaultTradingMode)
	if t.MinConfidence <= 0 {
		t.MinConfidence = defaultMinConfidence
	}
	if t.OrderSizeUSD <= 0 {
		t.OrderSizeUSD = defaultOrderSizeUSD
	}
	if t.InitialCashUSD <= 0 {
		t.InitialCashUSD = defaultInitialCashUSD
	}
}

func (s *SafetyConfig) applyDefaults(dataDir string) {
	if s == nil {
		return
	}
	defaultString(&s.StatePath, filepath.Join(dataDir, "safety_state.json"))
}

func (m *MemoryConfig) applyDefaults(dataDir string) {
	if m == nil {
		return
	}
	defaultString(&m.Path, filepath.Join(dataDir, "memory.db"))
}

func (r *RetrainConfig) applyDefaults(dataDir string) {
	if r == nil {
		return
	}
	if r.TradeThreshold <= 0 {
		r.TradeThreshold = defaultRetrainTrades
	}
	if r.IntervalHours <= 0 {
		r.IntervalHours = defaultRetrainHours
	}
	if r.CheckHours <= 0 {
		r.CheckHours = defaultCheckHours
	}
	if r.TimeoutSeconds <= 0 {
		r.TimeoutSeconds = defaultRetrainTimeout
	}
	defaultString(&r.RegistryPath, filepath.Join(dataDir, "models.db"))
}

func (i *IntervalsConfig) applyDefaults() {
	if i == nil {
		return
	}
	if i.CycleSeconds <= 0 {
		i.CycleSeconds = defaultCycleSeconds
	}
	if i.CycleTimeoutSeconds <= 0 {
		i.CycleTimeoutSeconds = defaultCycleTimeout
	}
	if i.MonitorMinutes <= 0 {
		i.MonitorMinutes = defaultMonitorMinutes
	}
}

func (r *ReportConfig) applyDefaults(dataDir string) {
	if r == nil {
		return
	}
	defaultString(&r.Cron, defaultReportCron)
	defaultString(&r.Dir, filepath.Join(dataDir, "reports"))
}

func defaultString(target *string, def string) {
	if target != nil && strings.TrimSpace(*target) == "" {
		*target = def
	}
}
