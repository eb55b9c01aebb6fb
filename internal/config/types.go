package config

// Config is the main configuration carrier for maestro.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Market    MarketConfig    `yaml:"market"`
	Analyzers AnalyzersConfig `yaml:"analyzers"`
	Consensus ConsensusConfig `yaml:"consensus"`
	Trading   TradingConfig   `yaml:"trading"`
	Safety    SafetyConfig    `yaml:"safety"`
	Memory    MemoryConfig    `yaml:"memory"`
	Retrain   RetrainConfig   `yaml:"retrain"`
	Intervals IntervalsConfig `yaml:"intervals"`
	Report    ReportConfig    `yaml:"report"`
	Notify    NotifyConfig    `yaml:"notify"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	// LogPath duplicates log output to a file when set.
	LogPath  string `yaml:"log_path"`
	HTTPAddr string `yaml:"http_addr"`
	DataDir  string `yaml:"data_dir"`
}

type MarketConfig struct {
	// Source selects the snapshot provider: "binance" or "static".
	Source         string `yaml:"source"`
	Symbol         string `yaml:"symbol"`
	KlineInterval  string `yaml:"kline_interval"`
	KlineLimit     int    `yaml:"kline_limit"`
	RESTBaseURL    string `yaml:"rest_base_url"`
	HeadlineFeed   string `yaml:"headline_feed"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AnalyzersConfig struct {
	// Enabled lists analyzer names in registration order. Order matters:
	// it fixes both collection order and the order of decision reasoning.
	Enabled       []string `yaml:"enabled"`
	CopytradeFeed string   `yaml:"copytrade_feed"`
}

type ConsensusConfig struct {
	// WeightsPath points at the hot-reloadable analyzer weight table.
	WeightsPath string `yaml:"weights_path"`
}

type TradingConfig struct {
	// Mode is "paper" in this build. Live connectivity is a boundary only.
	Mode           string  `yaml:"mode"`
	MinConfidence  float64 `yaml:"min_confidence"`
	OrderSizeUSD   float64 `yaml:"order_size_usd"`
	InitialCashUSD float64 `yaml:"initial_cash_usd"`
}

type SafetyConfig struct {
	StatePath   string `yaml:"state_path"`
	HaltOnStart bool   `yaml:"halt_on_start"`
}

type MemoryConfig struct {
	Path string `yaml:"path"`
}

type RetrainConfig struct {
	TradeThreshold int    `yaml:"trade_threshold"`
	IntervalHours  int    `yaml:"interval_hours"`
	CheckHours     int    `yaml:"check_hours"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RegistryPath   string `yaml:"registry_path"`
}

type IntervalsConfig struct {
	CycleSeconds        int `yaml:"cycle_seconds"`
	CycleTimeoutSeconds int `yaml:"cycle_timeout_seconds"`
	MonitorMinutes      int `yaml:"monitor_minutes"`
}

type ReportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	Dir     string `yaml:"dir"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}
