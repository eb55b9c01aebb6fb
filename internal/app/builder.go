package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"maestro/internal/analyzer"
	"maestro/internal/config"
	"maestro/internal/consensus"
	"maestro/internal/engine"
	"maestro/internal/exchange"
	binancesrc "maestro/internal/gateway/binance"
	"maestro/internal/logger"
	"maestro/internal/market"
	"maestro/internal/memory"
	"maestro/internal/monitor"
	"maestro/internal/notifier"
	"maestro/internal/report"
	"maestro/internal/retrain"
	"maestro/internal/safety"
	adminhttp "maestro/internal/transport/http/admin"
)

// AppBuilder assembles the application from configuration. The *Fn fields
// exist so tests can substitute individual stages.
type AppBuilder struct {
	cfg *config.Config

	marketSourceFn func(*config.Config) (market.Source, error)
	notifierFn     func(config.NotifyConfig) notifier.TextNotifier
	trainerFn      func() retrain.Trainer
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:            cfg,
		marketSourceFn: buildMarketSource,
		notifierFn:     buildNotifier,
		trainerFn:      retrain.NewNoopTrainer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithMarketSource replaces the candle source, used by replay harnesses.
func WithMarketSource(fn func(*config.Config) (market.Source, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.marketSourceFn = fn }
}

// WithTrainer replaces the retrain trainer.
func WithTrainer(fn func() retrain.Trainer) AppBuilderOption {
	return func(b *AppBuilder) { b.trainerFn = fn }
}

// WithNotifier replaces the outbound notifier.
func WithNotifier(fn func(config.NotifyConfig) notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) { b.notifierFn = fn }
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	gate, err := safety.NewGate(cfg.Safety.StatePath)
	if err != nil {
		return nil, fmt.Errorf("opening safety gate: %w", err)
	}

	mem, err := memory.Open(cfg.Memory.Path)
	if err != nil {
		return nil, fmt.Errorf("opening event memory: %w", err)
	}
	logger.Infof("✓ event memory at %s", cfg.Memory.Path)

	registry, err := retrain.NewVersionRegistry(cfg.Retrain.RegistryPath)
	if err != nil {
		mem.Close()
		return nil, fmt.Errorf("opening model registry: %w", err)
	}
	closeStores := func() {
		mem.Close()
		registry.Close()
	}

	textNotifier := b.notifierFn(cfg.Notify)

	weights, err := consensus.NewWeightRegistry(cfg.Consensus.WeightsPath)
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("loading weight table: %w", err)
	}

	src, err := b.marketSourceFn(cfg)
	if err != nil {
		closeStores()
		return nil, err
	}
	provider := market.NewProvider(src, market.ProviderConfig{
		Symbol:       cfg.Market.Symbol,
		Interval:     cfg.Market.KlineInterval,
		Limit:        cfg.Market.KlineLimit,
		HeadlineFeed: cfg.Market.HeadlineFeed,
		Timeout:      time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
	})
	logger.Infof("✓ market source %s for %s/%s", src.Name(), cfg.Market.Symbol, cfg.Market.KlineInterval)

	roster, err := analyzer.BuildRoster(cfg.Analyzers.Enabled, analyzer.RosterConfig{
		CopytradeFeed: cfg.Analyzers.CopytradeFeed,
	})
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("building analyzers: %w", err)
	}
	analyzers, err := analyzer.NewRegistry(roster...)
	if err != nil {
		closeStores()
		return nil, err
	}
	logger.Infof("✓ analyzers registered in order: %s", strings.Join(analyzers.Names(), ", "))

	paper, err := exchange.NewPaper(cfg.Trading.InitialCashUSD, gate)
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("opening paper exchange: %w", err)
	}

	retrainSched, err := retrain.NewScheduler(ctx, retrain.Config{
		TradeThreshold: cfg.Retrain.TradeThreshold,
		Interval:       time.Duration(cfg.Retrain.IntervalHours) * time.Hour,
		Timeout:        time.Duration(cfg.Retrain.TimeoutSeconds) * time.Second,
	}, registry, b.trainerFn())
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("starting retrain scheduler: %w", err)
	}

	eng, err := engine.New(engine.Params{
		Config: engine.Config{
			Symbol:        cfg.Market.Symbol,
			Cycle:         time.Duration(cfg.Intervals.CycleSeconds) * time.Second,
			CycleTimeout:  time.Duration(cfg.Intervals.CycleTimeoutSeconds) * time.Second,
			MinConfidence: cfg.Trading.MinConfidence,
			OrderSizeUSD:  cfg.Trading.OrderSizeUSD,
		},
		Gate:      gate,
		Analyzers: analyzers,
		Weights:   weights,
		Market:    provider,
		Memory:    mem,
		Exchange:  paper,
		Retrain:   retrainSched,
	})
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("building decision engine: %w", err)
	}

	mon, err := monitor.New(monitor.Params{
		Interval: time.Duration(cfg.Intervals.MonitorMinutes) * time.Minute,
		Gate:     gate,
		Memory:   mem,
		Retrain:  retrainSched,
		Exchange: paper,
		Engine:   eng,
	})
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("building monitor: %w", err)
	}

	var reporter *report.Reporter
	if cfg.Report.Enabled {
		reporter, err = report.New(report.Params{
			Spec:     cfg.Report.Cron,
			Dir:      cfg.Report.Dir,
			Memory:   mem,
			Notifier: textNotifier,
		})
		if err != nil {
			closeStores()
			return nil, fmt.Errorf("building reporter: %w", err)
		}
	}

	httpSrv, err := adminhttp.NewServer(adminhttp.ServerConfig{
		Addr:   cfg.App.HTTPAddr,
		Gate:   gate,
		Memory: mem,
		Models: registry,
		Status: mon,
	})
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("building admin http server: %w", err)
	}
	logger.Infof("✓ admin http on %s", httpSrv.Addr())

	wireEventHooks(gate, retrainSched, analyzers, mem, textNotifier)

	// Applied after the hooks so a configured startup halt lands in the
	// event memory like any other halt.
	if cfg.Safety.HaltOnStart {
		gate.Halt("halted at startup by configuration")
	}
	logger.Infof("✓ safety gate ready (state=%s)", gate.Status().State)

	return &App{
		cfg:      cfg,
		gate:     gate,
		memory:   mem,
		registry: registry,
		engine:   eng,
		retrain:  retrainSched,
		monitor:  mon,
		reporter: reporter,
		httpSrv:  httpSrv,
	}, nil
}

func buildMarketSource(cfg *config.Config) (market.Source, error) {
	switch cfg.Market.Source {
	case "binance":
		return binancesrc.New(binancesrc.Config{
			RESTBaseURL: cfg.Market.RESTBaseURL,
			HTTPTimeout: time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
		}), nil
	case "static":
		return market.NewStaticSource(0), nil
	default:
		return nil, fmt.Errorf("market.source %q is not supported", cfg.Market.Source)
	}
}

func buildNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	if cfg.Telegram.Enabled {
		logger.Infof("✓ telegram notifier enabled")
		return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}
	return notifier.NewLogNotifier()
}
