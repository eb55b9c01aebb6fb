package market

import (
	"context"
	"time"

	"maestro/internal/logger"
	"maestro/internal/pkg/circuit"
)

// Snapshot is one cycle's view of the market. It is assembled once per
// decision cycle and handed to every analyzer unchanged.
type Snapshot struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Candles   Candles   `json:"candles"`
	Headlines []string  `json:"headlines,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (s Snapshot) Empty() bool {
	return len(s.Candles) == 0 && s.Price == 0
}

// Source provides candle history for a symbol.
type Source interface {
	Name() string
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// ProviderConfig describes how the snapshot provider queries its source.
type ProviderConfig struct {
	Symbol       string
	Interval     string
	Limit        int
	HeadlineFeed string
	Timeout      time.Duration
	// BreakerThreshold is the consecutive fetch failures that trip the
	// source breaker; BreakerCooldown is how long it then fails fast.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Provider assembles per-cycle snapshots from a candle source and the
// local headline feed. Fetch failures degrade to an empty snapshot so a
// cycle always has something to hand the analyzers.
type Provider struct {
	src     Source
	cfg     ProviderConfig
	breaker *circuit.Breaker
	log     logger.Component
}

func NewProvider(src Source, cfg ProviderConfig) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 120
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}
	return &Provider{
		src:     src,
		cfg:     cfg,
		breaker: circuit.New(src.Name()+":"+cfg.Symbol, cfg.BreakerThreshold, cfg.BreakerCooldown),
		log:     logger.For("market"),
	}
}

// Snapshot fetches candles and headlines. It never returns an error: a
// failed fetch is logged and yields an empty snapshot, letting analyzers
// degrade to HOLD instead of aborting the cycle. A string of failures
// trips the breaker so a broken upstream is not hammered every cycle.
func (p *Provider) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{Symbol: p.cfg.Symbol, FetchedAt: time.Now().UTC()}

	if !p.breaker.Allow() {
		p.log.Warnf("%s circuit open, serving empty snapshot", p.src.Name())
		return snap
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	candles, err := p.src.FetchCandles(fetchCtx, p.cfg.Symbol, p.cfg.Interval, p.cfg.Limit)
	if err != nil {
		p.breaker.RecordFailure()
		p.log.Warnf("candle fetch failed via %s: %v", p.src.Name(), err)
	} else {
		p.breaker.RecordSuccess()
		snap.Candles = candles
		snap.Price = snap.Candles.Last().Close
	}

	if p.cfg.HeadlineFeed != "" {
		heads, err := LoadHeadlines(p.cfg.HeadlineFeed, 50)
		if err != nil {
			p.log.Debugf("headline feed unavailable: %v", err)
		} else {
			snap.Headlines = heads
		}
	}
	return snap
}
