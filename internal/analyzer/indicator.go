package analyzer

import (
	"context"
	"fmt"

	"maestro/internal/market"
	"maestro/internal/signal"

	talib "github.com/markcheno/go-talib"
)

// IndicatorConfig tunes the RSI/SMA vote.
type IndicatorConfig struct {
	RSIPeriod  int
	FastSMA    int
	SlowSMA    int
	Overbought float64
	Oversold   float64
}

func (c *IndicatorConfig) withDefaults() IndicatorConfig {
	out := *c
	if out.RSIPeriod <= 0 {
		out.RSIPeriod = 14
	}
	if out.FastSMA <= 0 {
		out.FastSMA = 7
	}
	if out.SlowSMA <= 0 {
		out.SlowSMA = 25
	}
	if out.Overbought <= 0 {
		out.Overbought = 70
	}
	if out.Oversold <= 0 {
		out.Oversold = 30
	}
	return out
}

// IndicatorAnalyzer votes on RSI extremes confirmed by the fast/slow SMA
// spread. RSI leaving the neutral band drives the action; the SMA side only
// shades confidence.
type IndicatorAnalyzer struct {
	cfg IndicatorConfig
}

func NewIndicatorAnalyzer(cfg IndicatorConfig) *IndicatorAnalyzer {
	return &IndicatorAnalyzer{cfg: cfg.withDefaults()}
}

func (a *IndicatorAnalyzer) Name() string { return "indicator" }

func (a *IndicatorAnalyzer) Analyze(_ context.Context, snap market.Snapshot) (signal.Signal, error) {
	need := a.cfg.SlowSMA
	if a.cfg.RSIPeriod+1 > need {
		need = a.cfg.RSIPeriod + 1
	}
	if len(snap.Candles) < need {
		return signal.Signal{}, fmt.Errorf("need %d candles, got %d", need, len(snap.Candles))
	}
	closes := snap.Candles.Closes()

	rsiSeries := talib.Rsi(closes, a.cfg.RSIPeriod)
	rsi := rsiSeries[len(rsiSeries)-1]
	fast := talib.Sma(closes, a.cfg.FastSMA)
	slow := talib.Sma(closes, a.cfg.SlowSMA)
	spread := fast[len(fast)-1] - slow[len(slow)-1]

	action := signal.ActionHold
	confidence := 0.2
	reason := fmt.Sprintf("RSI(%d)=%.1f neutral", a.cfg.RSIPeriod, rsi)

	switch {
	case rsi <= a.cfg.Oversold:
		action = signal.ActionBuy
		confidence = scaleExtreme(a.cfg.Oversold-rsi, a.cfg.Oversold)
		reason = fmt.Sprintf("RSI(%d)=%.1f oversold", a.cfg.RSIPeriod, rsi)
		if spread > 0 {
			confidence = bump(confidence)
			reason += ", SMA spread positive"
		}
	case rsi >= a.cfg.Overbought:
		action = signal.ActionSell
		confidence = scaleExtreme(rsi-a.cfg.Overbought, 100-a.cfg.Overbought)
		reason = fmt.Sprintf("RSI(%d)=%.1f overbought", a.cfg.RSIPeriod, rsi)
		if spread < 0 {
			confidence = bump(confidence)
			reason += ", SMA spread negative"
		}
	}
	return signal.Signal{Action: action, Confidence: confidence, Reason: reason}, nil
}

// scaleExtreme maps distance past the threshold onto [0.5, 0.9].
func scaleExtreme(depth, span float64) float64 {
	if span <= 0 {
		return 0.5
	}
	frac := depth / span
	if frac > 1 {
		frac = 1
	}
	return 0.5 + 0.4*frac
}

func bump(conf float64) float64 {
	conf += 0.05
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}
