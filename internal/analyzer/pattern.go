package analyzer

import (
	"context"
	"fmt"

	"maestro/internal/market"
	"maestro/internal/signal"

	talib "github.com/markcheno/go-talib"
)

const patternEMAPeriod = 20

// PatternAnalyzer looks for short momentum runs and engulfing candles, with
// an EMA(20) trend filter deciding how much to trust them.
type PatternAnalyzer struct{}

func NewPatternAnalyzer() *PatternAnalyzer { return &PatternAnalyzer{} }

func (a *PatternAnalyzer) Name() string { return "pattern" }

func (a *PatternAnalyzer) Analyze(_ context.Context, snap market.Snapshot) (signal.Signal, error) {
	if len(snap.Candles) < patternEMAPeriod+3 {
		return signal.Signal{}, fmt.Errorf("need %d candles, got %d", patternEMAPeriod+3, len(snap.Candles))
	}
	cs := snap.Candles
	closes := cs.Closes()
	ema := talib.Ema(closes, patternEMAPeriod)
	aboveTrend := closes[len(closes)-1] > ema[len(ema)-1]

	last := cs[len(cs)-1]
	prev := cs[len(cs)-2]
	third := cs[len(cs)-3]

	switch {
	case third.Close < prev.Close && prev.Close < last.Close:
		return trendSignal(signal.ActionBuy, "three rising closes", aboveTrend), nil
	case third.Close > prev.Close && prev.Close > last.Close:
		return trendSignal(signal.ActionSell, "three falling closes", !aboveTrend), nil
	case bullishEngulfing(prev, last):
		return trendSignal(signal.ActionBuy, "bullish engulfing", aboveTrend), nil
	case bearishEngulfing(prev, last):
		return trendSignal(signal.ActionSell, "bearish engulfing", !aboveTrend), nil
	}
	return signal.Signal{
		Action:     signal.ActionHold,
		Confidence: 0.3,
		Reason:     "no actionable pattern",
	}, nil
}

// trendSignal grades a detected pattern: confirmed by the EMA trend it votes
// at 0.7, against the trend it drops to 0.4.
func trendSignal(action signal.Action, pattern string, confirmed bool) signal.Signal {
	confidence := 0.4
	reason := pattern + " against trend"
	if confirmed {
		confidence = 0.7
		reason = pattern + " with trend"
	}
	return signal.Signal{Action: action, Confidence: confidence, Reason: reason}
}

func bullishEngulfing(prev, last market.Candle) bool {
	return prev.Close < prev.Open &&
		last.Close > last.Open &&
		last.Open <= prev.Close &&
		last.Close >= prev.Open
}

func bearishEngulfing(prev, last market.Candle) bool {
	return prev.Close > prev.Open &&
		last.Close < last.Open &&
		last.Open >= prev.Close &&
		last.Close <= prev.Open
}
