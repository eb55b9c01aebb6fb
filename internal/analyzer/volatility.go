package analyzer

import (
	"context"
	"fmt"
	"math"

	"maestro/internal/market"
	"maestro/internal/signal"

	talib "github.com/markcheno/go-talib"
)

const (
	volatilityWindow = 20
	// Regime thresholds in annualized percent.
	volLowPct  = 20.0
	volHighPct = 40.0
)

// VolatilityAnalyzer classifies the current regime from the stddev of
// returns. It never votes direction: high volatility argues for standing
// aside, low volatility merely tolerates what the others decide.
type VolatilityAnalyzer struct{}

func NewVolatilityAnalyzer() *VolatilityAnalyzer { return &VolatilityAnalyzer{} }

func (a *VolatilityAnalyzer) Name() string { return "volatility" }

func (a *VolatilityAnalyzer) Analyze(_ context.Context, snap market.Snapshot) (signal.Signal, error) {
	if len(snap.Candles) < volatilityWindow+1 {
		return signal.Signal{}, fmt.Errorf("need %d candles, got %d", volatilityWindow+1, len(snap.Candles))
	}
	closes := snap.Candles.Closes()
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1]*100)
	}
	if len(returns) < volatilityWindow {
		return signal.Signal{}, fmt.Errorf("not enough usable returns")
	}

	stddev := talib.StdDev(returns, volatilityWindow, 1.0)
	current := stddev[len(stddev)-1]
	annualized := current * math.Sqrt(252)

	switch {
	case annualized >= volHighPct:
		return signal.Signal{
			Action:     signal.ActionHold,
			Confidence: 0.8,
			Reason:     fmt.Sprintf("high volatility regime (%.1f%% annualized)", annualized),
		}, nil
	case annualized >= volLowPct:
		return signal.Signal{
			Action:     signal.ActionHold,
			Confidence: 0.4,
			Reason:     fmt.Sprintf("medium volatility regime (%.1f%% annualized)", annualized),
		}, nil
	default:
		return signal.Signal{
			Action:     signal.ActionHold,
			Confidence: 0.1,
			Reason:     fmt.Sprintf("low volatility regime (%.1f%% annualized)", annualized),
		}, nil
	}
}
