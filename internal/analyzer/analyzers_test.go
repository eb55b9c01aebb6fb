package analyzer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"maestro/internal/market"
	"maestro/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candleSeries(closes ...float64) market.Candles {
	out := make(market.Candles, len(closes))
	base := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		prev := c
		if i > 0 {
			prev = closes[i-1]
		}
		out[i] = market.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Minute).UnixMilli(),
			CloseTime: base.Add(time.Duration(i+1)*time.Minute).UnixMilli() - 1,
			Open:      prev,
			High:      max(prev, c) * 1.001,
			Low:       min(prev, c) * 0.999,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

func monotonic(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestIndicatorAnalyzer(t *testing.T) {
	a := NewIndicatorAnalyzer(IndicatorConfig{})

	t.Run("Falling Market Is Oversold", func(t *testing.T) {
		snap := market.Snapshot{Candles: candleSeries(monotonic(40, 200, -1)...)}
		sig, err := a.Analyze(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionBuy, sig.Action)
		assert.GreaterOrEqual(t, sig.Confidence, 0.5)
		assert.Contains(t, sig.Reason, "oversold")
	})

	t.Run("Rising Market Is Overbought", func(t *testing.T) {
		snap := market.Snapshot{Candles: candleSeries(monotonic(40, 100, 1)...)}
		sig, err := a.Analyze(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionSell, sig.Action)
		assert.Contains(t, sig.Reason, "overbought")
	})

	t.Run("Insufficient Candles", func(t *testing.T) {
		snap := market.Snapshot{Candles: candleSeries(monotonic(5, 100, 1)...)}
		_, err := a.Analyze(context.Background(), snap)
		assert.Error(t, err)
	})
}

func TestPatternAnalyzer(t *testing.T) {
	a := NewPatternAnalyzer()
	flat := monotonic(25, 100, 0)

	t.Run("Three Rising Closes", func(t *testing.T) {
		closes := append(append([]float64{}, flat...), 101, 102, 103)
		sig, err := a.Analyze(context.Background(), market.Snapshot{Candles: candleSeries(closes...)})
		require.NoError(t, err)
		assert.Equal(t, signal.ActionBuy, sig.Action)
		assert.Contains(t, sig.Reason, "three rising closes")
	})

	t.Run("Three Falling Closes", func(t *testing.T) {
		closes := append(append([]float64{}, flat...), 99, 98, 97)
		sig, err := a.Analyze(context.Background(), market.Snapshot{Candles: candleSeries(closes...)})
		require.NoError(t, err)
		assert.Equal(t, signal.ActionSell, sig.Action)
		assert.Contains(t, sig.Reason, "three falling closes")
	})

	t.Run("No Pattern Holds", func(t *testing.T) {
		closes := append(append([]float64{}, flat...), 101, 99, 100)
		sig, err := a.Analyze(context.Background(), market.Snapshot{Candles: candleSeries(closes...)})
		require.NoError(t, err)
		assert.Equal(t, signal.ActionHold, sig.Action)
	})
}

func TestVolatilityAnalyzer(t *testing.T) {
	a := NewVolatilityAnalyzer()

	t.Run("Flat Market Is Low Regime", func(t *testing.T) {
		snap := market.Snapshot{Candles: candleSeries(monotonic(30, 100, 0)...)}
		sig, err := a.Analyze(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionHold, sig.Action)
		assert.Contains(t, sig.Reason, "low volatility")
	})

	t.Run("Whipsaw Market Is High Regime", func(t *testing.T) {
		closes := make([]float64, 40)
		price := 100.0
		for i := range closes {
			if i%2 == 0 {
				price *= 1.05
			} else {
				price *= 0.95
			}
			closes[i] = price
		}
		sig, err := a.Analyze(context.Background(), market.Snapshot{Candles: candleSeries(closes...)})
		require.NoError(t, err)
		assert.Equal(t, signal.ActionHold, sig.Action)
		assert.Contains(t, sig.Reason, "high volatility")
		assert.GreaterOrEqual(t, sig.Confidence, 0.8)
	})
}

func TestSentimentAnalyzer(t *testing.T) {
	a := NewSentimentAnalyzer()

	t.Run("Positive Headlines", func(t *testing.T) {
		snap := market.Snapshot{Headlines: []string{"Bulls gain ground", "ETF approved, rally extends"}}
		sig, err := a.Analyze(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionBuy, sig.Action)
	})

	t.Run("Negative Headlines", func(t *testing.T) {
		snap := market.Snapshot{Headlines: []string{"Bear market deepens", "Exchange reports loss"}}
		sig, err := a.Analyze(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionSell, sig.Action)
	})

	t.Run("No Headlines Holds", func(t *testing.T) {
		sig, err := a.Analyze(context.Background(), market.Snapshot{})
		require.NoError(t, err)
		assert.Equal(t, signal.ActionHold, sig.Action)
		assert.Contains(t, sig.Reason, "no headlines")
	})
}

func writeFeed(t *testing.T, entries ...map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signals.json")
	doc := map[string]any{"signals": entries}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestCopytradeAnalyzer(t *testing.T) {
	snap := market.Snapshot{Symbol: "BTCUSDT"}

	t.Run("Majority Long", func(t *testing.T) {
		path := writeFeed(t,
			map[string]any{"trader": "whale-1", "symbol": "BTCUSDT", "action": "BUY", "confidence": 0.9},
			map[string]any{"trader": "whale-2", "symbol": "BTCUSDT", "action": "BUY", "confidence": 0.7},
			map[string]any{"trader": "whale-3", "symbol": "BTCUSDT", "action": "SELL", "confidence": 0.5},
		)
		a, err := NewCopytradeAnalyzer(path)
		require.NoError(t, err)
		sig, err := a.Analyze(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionBuy, sig.Action)
		assert.Contains(t, sig.Reason, "2/3")
	})

	t.Run("Schema Rejects Malformed Entries", func(t *testing.T) {
		path := writeFeed(t,
			map[string]any{"trader": "whale-1", "symbol": "BTCUSDT", "action": "LONG", "confidence": 0.9},
			map[string]any{"trader": "whale-2", "symbol": "BTCUSDT", "confidence": 0.9},
			map[string]any{"trader": "whale-3", "symbol": "BTCUSDT", "action": "SELL", "confidence": 1.7},
		)
		a, err := NewCopytradeAnalyzer(path)
		require.NoError(t, err)
		sig, err := a.Analyze(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionHold, sig.Action)
		assert.Contains(t, sig.Reason, "no usable copytrade signals")
	})

	t.Run("Expired Entries Skipped", func(t *testing.T) {
		path := writeFeed(t,
			map[string]any{
				"trader": "whale-1", "symbol": "BTCUSDT", "action": "BUY", "confidence": 0.9,
				"issued_at": "2020-01-01T00:00:00Z", "ttl_seconds": 60,
			},
		)
		a, err := NewCopytradeAnalyzer(path)
		require.NoError(t, err)
		sig, err := a.Analyze(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionHold, sig.Action)
	})

	t.Run("Other Symbols Ignored", func(t *testing.T) {
		path := writeFeed(t,
			map[string]any{"trader": "whale-1", "symbol": "ETHUSDT", "action": "BUY", "confidence": 0.9},
		)
		a, err := NewCopytradeAnalyzer(path)
		require.NoError(t, err)
		sig, err := a.Analyze(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionHold, sig.Action)
	})

	t.Run("Missing Feed Holds", func(t *testing.T) {
		a, err := NewCopytradeAnalyzer(filepath.Join(t.TempDir(), "absent.json"))
		require.NoError(t, err)
		sig, err := a.Analyze(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, signal.ActionHold, sig.Action)
		assert.Equal(t, "no copytrade feed", sig.Reason)
	})
}
