package binance

import (
	"testing"
	"time"

	"maestro/internal/market"

	"github.com/stretchr/testify/assert"
)

func TestDropUnclosed(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 30, 0, time.UTC)
	closed := market.Candle{OpenTime: now.Add(-2 * time.Minute).UnixMilli()}
	inProgress := market.Candle{OpenTime: now.Add(-30 * time.Second).UnixMilli()}

	t.Run("Trailing In-Progress Candle Dropped", func(t *testing.T) {
		got := dropUnclosed([]market.Candle{closed, inProgress}, time.Minute, now)
		assert.Len(t, got, 1)
		assert.Equal(t, closed.OpenTime, got[0].OpenTime)
	})

	t.Run("Closed Series Untouched", func(t *testing.T) {
		series := []market.Candle{closed}
		got := dropUnclosed(series, time.Minute, now)
		assert.Equal(t, series, got)
	})

	t.Run("Empty And Zero Interval", func(t *testing.T) {
		assert.Empty(t, dropUnclosed(nil, time.Minute, now))
		series := []market.Candle{inProgress}
		assert.Equal(t, series, dropUnclosed(series, 0, now))
	})
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	final := cfg.withDefaults()
	assert.Equal(t, "https://fapi.binance.com", final.RESTBaseURL)
	assert.Equal(t, 15*time.Second, final.HTTPTimeout)

	cfg = Config{RESTBaseURL: " https://example.test ", HTTPTimeout: time.Second}
	final = cfg.withDefaults()
	assert.Equal(t, "https://example.test", final.RESTBaseURL)
	assert.Equal(t, time.Second, final.HTTPTimeout)
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 123.45, parseFloat(" 123.45 "))
	assert.Equal(t, 0.0, parseFloat("not-a-number"))
}
