package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
market:
  symbol: ETHUSDT
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, "ETHUSDT", cfg.Market.Symbol)
	assert.Equal(t, "static", cfg.Market.Source)
	assert.Equal(t, defaultAnalyzers, cfg.Analyzers.Enabled)
	assert.Equal(t, 30, cfg.Intervals.CycleSeconds)
	assert.Equal(t, 100, cfg.Retrain.TradeThreshold)
	assert.Equal(t, 24, cfg.Retrain.IntervalHours)
	assert.Equal(t, 12, cfg.Retrain.CheckHours)
	assert.Equal(t, 0.6, cfg.Trading.MinConfidence)
	assert.Equal(t, "paper", cfg.Trading.Mode)
	assert.True(t, cfg.Report.Enabled)
	assert.Equal(t, filepath.Join("data", "safety_state.json"), cfg.Safety.StatePath)
	assert.Equal(t, filepath.Join("data", "memory.db"), cfg.Memory.Path)
	assert.Equal(t, filepath.Join("data", "models.db"), cfg.Retrain.RegistryPath)
}

func TestLoadRejectsLiveMode(t *testing.T) {
	path := writeConfig(t, `
trading:
  mode: live
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only paper trading")
}

func TestLoadRejectsUnknownAnalyzer(t *testing.T) {
	path := writeConfig(t, `
analyzers:
  enabled: [indicator, astrology]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown analyzer")
}

func TestLoadRejectsDuplicateAnalyzer(t *testing.T) {
	path := writeConfig(t, `
analyzers:
  enabled: [indicator, indicator]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twice")
}

func TestLoadTelegramRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
notify:
  telegram:
    enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot_token")
}

func TestLoadReportCanBeDisabled(t *testing.T) {
	path := writeConfig(t, `
report:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Report.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
