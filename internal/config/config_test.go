package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timeoutCh() <-chan time.Time { return time.After(5 * time.Second) }

const sampleYAML = `
general:
  symbols: ["BTCUSDT", "ETHUSDT"]
  log_level: debug
volume_profile:
  tick_size: "0.1"
  value_area_pct: 0.7
risk:
  initial_balance: "10000"
  max_risk_per_trade: "0.01"
  daily_loss_limit_pct: "0.05"
simulator:
  taker_fee: "0.0004"
  leverage: 20
  margin_type: isolated
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoader_LoadAppliesDefaultsAndOverrides(t *testing.T) {
	logger := zerolog.Nop()
	path := writeTempConfig(t, sampleYAML)

	cfg, err := NewLoader(path, &logger).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.General.Symbols)
	assert.Equal(t, "debug", cfg.General.LogLevel)
	assert.Equal(t, 10, cfg.General.TopNSymbols, "unset field falls back to its default")
	assert.Equal(t, "0.1", cfg.VolumeProfile.TickSize.String())
	assert.Equal(t, "isolated", cfg.Simulator.MarginType)
	assert.Equal(t, 20, cfg.Simulator.Leverage)
}

func TestLoader_LoadMissingFileUsesDefaults(t *testing.T) {
	logger := zerolog.Nop()
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml"), &logger).Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.General.TopNSymbols)
	assert.Equal(t, "isolated", cfg.Simulator.MarginType)
}

func TestValidate_RejectsOutOfRangeValueAreaPct(t *testing.T) {
	cfg := &Config{}
	cfg.VolumeProfile.ValueAreaPct = 1.5
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value_area_pct")
}

func TestValidate_RejectsInvalidMarginType(t *testing.T) {
	cfg := &Config{}
	cfg.VolumeProfile.ValueAreaPct = 0.7
	cfg.Simulator.Expectancy.LookbackTrades = 1
	cfg.Simulator.MarginType = "spot"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "margin_type")
}

func TestWatch_ReloadsOnFileWrite(t *testing.T) {
	logger := zerolog.Nop()
	path := writeTempConfig(t, sampleYAML)
	loader := NewLoader(path, &logger)

	initial, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", initial.General.LogLevel)

	reloaded := make(chan *Config, 1)
	require.NoError(t, loader.Watch(func(cfg *Config) { reloaded <- cfg }))
	defer loader.Close()

	updated := `
general:
  symbols: ["BTCUSDT"]
  log_level: warn
volume_profile:
  value_area_pct: 0.7
simulator:
  margin_type: isolated
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "warn", cfg.General.LogLevel)
	case <-timeoutCh():
		t.Fatal("timed out waiting for config reload notification")
	}
}
