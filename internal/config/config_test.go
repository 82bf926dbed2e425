package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engineerrors "github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
instruments:
  - BTCUSDT
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT"}, cfg.Instruments)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, "09:15", cfg.Engine.SessionStart)
	assert.Equal(t, 5, cfg.Engine.PeakValley.Window)
	assert.Equal(t, 14, cfg.Engine.PeakValley.RSIPeriod)
	assert.InDelta(t, 0.7, cfg.Engine.Fusion.Weights[types.TimeframeBar], 1e-9)
	assert.Equal(t, 5*time.Minute, cfg.Engine.Fusion.HalfLives[types.TimeframeBar])
	assert.Equal(t, 30*time.Second, cfg.Engine.Fusion.HalfLives[types.TimeframeTick])
	assert.InDelta(t, 0.2, cfg.Engine.Fusion.Threshold, 1e-9)
	assert.InDelta(t, 0.05, cfg.Risk.StopPct, 1e-9)
	assert.False(t, cfg.Risk.AllowShort)
	assert.Equal(t, "spot", cfg.Bybit.Category)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
instruments:
  - BTCUSDT
  - ETHUSDT
poll_interval: 5m
initial_capital: 250000
session:
  start: "10:00"
  end: "16:00"
fusion:
  threshold: 0.3
  tick_half_life: 45s
risk:
  stop_pct: 0.03
  allow_short: true
bybit:
  category: linear
  testnet: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Instruments, 2)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.InDelta(t, 250000, cfg.InitialCapital, 1e-9)
	assert.Equal(t, "10:00", cfg.Engine.SessionStart)
	assert.InDelta(t, 0.3, cfg.Engine.Fusion.Threshold, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.Engine.Fusion.HalfLives[types.TimeframeTick])
	assert.InDelta(t, 0.03, cfg.Risk.StopPct, 1e-9)
	assert.True(t, cfg.Risk.AllowShort)
	assert.Equal(t, "linear", cfg.Bybit.Category)
	assert.True(t, cfg.Bybit.Testnet)
}

func TestLoadRejectsEmptyInstruments(t *testing.T) {
	path := writeConfig(t, `
poll_interval: 1m
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, engineerrors.Is(err, engineerrors.CategoryInvalidParameter))
}

func TestLoadRejectsDuplicateInstruments(t *testing.T) {
	path := writeConfig(t, `
instruments:
  - BTCUSDT
  - BTCUSDT
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, engineerrors.Is(err, engineerrors.CategoryInvalidParameter))
}

func TestLoadRejectsBadRiskSettings(t *testing.T) {
	path := writeConfig(t, `
instruments:
  - BTCUSDT
risk:
  stop_pct: 1.5
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, engineerrors.Is(err, engineerrors.CategoryInvalidParameter))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, engineerrors.Is(err, engineerrors.CategoryInvalidParameter))
}
