package detector

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhle2209/tradepulse/pkg/types"
)

func seriesFromCloses(t *testing.T, closes ...float64) *types.PriceSeries {
	t.Helper()
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	series := types.NewPriceSeries("BTCUSDT", types.GranularityBar)
	for i, c := range closes {
		require.NoError(t, series.Append(types.OHLCV{
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return series
}

// valleyCloses declines steeply into a trough and recovers. With window 2
// and RSI period 3, the trough bar is both the local minimum of its
// surrounding window and deeply oversold.
func valleyCloses() []float64 {
	return []float64{100, 98, 96, 94, 92, 90, 88, 86, 84, 82, 80, 85, 88}
}

func TestPeakValley_ConfirmsValleyWithLag(t *testing.T) {
	cfg := PeakValleyConfig{Window: 2, RSIPeriod: 3, MAPeriod: 5, Oversold: 30, Overbought: 70}
	d := NewPeakValley("BTCUSDT", cfg, zerolog.Nop())

	closes := valleyCloses()
	series := seriesFromCloses(t, closes...)
	bars := series.Bars()

	sig, err := d.Evaluate(series)
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, types.DirectionBuy, sig.Direction)
	// The signal labels the candidate bar w bars behind the newest one.
	trough := bars[len(bars)-1-cfg.Window]
	assert.Equal(t, trough.Timestamp, sig.Timestamp)
	assert.Equal(t, 80.0, trough.Close)
	assert.Equal(t, "peak_valley", sig.Source)
	assert.GreaterOrEqual(t, sig.Confidence, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 1.0)
}

func TestPeakValley_NoDuplicateConfirmation(t *testing.T) {
	cfg := PeakValleyConfig{Window: 2, RSIPeriod: 3, MAPeriod: 5, Oversold: 30, Overbought: 70}
	d := NewPeakValley("BTCUSDT", cfg, zerolog.Nop())

	series := seriesFromCloses(t, valleyCloses()...)
	sig, err := d.Evaluate(series)
	require.NoError(t, err)
	require.NotNil(t, sig)

	again, err := d.Evaluate(series)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestPeakValley_ConfirmsPeak(t *testing.T) {
	cfg := PeakValleyConfig{Window: 2, RSIPeriod: 3, MAPeriod: 5, Oversold: 30, Overbought: 70}
	d := NewPeakValley("BTCUSDT", cfg, zerolog.Nop())

	closes := []float64{100, 102, 104, 106, 108, 110, 112, 114, 116, 118, 120, 115, 112}
	series := seriesFromCloses(t, closes...)

	sig, err := d.Evaluate(series)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, types.DirectionSell, sig.Direction)
}

func TestPeakValley_ExtremumWithoutRSIGateIsSilent(t *testing.T) {
	cfg := PeakValleyConfig{Window: 2, RSIPeriod: 3, MAPeriod: 5, Oversold: 5, Overbought: 95}
	d := NewPeakValley("BTCUSDT", cfg, zerolog.Nop())

	// Mild dip: a local minimum exists but RSI never reaches the extreme gates.
	closes := []float64{100, 100.5, 100.2, 99.9, 100.1, 100.3, 100.2, 99.8, 100.1, 100.5}
	series := seriesFromCloses(t, closes...)

	sig, err := d.Evaluate(series)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestPeakValley_InsufficientHistory(t *testing.T) {
	cfg := DefaultPeakValleyConfig()
	d := NewPeakValley("BTCUSDT", cfg, zerolog.Nop())

	series := seriesFromCloses(t, 100, 99, 98)
	sig, err := d.Evaluate(series)
	require.NoError(t, err)
	assert.Nil(t, sig)
}
