package detector

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhle2209/tradepulse/pkg/types"
)

func ticksRamp(start time.Time, step time.Duration, prices ...float64) []types.Tick {
	ticks := make([]types.Tick, len(prices))
	for i, p := range prices {
		ticks[i] = types.Tick{Price: p, Volume: 10, Timestamp: start.Add(time.Duration(i) * step)}
	}
	return ticks
}

func TestFastMomentum_BuyOnSteadyRise(t *testing.T) {
	cfg := MomentumConfig{BucketWidth: 5 * time.Second, Threshold: 0.001, SmoothingPeriod: 3}
	d := NewFastMomentum("BTCUSDT", cfg, zerolog.Nop())

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	// One tick per second, rising ~0.5% per 5s bucket.
	var prices []float64
	p := 100.0
	for i := 0; i < 30; i++ {
		prices = append(prices, p)
		p *= 1.001
	}
	ticks := ticksRamp(start, time.Second, prices...)

	sig := d.Evaluate(ticks, start.Add(30*time.Second))
	require.NotNil(t, sig)
	assert.Equal(t, types.DirectionBuy, sig.Direction)
	assert.Equal(t, types.TimeframeTick, sig.Timeframe)
	assert.Equal(t, "fast_momentum", sig.Source)
	assert.Greater(t, sig.Confidence, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 1.0)
}

func TestFastMomentum_SellOnSteadyDrop(t *testing.T) {
	cfg := MomentumConfig{BucketWidth: 5 * time.Second, Threshold: 0.001, SmoothingPeriod: 3}
	d := NewFastMomentum("BTCUSDT", cfg, zerolog.Nop())

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var prices []float64
	p := 100.0
	for i := 0; i < 30; i++ {
		prices = append(prices, p)
		p *= 0.999
	}
	sig := d.Evaluate(ticksRamp(start, time.Second, prices...), start.Add(30*time.Second))
	require.NotNil(t, sig)
	assert.Equal(t, types.DirectionSell, sig.Direction)
}

func TestFastMomentum_FlatTapeIsSilent(t *testing.T) {
	cfg := MomentumConfig{BucketWidth: 5 * time.Second, Threshold: 0.001, SmoothingPeriod: 3}
	d := NewFastMomentum("BTCUSDT", cfg, zerolog.Nop())

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var prices []float64
	for i := 0; i < 30; i++ {
		prices = append(prices, 100.0)
	}
	sig := d.Evaluate(ticksRamp(start, time.Second, prices...), start.Add(30*time.Second))
	assert.Nil(t, sig)
}

func TestFastMomentum_CooldownSuppressesRepeats(t *testing.T) {
	cfg := MomentumConfig{BucketWidth: 5 * time.Second, Threshold: 0.001, SmoothingPeriod: 3, Cooldown: 15 * time.Second}
	d := NewFastMomentum("BTCUSDT", cfg, zerolog.Nop())

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var prices []float64
	p := 100.0
	for i := 0; i < 30; i++ {
		prices = append(prices, p)
		p *= 1.001
	}
	ticks := ticksRamp(start, time.Second, prices...)

	now := start.Add(30 * time.Second)
	require.NotNil(t, d.Evaluate(ticks, now))
	assert.Nil(t, d.Evaluate(ticks, now.Add(5*time.Second)), "within cooldown")
	assert.NotNil(t, d.Evaluate(ticks, now.Add(16*time.Second)), "after cooldown")
}

func TestFastMomentum_BucketVWAPWeightsVolume(t *testing.T) {
	cfg := MomentumConfig{BucketWidth: 5 * time.Second, Threshold: 0.001, SmoothingPeriod: 1}
	d := NewFastMomentum("BTCUSDT", cfg, zerolog.Nop())

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ticks := []types.Tick{
		// Bucket 1: VWAP = (100*1 + 101*9)/10 = 100.9
		{Price: 100, Volume: 1, Timestamp: start},
		{Price: 101, Volume: 9, Timestamp: start.Add(time.Second)},
		// Bucket 2: VWAP = 102 -> ROC ≈ +1.09%
		{Price: 102, Volume: 5, Timestamp: start.Add(5 * time.Second)},
	}

	sig := d.Evaluate(ticks, start.Add(10*time.Second))
	require.NotNil(t, sig)
	assert.Equal(t, types.DirectionBuy, sig.Direction)
	assert.Equal(t, start.Add(5*time.Second), sig.Timestamp)
}

func TestFastMomentum_SingleBucketIsSilent(t *testing.T) {
	d := NewFastMomentum("BTCUSDT", DefaultMomentumConfig(), zerolog.Nop())
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ticks := []types.Tick{{Price: 100, Volume: 1, Timestamp: start}}
	assert.Nil(t, d.Evaluate(ticks, start.Add(time.Second)))
}
