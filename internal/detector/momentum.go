package detector

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/pkg/types"
)

// MomentumConfig parametrizes the tick-level fast momentum detector.
type MomentumConfig struct {
	BucketWidth     time.Duration // fixed tick aggregation width
	Threshold       float64       // smoothed rate-of-change trigger, e.g. 0.001
	SmoothingPeriod int           // EMA span over bucket rate-of-change
	Cooldown        time.Duration // minimum spacing between emitted signals
}

// DefaultMomentumConfig mirrors the sub-minute monitoring defaults.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		BucketWidth:     5 * time.Second,
		Threshold:       0.001,
		SmoothingPeriod: 3,
		Cooldown:        15 * time.Second,
	}
}

// Validate checks the configuration at load time.
func (c MomentumConfig) Validate() error {
	if c.BucketWidth <= 0 {
		return errors.NewInvalidParameter("detector", "momentum bucket width must be positive")
	}
	if c.Threshold <= 0 {
		return errors.NewInvalidParameter("detector",
			fmt.Sprintf("momentum threshold must be positive, got %g", c.Threshold))
	}
	if c.SmoothingPeriod < 1 {
		return errors.NewInvalidParameter("detector", "momentum smoothing period must be >= 1")
	}
	if c.Cooldown < 0 {
		return errors.NewInvalidParameter("detector", "momentum cooldown must not be negative")
	}
	return nil
}

// bucket is one fixed-width aggregation of raw ticks.
type bucket struct {
	start  time.Time
	vwap   float64
	volume float64
}

// FastMomentum detects short bursts of directional movement in the raw tick
// stream. Ticks are aggregated into fixed-width buckets; the detector
// triggers on the smoothed rate-of-change of the bucket VWAPs. Emitted
// signals carry a short validity half-life which the fusion engine's decay
// enforces; the detector itself never expires its own output.
type FastMomentum struct {
	cfg        MomentumConfig
	instrument string
	log        zerolog.Logger

	lastEmitted time.Time
}

// NewFastMomentum creates a detector for one instrument.
func NewFastMomentum(instrument string, cfg MomentumConfig, log zerolog.Logger) *FastMomentum {
	return &FastMomentum{
		cfg:        cfg,
		instrument: instrument,
		log:        log.With().Str("detector", "fast_momentum").Str("instrument", instrument).Logger(),
	}
}

func (d *FastMomentum) Name() string               { return "fast_momentum" }
func (d *FastMomentum) Timeframe() types.Timeframe { return types.TimeframeTick }

// Evaluate aggregates the tick window and returns at most one signal dated
// at the newest bucket. Windows without a triggering rate-of-change produce
// nil.
func (d *FastMomentum) Evaluate(ticks []types.Tick, now time.Time) *types.Signal {
	buckets := d.aggregate(ticks)
	if len(buckets) < 2 {
		return nil
	}

	smoothed, sampled := 0.0, false
	alpha := 2.0 / (float64(d.cfg.SmoothingPeriod) + 1)
	for i := 1; i < len(buckets); i++ {
		prev := buckets[i-1].vwap
		if prev == 0 {
			continue
		}
		roc := (buckets[i].vwap - prev) / prev
		if !sampled {
			smoothed, sampled = roc, true
			continue
		}
		smoothed = alpha*roc + (1-alpha)*smoothed
	}
	if !sampled {
		return nil
	}

	var direction types.Direction
	switch {
	case smoothed > d.cfg.Threshold:
		direction = types.DirectionBuy
	case smoothed < -d.cfg.Threshold:
		direction = types.DirectionSell
	default:
		return nil
	}

	if d.cfg.Cooldown > 0 && !d.lastEmitted.IsZero() && now.Sub(d.lastEmitted) < d.cfg.Cooldown {
		return nil
	}
	d.lastEmitted = now

	last := buckets[len(buckets)-1]
	sig := &types.Signal{
		Instrument: d.instrument,
		Timeframe:  types.TimeframeTick,
		Timestamp:  last.start,
		Direction:  direction,
		Confidence: math.Min(1, math.Abs(smoothed)/(2*d.cfg.Threshold)),
		Source:     d.Name(),
	}

	d.log.Debug().
		Str("direction", direction.String()).
		Float64("roc", smoothed).
		Float64("vwap", last.vwap).
		Int("buckets", len(buckets)).
		Msg("momentum burst")
	return sig
}

// aggregate groups ticks into fixed-width buckets keyed by truncated
// timestamp and computes the volume-weighted average price of each. Ticks
// are assumed time-ordered; a zero-volume bucket falls back to its last
// trade price.
func (d *FastMomentum) aggregate(ticks []types.Tick) []bucket {
	var out []bucket
	var notional, volume, lastPrice float64
	var start time.Time

	flush := func() {
		if start.IsZero() {
			return
		}
		b := bucket{start: start, volume: volume}
		if volume > 0 {
			b.vwap = notional / volume
		} else {
			b.vwap = lastPrice
		}
		out = append(out, b)
	}

	for _, tick := range ticks {
		bucketStart := tick.Timestamp.Truncate(d.cfg.BucketWidth)
		if !bucketStart.Equal(start) {
			flush()
			start = bucketStart
			notional, volume = 0, 0
		}
		notional += tick.Price * tick.Volume
		volume += tick.Volume
		lastPrice = tick.Price
	}
	flush()
	return out
}
