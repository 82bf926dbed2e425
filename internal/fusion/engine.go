// Package fusion reconciles signals from all timeframe detectors of one
// instrument into a single consensus. Fusion is a pure function of the
// buffered signals and the evaluation time: no hidden accumulator, so
// recomputation at the same instant is deterministic.
package fusion

import (
	"fmt"
	"math"
	"time"

	"github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/pkg/types"
)

// expiryHalfLives is how many half-lives a slot survives before it is
// treated as empty.
const expiryHalfLives = 4

// Config carries the per-timeframe fusion parameters. Longer timeframes are
// weighted higher by default so tick noise cannot flip the consensus alone.
type Config struct {
	Weights   map[types.Timeframe]float64
	HalfLives map[types.Timeframe]time.Duration
	Threshold float64 // minimum |score| for a directional consensus
}

// DefaultConfig mirrors the classic two-timeframe split: bar 0.7, tick 0.3.
func DefaultConfig() Config {
	return Config{
		Weights: map[types.Timeframe]float64{
			types.TimeframeBar:  0.7,
			types.TimeframeTick: 0.3,
		},
		HalfLives: map[types.Timeframe]time.Duration{
			types.TimeframeBar:  5 * time.Minute,
			types.TimeframeTick: 30 * time.Second,
		},
		Threshold: 0.2,
	}
}

// Validate checks the configuration at load time.
func (c Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return errors.NewInvalidParameter("fusion",
			fmt.Sprintf("threshold must be in (0,1), got %g", c.Threshold))
	}
	if len(c.Weights) == 0 {
		return errors.NewInvalidParameter("fusion", "at least one timeframe weight is required")
	}
	for tf, w := range c.Weights {
		if w <= 0 {
			return errors.NewInvalidParameter("fusion",
				fmt.Sprintf("weight for timeframe %q must be positive, got %g", tf, w))
		}
		if hl, ok := c.HalfLives[tf]; !ok || hl <= 0 {
			return errors.NewInvalidParameter("fusion",
				fmt.Sprintf("timeframe %q needs a positive half-life", tf))
		}
	}
	return nil
}

type slotKey struct {
	timeframe types.Timeframe
	source    string
}

// Engine fuses the buffered signals of one instrument. Each (timeframe,
// source) pair owns exactly one slot; a newer signal from the same source
// overwrites its slot, never appends. The engine is owned by the
// instrument's processing path and needs no locking.
type Engine struct {
	cfg        Config
	instrument string
	slots      map[slotKey]types.Signal
}

// NewEngine creates a fusion engine for one instrument.
func NewEngine(instrument string, cfg Config) *Engine {
	return &Engine{
		cfg:        cfg,
		instrument: instrument,
		slots:      make(map[slotKey]types.Signal),
	}
}

// Observe stores a signal in its source's slot. Signals from timeframes
// without a configured weight are ignored.
func (e *Engine) Observe(sig types.Signal) {
	if _, ok := e.cfg.Weights[sig.Timeframe]; !ok {
		return
	}
	e.slots[slotKey{timeframe: sig.Timeframe, source: sig.Source}] = sig
}

// Fuse computes the consensus at evaluation time at. Slots older than four
// half-lives are excluded as expired; remaining slots vote with weight ×
// direction × confidence × exponential decay. An empty buffer yields a HOLD
// with score zero, and a score exactly at the threshold resolves to HOLD.
func (e *Engine) Fuse(at time.Time) types.FusedSignal {
	var weighted, totalWeight float64
	for key, sig := range e.slots {
		age := at.Sub(sig.Timestamp)
		if age < 0 {
			age = 0
		}
		halfLife := e.cfg.HalfLives[key.timeframe]
		if age > expiryHalfLives*halfLife {
			delete(e.slots, key)
			continue
		}
		weight := e.cfg.Weights[key.timeframe]
		decay := math.Exp2(-float64(age) / float64(halfLife))
		weighted += weight * sig.Direction.Value() * sig.Confidence * decay
		totalWeight += weight
	}

	fused := types.FusedSignal{Instrument: e.instrument, Timestamp: at}
	if totalWeight == 0 {
		return fused
	}

	fused.Score = weighted / totalWeight
	switch {
	case fused.Score > e.cfg.Threshold:
		fused.Direction = types.DirectionBuy
	case fused.Score < -e.cfg.Threshold:
		fused.Direction = types.DirectionSell
	default:
		fused.Direction = types.DirectionHold
	}
	return fused
}

// SlotCount reports how many live slots the buffer holds. Diagnostic only.
func (e *Engine) SlotCount() int {
	return len(e.slots)
}
