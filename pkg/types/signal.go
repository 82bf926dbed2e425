package types

import "time"

// Direction is the directional vote carried by a signal.
type Direction int

const (
	DirectionHold Direction = iota
	DirectionBuy
	DirectionSell
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "BUY"
	case DirectionSell:
		return "SELL"
	case DirectionHold:
		return "HOLD"
	default:
		return "UNKNOWN"
	}
}

// Value maps the direction onto the fusion axis: +1 buy, -1 sell, 0 hold.
func (d Direction) Value() float64 {
	switch d {
	case DirectionBuy:
		return 1
	case DirectionSell:
		return -1
	default:
		return 0
	}
}

// Timeframe identifies the sampling horizon a detector operates on.
type Timeframe string

const (
	TimeframeBar  Timeframe = "bar"
	TimeframeTick Timeframe = "tick"
)

// Signal is a dated directional event emitted by one detector. Signals are
// immutable; their weight in fusion decays with age per the timeframe's
// half-life.
type Signal struct {
	Instrument string
	Timeframe  Timeframe
	Timestamp  time.Time
	Direction  Direction
	Confidence float64 // in [0,1]
	Source     string  // emitting detector name
}

// FusedSignal is the per-instrument consensus derived from the current
// signal buffer. It is recomputed on every evaluation and never persisted.
type FusedSignal struct {
	Instrument string
	Timestamp  time.Time
	Direction  Direction
	Score      float64 // in [-1,1]
}
