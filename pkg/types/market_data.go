package types

import (
	"fmt"
	"time"
)

// OHLCV is a single bar of market data.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Tick is a single trade print.
type Tick struct {
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Granularity identifies the sampling granularity of a price series.
type Granularity string

const (
	GranularityBar        Granularity = "bar"
	GranularityTickBucket Granularity = "tick_bucket"
)

// PriceSeries is an append-only bar sequence for one instrument at one
// granularity. Timestamps must be strictly increasing; gap handling is a
// data source concern.
type PriceSeries struct {
	Instrument  string
	Granularity Granularity
	bars        []OHLCV
}

// NewPriceSeries creates an empty series for the given instrument.
func NewPriceSeries(instrument string, granularity Granularity) *PriceSeries {
	return &PriceSeries{
		Instrument:  instrument,
		Granularity: granularity,
	}
}

// Append adds a bar to the series. Bars with a timestamp at or before the
// last bar are rejected.
func (ps *PriceSeries) Append(bar OHLCV) error {
	if n := len(ps.bars); n > 0 && !bar.Timestamp.After(ps.bars[n-1].Timestamp) {
		return fmt.Errorf("bar timestamp %s is not after last bar %s",
			bar.Timestamp.Format(time.RFC3339), ps.bars[n-1].Timestamp.Format(time.RFC3339))
	}
	ps.bars = append(ps.bars, bar)
	return nil
}

// Bars returns the underlying bar slice. Callers must not mutate it.
func (ps *PriceSeries) Bars() []OHLCV {
	return ps.bars
}

// Len returns the number of bars in the series.
func (ps *PriceSeries) Len() int {
	return len(ps.bars)
}

// Last returns the most recent bar, or false when the series is empty.
func (ps *PriceSeries) Last() (OHLCV, bool) {
	if len(ps.bars) == 0 {
		return OHLCV{}, false
	}
	return ps.bars[len(ps.bars)-1], true
}

// Trim drops the oldest bars so that at most max remain.
func (ps *PriceSeries) Trim(max int) {
	if max > 0 && len(ps.bars) > max {
		ps.bars = append(ps.bars[:0:0], ps.bars[len(ps.bars)-max:]...)
	}
}
