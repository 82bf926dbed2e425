package detector

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/internal/indicators"
	"github.com/minhle2209/tradepulse/pkg/types"
)

// PeakValleyConfig parametrizes the bar-level detector.
type PeakValleyConfig struct {
	Window     int     // lookback/confirmation width w, in bars
	RSIPeriod  int     // RSI lookback
	MAPeriod   int     // trend moving average lookback
	Oversold   float64 // RSI gate for valley (BUY) signals
	Overbought float64 // RSI gate for peak (SELL) signals
}

// DefaultPeakValleyConfig mirrors the classic intraday setup.
func DefaultPeakValleyConfig() PeakValleyConfig {
	return PeakValleyConfig{
		Window:     5,
		RSIPeriod:  indicators.DefaultRSIPeriod,
		MAPeriod:   20,
		Oversold:   30,
		Overbought: 70,
	}
}

// Validate checks the configuration at load time.
func (c PeakValleyConfig) Validate() error {
	if c.Window < 1 {
		return errors.NewInvalidParameter("detector", fmt.Sprintf("peak/valley window must be >= 1, got %d", c.Window))
	}
	if c.RSIPeriod < 1 || c.MAPeriod < 1 {
		return errors.NewInvalidParameter("detector", "rsi and ma periods must be >= 1")
	}
	if c.Oversold < 0 || c.Overbought > 100 || c.Oversold >= c.Overbought {
		return errors.NewInvalidParameter("detector",
			fmt.Sprintf("rsi thresholds out of range: oversold %.1f, overbought %.1f", c.Oversold, c.Overbought))
	}
	return nil
}

// PeakValley is the bar-level local-extremum detector. It is causal: a bar
// is confirmed as a local minimum or maximum only once the following w bars
// have been observed, so every signal is dated w bars behind the newest bar.
type PeakValley struct {
	cfg        PeakValleyConfig
	instrument string
	log        zerolog.Logger

	lastConfirmed time.Time // timestamp of the last bar a signal fired on
}

// NewPeakValley creates a detector for one instrument.
func NewPeakValley(instrument string, cfg PeakValleyConfig, log zerolog.Logger) *PeakValley {
	return &PeakValley{
		cfg:        cfg,
		instrument: instrument,
		log:        log.With().Str("detector", "peak_valley").Str("instrument", instrument).Logger(),
	}
}

func (d *PeakValley) Name() string               { return "peak_valley" }
func (d *PeakValley) Timeframe() types.Timeframe { return types.TimeframeBar }

// Evaluate inspects the series after a new bar arrived and returns at most
// one signal: the confirmation of bar n-1-w as a valley (BUY) or peak
// (SELL). Bars satisfying neither condition produce nil, keeping the fusion
// buffer sparse.
func (d *PeakValley) Evaluate(series *types.PriceSeries) (*types.Signal, error) {
	bars := series.Bars()
	n := len(bars)
	cand := n - 1 - d.cfg.Window
	if cand < d.cfg.Window {
		return nil, nil // not enough history on either side of the candidate
	}

	candidate := bars[cand]
	if !candidate.Timestamp.After(d.lastConfirmed) {
		return nil, nil // already labeled on a previous evaluation
	}

	rsi, err := indicators.RSI(bars, d.cfg.RSIPeriod)
	if err != nil {
		return nil, err
	}
	rsiAt, ok := rsi.At(cand)
	if !ok {
		return nil, nil // candidate still inside the RSI warm-up window
	}

	isValley, isPeak := true, true
	for i := cand - d.cfg.Window; i <= cand+d.cfg.Window; i++ {
		if i == cand {
			continue
		}
		if bars[i].Close < candidate.Close {
			isValley = false
		}
		if bars[i].Close > candidate.Close {
			isPeak = false
		}
	}

	var direction types.Direction
	switch {
	case isValley && rsiAt < d.cfg.Oversold:
		direction = types.DirectionBuy
	case isPeak && rsiAt > d.cfg.Overbought:
		direction = types.DirectionSell
	default:
		return nil, nil
	}

	d.lastConfirmed = candidate.Timestamp
	sig := &types.Signal{
		Instrument: d.instrument,
		Timeframe:  types.TimeframeBar,
		Timestamp:  candidate.Timestamp,
		Direction:  direction,
		Confidence: math.Min(1, math.Abs(rsiAt-50)/50),
		Source:     d.Name(),
	}

	d.log.Debug().
		Str("direction", direction.String()).
		Float64("close", candidate.Close).
		Float64("rsi", rsiAt).
		Float64("ma", d.trendContext(bars, cand)).
		Float64("confidence", sig.Confidence).
		Time("bar", candidate.Timestamp).
		Msg("extremum confirmed")
	return sig, nil
}

// trendContext reports the MA at the candidate bar for logging. It is
// diagnostic only and never gates a signal.
func (d *PeakValley) trendContext(bars []types.OHLCV, at int) float64 {
	ma, err := indicators.MovingAverage(bars, d.cfg.MAPeriod)
	if err != nil {
		return 0
	}
	v, _ := ma.At(at)
	return v
}
