// Package engine drives the per-event pipeline: pull data, run the
// timeframe detectors, fuse their signals and hand the consensus to the
// risk manager. Each instrument's detector and fusion state is owned by
// that instrument's processing path; only the account behind the risk
// manager is shared.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhle2209/tradepulse/internal/detector"
	"github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/internal/fusion"
	"github.com/minhle2209/tradepulse/internal/monitoring"
	"github.com/minhle2209/tradepulse/internal/risk"
	"github.com/minhle2209/tradepulse/pkg/types"
)

// DataSource supplies market data on demand. Implementations may return a
// DATA_UNAVAILABLE error; the engine then skips the instrument for the
// cycle and retries on the next event.
type DataSource interface {
	GetPriceSeries(ctx context.Context, instrument string, granularity types.Granularity, lookback int) (*types.PriceSeries, error)
	GetTickWindow(ctx context.Context, instrument string, lookback time.Duration) ([]types.Tick, error)
}

// OrderGateway executes order intents. Submit returns an error only when
// the intent could not be handed to the venue; the execution outcome
// arrives asynchronously through HandleFill or HandleFillFailed.
type OrderGateway interface {
	Submit(ctx context.Context, intent types.OrderIntent) error
}

// Result is the outcome of processing one event for one instrument. A
// non-nil Err never affects other instruments.
type Result struct {
	Instrument string
	Intent     *types.OrderIntent
	Err        error
}

// Config wires the per-instrument pipeline settings together.
type Config struct {
	BarLookback  int           // bars fetched per bar evaluation
	TickLookback time.Duration // tick window fetched per tick evaluation

	// SessionStart/SessionEnd bound the entry window as "HH:MM" wall clock
	// in the event's location. Empty disables the guard. Exits are always
	// processed.
	SessionStart string
	SessionEnd   string

	PeakValley detector.PeakValleyConfig
	Momentum   detector.MomentumConfig
	Fusion     fusion.Config
}

// DefaultConfig returns the standard intraday pipeline settings.
func DefaultConfig() Config {
	return Config{
		BarLookback:  120,
		TickLookback: 2 * time.Minute,
		SessionStart: "09:15",
		SessionEnd:   "15:30",
		PeakValley:   detector.DefaultPeakValleyConfig(),
		Momentum:     detector.DefaultMomentumConfig(),
		Fusion:       fusion.DefaultConfig(),
	}
}

// Validate checks the whole pipeline configuration.
func (c Config) Validate() error {
	if c.BarLookback < 1 {
		return errors.NewInvalidParameter("engine",
			fmt.Sprintf("bar lookback must be at least 1, got %d", c.BarLookback))
	}
	if c.TickLookback <= 0 {
		return errors.NewInvalidParameter("engine", "tick lookback must be positive")
	}
	if (c.SessionStart == "") != (c.SessionEnd == "") {
		return errors.NewInvalidParameter("engine", "session start and end must be set together")
	}
	if c.SessionStart != "" {
		start, err := parseClock(c.SessionStart)
		if err != nil {
			return err
		}
		end, err := parseClock(c.SessionEnd)
		if err != nil {
			return err
		}
		if end <= start {
			return errors.NewInvalidParameter("engine", "session end must be after session start")
		}
	}
	if err := c.PeakValley.Validate(); err != nil {
		return err
	}
	if err := c.Momentum.Validate(); err != nil {
		return err
	}
	return c.Fusion.Validate()
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, errors.NewInvalidParameter("engine",
			fmt.Sprintf("clock time %q is not HH:MM", s))
	}
	return h*60 + m, nil
}

// pipeline holds one instrument's detectors and fusion buffer.
type pipeline struct {
	peakValley *detector.PeakValley
	momentum   *detector.FastMomentum
	fusion     *fusion.Engine
}

// Engine is the orchestrator. OnBar and OnTick are the only entry points;
// both return at most one order intent per event.
type Engine struct {
	cfg     Config
	data    DataSource
	gateway OrderGateway
	risk    *risk.Manager
	log     zerolog.Logger
	health  *monitoring.HealthChecker

	sessionStart int // minutes since midnight, -1 when unguarded
	sessionEnd   int

	mu        sync.Mutex
	pipelines map[string]*pipeline
}

// New creates an engine over the given collaborators. The configuration
// must already be validated.
func New(cfg Config, data DataSource, gateway OrderGateway, riskMgr *risk.Manager, log zerolog.Logger) *Engine {
	e := &Engine{
		cfg:          cfg,
		data:         data,
		gateway:      gateway,
		risk:         riskMgr,
		log:          log.With().Str("component", "engine").Logger(),
		sessionStart: -1,
		sessionEnd:   -1,
		pipelines:    make(map[string]*pipeline),
	}
	if cfg.SessionStart != "" {
		e.sessionStart, _ = parseClock(cfg.SessionStart)
		e.sessionEnd, _ = parseClock(cfg.SessionEnd)
	}
	return e
}

// SetHealthChecker attaches the health endpoint state. Optional.
func (e *Engine) SetHealthChecker(h *monitoring.HealthChecker) {
	e.health = h
}

func (e *Engine) pipeline(instrument string) *pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pipelines[instrument]
	if !ok {
		p = &pipeline{
			peakValley: detector.NewPeakValley(instrument, e.cfg.PeakValley, e.log),
			momentum:   detector.NewFastMomentum(instrument, e.cfg.Momentum, e.log),
			fusion:     fusion.NewEngine(instrument, e.cfg.Fusion),
		}
		e.pipelines[instrument] = p
	}
	return p
}

func (e *Engine) inSession(at time.Time) bool {
	if e.sessionStart < 0 {
		return true
	}
	minutes := at.Hour()*60 + at.Minute()
	return minutes >= e.sessionStart && minutes < e.sessionEnd
}

// OnBar processes one completed bar for one instrument. Exit levels are
// checked first so an open position reacts to the close even when the data
// source cannot serve history this cycle.
func (e *Engine) OnBar(ctx context.Context, instrument string, bar types.OHLCV) (*types.OrderIntent, error) {
	p := e.pipeline(instrument)
	e.observePrice(instrument, bar.Close)

	if intent := e.risk.HandlePrice(instrument, bar.Close, bar.Timestamp); intent != nil {
		return e.submit(ctx, intent)
	}

	series, err := e.data.GetPriceSeries(ctx, instrument, types.GranularityBar, e.cfg.BarLookback)
	if err != nil {
		return nil, e.dataFailure(instrument, "get_price_series", err)
	}

	sig, err := p.peakValley.Evaluate(series)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "engine", "peak_valley")
	}
	if sig != nil {
		p.fusion.Observe(*sig)
		monitoring.RecordSignal(instrument, string(sig.Timeframe), sig.Direction.String())
	}
	return e.decide(ctx, p, instrument, bar.Close, bar.Timestamp)
}

// OnTick processes one trade print for one instrument.
func (e *Engine) OnTick(ctx context.Context, instrument string, tick types.Tick) (*types.OrderIntent, error) {
	p := e.pipeline(instrument)
	e.observePrice(instrument, tick.Price)

	if intent := e.risk.HandlePrice(instrument, tick.Price, tick.Timestamp); intent != nil {
		return e.submit(ctx, intent)
	}

	ticks, err := e.data.GetTickWindow(ctx, instrument, e.cfg.TickLookback)
	if err != nil {
		return nil, e.dataFailure(instrument, "get_tick_window", err)
	}

	if sig := p.momentum.Evaluate(ticks, tick.Timestamp); sig != nil {
		p.fusion.Observe(*sig)
		monitoring.RecordSignal(instrument, string(sig.Timeframe), sig.Direction.String())
	}
	return e.decide(ctx, p, instrument, tick.Price, tick.Timestamp)
}

// OnBarBatch runs OnBar for each instrument independently. One
// instrument's failure never blocks the others; every outcome is reported.
func (e *Engine) OnBarBatch(ctx context.Context, bars map[string]types.OHLCV) []Result {
	results := make([]Result, 0, len(bars))
	for instrument, bar := range bars {
		intent, err := e.OnBar(ctx, instrument, bar)
		results = append(results, Result{Instrument: instrument, Intent: intent, Err: err})
	}
	return results
}

// OnTickBatch runs OnTick for each instrument independently.
func (e *Engine) OnTickBatch(ctx context.Context, ticks map[string]types.Tick) []Result {
	results := make([]Result, 0, len(ticks))
	for instrument, tick := range ticks {
		intent, err := e.OnTick(ctx, instrument, tick)
		results = append(results, Result{Instrument: instrument, Intent: intent, Err: err})
	}
	return results
}

// decide fuses the instrument's signal buffer and routes the consensus
// through the risk manager. Entries are suppressed outside the session
// window; reversal exits on an open position still pass through.
func (e *Engine) decide(ctx context.Context, p *pipeline, instrument string, price float64, at time.Time) (*types.OrderIntent, error) {
	fused := p.fusion.Fuse(at)
	monitoring.UpdateFusedScore(instrument, fused.Score)

	if !e.inSession(at) && e.risk.Position(instrument).State == risk.StateFlat {
		return nil, nil
	}

	intent := e.risk.HandleFusedSignal(fused, price, at)
	if intent == nil {
		return nil, nil
	}
	return e.submit(ctx, intent)
}

func (e *Engine) submit(ctx context.Context, intent *types.OrderIntent) (*types.OrderIntent, error) {
	monitoring.RecordIntent(intent.Instrument, string(intent.Reason))
	if err := e.gateway.Submit(ctx, *intent); err != nil {
		// The venue never saw the order; revert the pending transition
		// right away instead of waiting for a confirmation that cannot
		// come.
		e.risk.HandleFillFailed(intent.Instrument, types.FillFailed{Reason: err.Error()})
		monitoring.RecordError(string(errors.CategoryFillFailed))
		return nil, errors.Wrap(err, errors.CategoryFillFailed, "engine", "submit")
	}
	return intent, nil
}

// HandleFill routes an execution confirmation to the risk manager.
func (e *Engine) HandleFill(instrument string, fill types.Fill) {
	e.risk.HandleFill(instrument, fill)
	e.publishAccount()
}

// HandleFillFailed routes an execution rejection to the risk manager.
func (e *Engine) HandleFillFailed(instrument string, failure types.FillFailed) {
	monitoring.RecordError(string(errors.CategoryFillFailed))
	e.risk.HandleFillFailed(instrument, failure)
}

func (e *Engine) observePrice(instrument string, price float64) {
	monitoring.UpdatePrice(instrument, price)
	if e.health != nil {
		e.health.RecordEvent(price)
	}
}

func (e *Engine) publishAccount() {
	snap := e.risk.Account().Snapshot()
	monitoring.UpdateAccount(snap.AvailableCapital, snap.RealizedPnLToday)
	if e.health != nil {
		e.health.SetHalted(snap.Halted)
	}
}

// dataFailure maps a data source error to the per-instrument policy:
// DATA_UNAVAILABLE is logged and swallowed so the instrument retries next
// cycle, anything else surfaces in the instrument's Result.
func (e *Engine) dataFailure(instrument, operation string, err error) error {
	if errors.Is(err, errors.CategoryDataUnavailable) {
		e.log.Debug().
			Str("instrument", instrument).
			Str("operation", operation).
			Err(err).
			Msg("data unavailable, instrument skipped this cycle")
		monitoring.RecordError(string(errors.CategoryDataUnavailable))
		return nil
	}
	if e.health != nil {
		e.health.RecordFailure(err.Error())
	}
	monitoring.RecordError(string(errors.CategoryInternal))
	return errors.Wrap(err, errors.CategoryInternal, "engine", operation)
}
