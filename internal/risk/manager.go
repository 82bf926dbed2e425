package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/pkg/types"
)

// PositionState is the lifecycle state of one instrument's position.
type PositionState int

const (
	StateFlat PositionState = iota
	StateOpen
)

func (s PositionState) String() string {
	if s == StateOpen {
		return "OPEN"
	}
	return "FLAT"
}

// Position is the live position of one instrument. Quantity is signed:
// positive long, negative short. Owned exclusively by the Manager.
type Position struct {
	Instrument      string
	Quantity        float64
	EntryPrice      float64
	StopLossPrice   float64
	TakeProfitPrice float64
	State           PositionState
}

// ClosedTrade is a completed round trip, reported to the trade recorder on
// the confirmed exit fill.
type ClosedTrade struct {
	Instrument string
	Side       types.Side // entry side
	Quantity   float64    // absolute
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	PnL        float64
	Reason     types.IntentReason
}

// Config carries the risk limits, validated at load time.
type Config struct {
	RiskPctPerTrade  float64 // fraction of available capital risked per entry
	MaxPositionValue float64 // hard notional cap per position
	StopPct          float64 // stop-loss distance from entry
	TargetPct        float64 // take-profit distance from entry
	LotSize          float64 // minimum tradable increment
	DailyLossLimit   float64 // circuit breaker threshold, 0 disables
	MaxDailyTrades   int     // 0 disables
	AllowShort       bool
	TrailingArmPct   float64 // unrealized gain that arms the trailing stop, 0 disables
	TrailingStopPct  float64 // giveback from the peak gain once armed
}

// DefaultConfig mirrors the classic intraday risk setup.
func DefaultConfig() Config {
	return Config{
		RiskPctPerTrade:  0.25,
		MaxPositionValue: 250000,
		StopPct:          0.05,
		TargetPct:        0.08,
		LotSize:          100,
		DailyLossLimit:   50000,
		MaxDailyTrades:   8,
		TrailingArmPct:   0.04,
		TrailingStopPct:  0.02,
	}
}

// Validate checks the configuration at load time.
func (c Config) Validate() error {
	if c.RiskPctPerTrade <= 0 || c.RiskPctPerTrade > 1 {
		return errors.NewInvalidParameter("risk",
			fmt.Sprintf("risk pct per trade must be in (0,1], got %g", c.RiskPctPerTrade))
	}
	if c.MaxPositionValue <= 0 {
		return errors.NewInvalidParameter("risk", "max position value must be positive")
	}
	if c.StopPct <= 0 || c.StopPct >= 1 {
		return errors.NewInvalidParameter("risk",
			fmt.Sprintf("stop pct must be in (0,1), got %g", c.StopPct))
	}
	if c.TargetPct <= 0 {
		return errors.NewInvalidParameter("risk",
			fmt.Sprintf("target pct must be positive, got %g", c.TargetPct))
	}
	if c.LotSize <= 0 {
		return errors.NewInvalidParameter("risk",
			fmt.Sprintf("lot size must be positive, got %g", c.LotSize))
	}
	if c.DailyLossLimit < 0 || c.MaxDailyTrades < 0 {
		return errors.NewInvalidParameter("risk", "daily limits must not be negative")
	}
	if c.TrailingArmPct < 0 || c.TrailingStopPct < 0 {
		return errors.NewInvalidParameter("risk", "trailing stop percentages must not be negative")
	}
	if c.TrailingArmPct > 0 && c.TrailingStopPct >= c.TrailingArmPct {
		return errors.NewInvalidParameter("risk", "trailing giveback must be smaller than the arming gain")
	}
	return nil
}

// pendingOrder is an emitted intent awaiting its fill confirmation.
type pendingOrder struct {
	side     types.Side
	quantity float64 // absolute
	notional float64 // reserved capital for entries
	reason   types.IntentReason
}

// instrumentState is owned by one instrument's processing path; the manager
// only locks the registry that hands these out.
type instrumentState struct {
	position    Position
	entryTime   time.Time
	peakGainPct float64
	trailing    bool // stop has been ratcheted by the trailing rule

	pendingEntry *pendingOrder
	pendingExit  *pendingOrder
}

// Manager owns the per-instrument position state machines and the shared
// account. State transitions: FLAT -> OPEN on confirmed entry fill, OPEN ->
// FLAT on confirmed exit fill. Intents alone never commit a transition.
type Manager struct {
	cfg     Config
	account *Account
	log     zerolog.Logger

	mu     sync.Mutex
	states map[string]*instrumentState

	// onTradeClosed, when set, receives every completed round trip.
	onTradeClosed func(ClosedTrade)
}

// NewManager creates a risk manager over the given account.
func NewManager(cfg Config, account *Account, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		account: account,
		log:     log.With().Str("component", "risk").Logger(),
		states:  make(map[string]*instrumentState),
	}
}

// SetTradeRecorder registers a callback for completed round trips. Must be
// called before the manager starts receiving events.
func (m *Manager) SetTradeRecorder(fn func(ClosedTrade)) {
	m.onTradeClosed = fn
}

func (m *Manager) state(instrument string) *instrumentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[instrument]
	if !ok {
		st = &instrumentState{position: Position{Instrument: instrument}}
		m.states[instrument] = st
	}
	return st
}

// Position returns a copy of the instrument's position.
func (m *Manager) Position(instrument string) Position {
	return m.state(instrument).position
}

// Account exposes the shared account for reporting.
func (m *Manager) Account() *Account {
	return m.account
}

// HandleFusedSignal converts a fused consensus into at most one order
// intent: an entry when flat, a reversal exit when the consensus opposes an
// open position. HOLD never produces an intent.
func (m *Manager) HandleFusedSignal(fused types.FusedSignal, price float64, now time.Time) *types.OrderIntent {
	if fused.Direction == types.DirectionHold || price <= 0 {
		return nil
	}
	st := m.state(fused.Instrument)

	switch st.position.State {
	case StateOpen:
		return m.maybeReverse(st, fused)
	case StateFlat:
		if st.pendingEntry != nil {
			return nil // an entry intent is already in flight
		}
		return m.maybeEnter(st, fused, price, now)
	}
	return nil
}

func (m *Manager) maybeReverse(st *instrumentState, fused types.FusedSignal) *types.OrderIntent {
	if st.pendingExit != nil {
		return nil
	}
	long := st.position.Quantity > 0
	opposes := (long && fused.Direction == types.DirectionSell) ||
		(!long && fused.Direction == types.DirectionBuy)
	if !opposes {
		return nil
	}
	m.log.Info().
		Str("instrument", fused.Instrument).
		Float64("score", fused.Score).
		Msg("consensus reversed against open position")
	return m.emitExit(st, types.ReasonSignalReversal)
}

func (m *Manager) maybeEnter(st *instrumentState, fused types.FusedSignal, price float64, now time.Time) *types.OrderIntent {
	if fused.Direction == types.DirectionSell && !m.cfg.AllowShort {
		return nil
	}

	available := m.account.Snapshot().AvailableCapital
	budget := math.Min(m.cfg.MaxPositionValue, available*m.cfg.RiskPctPerTrade)
	quantity := math.Floor(budget/price/m.cfg.LotSize) * m.cfg.LotSize
	if quantity <= 0 {
		// Not an error: insufficient capital or lot rounding is a no-op
		// transition.
		m.log.Debug().
			Str("instrument", fused.Instrument).
			Float64("price", price).
			Float64("available", available).
			Msg("entry skipped, quantity rounds to zero")
		return nil
	}

	notional := quantity * price
	if err := m.account.reserveEntry(fused.Instrument, notional); err != nil {
		m.log.Debug().
			Str("instrument", fused.Instrument).
			Err(err).
			Msg("entry skipped, reservation refused")
		return nil
	}

	side := types.SideBuy
	if fused.Direction == types.DirectionSell {
		side = types.SideSell
	}
	st.pendingEntry = &pendingOrder{
		side:     side,
		quantity: quantity,
		notional: notional,
		reason:   types.ReasonEntrySignal,
	}
	st.entryTime = now
	m.log.Info().
		Str("instrument", fused.Instrument).
		Str("side", side.String()).
		Float64("quantity", quantity).
		Float64("score", fused.Score).
		Msg("entry intent emitted")
	return &types.OrderIntent{
		Instrument: fused.Instrument,
		Side:       side,
		Quantity:   quantity,
		Reason:     types.ReasonEntrySignal,
	}
}

// HandlePrice checks an open position against its exit levels at the latest
// price. Exits are evaluated even when the circuit breaker is tripped: the
// breaker blocks entries only.
func (m *Manager) HandlePrice(instrument string, price float64, now time.Time) *types.OrderIntent {
	st := m.state(instrument)
	if st.position.State != StateOpen || st.pendingExit != nil || price <= 0 {
		return nil
	}

	long := st.position.Quantity > 0
	m.updateTrailingStop(st, price, long)

	var reason types.IntentReason
	switch {
	case long && price <= st.position.StopLossPrice,
		!long && price >= st.position.StopLossPrice:
		reason = types.ReasonStopLoss
		if st.trailing {
			reason = types.ReasonTrailingStop
		}
	case long && price >= st.position.TakeProfitPrice,
		!long && price <= st.position.TakeProfitPrice:
		reason = types.ReasonTakeProfit
	default:
		return nil
	}

	m.log.Info().
		Str("instrument", instrument).
		Str("reason", string(reason)).
		Float64("price", price).
		Float64("stop", st.position.StopLossPrice).
		Float64("target", st.position.TakeProfitPrice).
		Msg("exit level crossed")
	return m.emitExit(st, reason)
}

// updateTrailingStop ratchets the stop once the unrealized gain exceeds the
// arming threshold: the stop follows the peak gain minus the giveback and
// only ever tightens.
func (m *Manager) updateTrailingStop(st *instrumentState, price float64, long bool) {
	if m.cfg.TrailingArmPct <= 0 {
		return
	}
	entry := st.position.EntryPrice
	gain := (price - entry) / entry
	if !long {
		gain = -gain
	}
	if gain > st.peakGainPct {
		st.peakGainPct = gain
	}
	if st.peakGainPct < m.cfg.TrailingArmPct {
		return
	}

	lockedGain := st.peakGainPct - m.cfg.TrailingStopPct
	var ratcheted float64
	if long {
		ratcheted = entry * (1 + lockedGain)
		if ratcheted > st.position.StopLossPrice {
			st.position.StopLossPrice = ratcheted
			st.trailing = true
		}
	} else {
		ratcheted = entry * (1 - lockedGain)
		if ratcheted < st.position.StopLossPrice {
			st.position.StopLossPrice = ratcheted
			st.trailing = true
		}
	}
}

func (m *Manager) emitExit(st *instrumentState, reason types.IntentReason) *types.OrderIntent {
	side := types.SideSell
	if st.position.Quantity < 0 {
		side = types.SideBuy
	}
	quantity := math.Abs(st.position.Quantity)
	st.pendingExit = &pendingOrder{side: side, quantity: quantity, reason: reason}
	return &types.OrderIntent{
		Instrument: st.position.Instrument,
		Side:       side,
		Quantity:   quantity,
		Reason:     reason,
	}
}

// HandleFill commits the pending transition for the instrument. An entry
// fill moves FLAT -> OPEN and fixes stop and target off the fill price; an
// exit fill moves OPEN -> FLAT and books realized pnl on the account.
func (m *Manager) HandleFill(instrument string, fill types.Fill) {
	st := m.state(instrument)

	switch {
	case st.pendingEntry != nil:
		m.commitEntry(st, fill)
	case st.pendingExit != nil:
		m.commitExit(st, fill)
	default:
		m.log.Warn().
			Str("instrument", instrument).
			Float64("price", fill.Price).
			Msg("fill without pending intent ignored")
	}
}

func (m *Manager) commitEntry(st *instrumentState, fill types.Fill) {
	pending := st.pendingEntry
	st.pendingEntry = nil

	quantity := fill.Quantity
	if pending.side == types.SideSell {
		quantity = -quantity
	}
	filledNotional := fill.Price * fill.Quantity
	m.account.adjustEntry(st.position.Instrument, pending.notional, filledNotional)

	st.position.Quantity = quantity
	st.position.EntryPrice = fill.Price
	st.position.State = StateOpen
	st.entryTime = fill.Timestamp
	st.peakGainPct = 0
	st.trailing = false
	if quantity > 0 {
		st.position.StopLossPrice = fill.Price * (1 - m.cfg.StopPct)
		st.position.TakeProfitPrice = fill.Price * (1 + m.cfg.TargetPct)
	} else {
		st.position.StopLossPrice = fill.Price * (1 + m.cfg.StopPct)
		st.position.TakeProfitPrice = fill.Price * (1 - m.cfg.TargetPct)
	}

	m.log.Info().
		Str("instrument", st.position.Instrument).
		Float64("quantity", quantity).
		Float64("entry", fill.Price).
		Float64("stop", st.position.StopLossPrice).
		Float64("target", st.position.TakeProfitPrice).
		Msg("position opened")
}

func (m *Manager) commitExit(st *instrumentState, fill types.Fill) {
	pending := st.pendingExit
	st.pendingExit = nil

	entrySide := types.SideBuy
	if st.position.Quantity < 0 {
		entrySide = types.SideSell
	}
	pnl := (fill.Price - st.position.EntryPrice) * st.position.Quantity / math.Abs(st.position.Quantity) * fill.Quantity
	notional := st.position.EntryPrice * math.Abs(st.position.Quantity)

	tripped := m.account.settleExit(st.position.Instrument, notional, pnl)
	closed := ClosedTrade{
		Instrument: st.position.Instrument,
		Side:       entrySide,
		Quantity:   math.Abs(st.position.Quantity),
		EntryPrice: st.position.EntryPrice,
		ExitPrice:  fill.Price,
		EntryTime:  st.entryTime,
		ExitTime:   fill.Timestamp,
		PnL:        pnl,
		Reason:     pending.reason,
	}

	st.position = Position{Instrument: st.position.Instrument}
	st.peakGainPct = 0
	st.trailing = false

	m.log.Info().
		Str("instrument", closed.Instrument).
		Str("reason", string(closed.Reason)).
		Float64("pnl", pnl).
		Msg("position closed")
	if tripped {
		m.log.Warn().
			Float64("realized_pnl", m.account.Snapshot().RealizedPnLToday).
			Msg("daily loss limit breached, circuit breaker tripped")
	}
	if m.onTradeClosed != nil {
		m.onTradeClosed(closed)
	}
}

// HandleFillFailed reverts the pending transition: a failed entry releases
// the capital reservation all-or-nothing, a failed exit leaves the position
// open for the next exit trigger.
func (m *Manager) HandleFillFailed(instrument string, failure types.FillFailed) {
	st := m.state(instrument)

	switch {
	case st.pendingEntry != nil:
		pending := st.pendingEntry
		st.pendingEntry = nil
		m.account.releaseEntry(instrument, pending.notional)
		m.log.Warn().
			Str("instrument", instrument).
			Str("reason", failure.Reason).
			Float64("released", pending.notional).
			Msg("entry fill failed, reservation released")
	case st.pendingExit != nil:
		st.pendingExit = nil
		m.log.Warn().
			Str("instrument", instrument).
			Str("reason", failure.Reason).
			Msg("exit fill failed, position stays open")
	}
}
