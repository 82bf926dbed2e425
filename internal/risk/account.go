package risk

import (
	"fmt"
	"sync"

	"github.com/minhle2209/tradepulse/internal/errors"
)

// Account is the shared capital-at-risk state of the whole engine. Every
// read-check-then-write runs under one mutex so that two instruments
// entering positions concurrently can never both observe stale capital and
// jointly overdraw it.
type Account struct {
	mu sync.Mutex

	availableCapital float64
	realizedPnLToday float64
	exposure         map[string]float64 // open notional per instrument
	initialCapital   float64

	dailyLossLimit float64
	maxDailyTrades int
	tradesToday    int
	halted         bool // circuit breaker: no new entries this session
}

// AccountSnapshot is a point-in-time copy of the account for reporting.
type AccountSnapshot struct {
	AvailableCapital float64
	RealizedPnLToday float64
	Exposure         map[string]float64
	TradesToday      int
	Halted           bool
}

// NewAccount creates an account with the given starting capital and
// session-level limits. A maxDailyTrades of zero disables the trade cap.
func NewAccount(initialCapital, dailyLossLimit float64, maxDailyTrades int) *Account {
	return &Account{
		availableCapital: initialCapital,
		initialCapital:   initialCapital,
		exposure:         make(map[string]float64),
		dailyLossLimit:   dailyLossLimit,
		maxDailyTrades:   maxDailyTrades,
	}
}

// reserveEntry atomically checks the circuit breaker, the daily trade cap
// and available capital, then reserves notional for a tentative entry. The
// reservation must be released on fill failure or converted on fill.
func (a *Account) reserveEntry(instrument string, notional float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.halted {
		return errors.New(errors.CategoryInsufficientCapital, "risk", "reserve",
			"circuit breaker tripped, no new entries this session")
	}
	if a.maxDailyTrades > 0 && a.tradesToday >= a.maxDailyTrades {
		return errors.New(errors.CategoryInsufficientCapital, "risk", "reserve",
			fmt.Sprintf("daily trade cap %d reached", a.maxDailyTrades))
	}
	if notional > a.availableCapital {
		return errors.New(errors.CategoryInsufficientCapital, "risk", "reserve",
			fmt.Sprintf("need %.2f, available %.2f", notional, a.availableCapital))
	}

	a.availableCapital -= notional
	a.exposure[instrument] += notional
	return nil
}

// releaseEntry returns a reservation after a failed fill, all-or-nothing.
func (a *Account) releaseEntry(instrument string, notional float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.availableCapital += notional
	a.exposure[instrument] -= notional
	if a.exposure[instrument] == 0 {
		delete(a.exposure, instrument)
	}
}

// adjustEntry reconciles a reservation with the confirmed fill notional
// (fill price may differ from the intent price) and counts the trade.
func (a *Account) adjustEntry(instrument string, reserved, filled float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.availableCapital += reserved - filled
	a.exposure[instrument] += filled - reserved
	a.tradesToday++
}

// settleExit books a confirmed exit fill: exposure is released back to
// capital together with the realized profit or loss, and the circuit
// breaker trips when the session loss limit is breached. Single atomic
// update; a caller can never observe pnl applied without the capital move.
func (a *Account) settleExit(instrument string, notional, pnl float64) (tripped bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.availableCapital += notional + pnl
	a.realizedPnLToday += pnl
	a.exposure[instrument] -= notional
	if a.exposure[instrument] == 0 {
		delete(a.exposure, instrument)
	}

	if !a.halted && a.dailyLossLimit > 0 && a.realizedPnLToday <= -a.dailyLossLimit {
		a.halted = true
		tripped = true
	}
	return tripped
}

// Halted reports whether the circuit breaker is tripped.
func (a *Account) Halted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.halted
}

// Snapshot returns a copy of the account state.
func (a *Account) Snapshot() AccountSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	exposure := make(map[string]float64, len(a.exposure))
	for k, v := range a.exposure {
		exposure[k] = v
	}
	return AccountSnapshot{
		AvailableCapital: a.availableCapital,
		RealizedPnLToday: a.realizedPnLToday,
		Exposure:         exposure,
		TradesToday:      a.tradesToday,
		Halted:           a.halted,
	}
}

// ResetSession clears the per-session counters before a new trading day.
// Open exposure carries over untouched.
func (a *Account) ResetSession() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.realizedPnLToday = 0
	a.tradesToday = 0
	a.halted = false
}
