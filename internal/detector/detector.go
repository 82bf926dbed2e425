// Package detector hosts the per-timeframe signal detectors. A detector
// instance watches exactly one instrument; the orchestrator owns one
// instance per (instrument, timeframe) and drives it from that instrument's
// event path, so detectors need no internal locking.
package detector

import "github.com/minhle2209/tradepulse/pkg/types"

// Detector identifies a signal source for fusion slot bookkeeping.
type Detector interface {
	Name() string
	Timeframe() types.Timeframe
}
