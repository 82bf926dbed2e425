package types

import "time"

// Side is the side of an order intent.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "SELL"
	}
	return "BUY"
}

// IntentReason explains why an order intent was produced.
type IntentReason string

const (
	ReasonEntrySignal    IntentReason = "ENTRY_SIGNAL"
	ReasonStopLoss       IntentReason = "STOP_LOSS"
	ReasonTakeProfit     IntentReason = "TAKE_PROFIT"
	ReasonTrailingStop   IntentReason = "TRAILING_STOP"
	ReasonSignalReversal IntentReason = "SIGNAL_REVERSAL"
)

// Entry reports whether the intent opens a position (as opposed to exiting one).
func (r IntentReason) Entry() bool {
	return r == ReasonEntrySignal
}

// OrderIntent is the engine's only externally visible output besides logs.
// Quantity is always positive; Side carries the direction.
type OrderIntent struct {
	Instrument string
	Side       Side
	Quantity   float64
	Reason     IntentReason
}

// Fill confirms an executed order intent.
type Fill struct {
	Price     float64
	Quantity  float64
	Timestamp time.Time
}

// FillFailed reports that an order intent could not be executed.
type FillFailed struct {
	Reason string
}
