// Package journal keeps the completed round trips of a session and renders
// them as a console summary or an Excel workbook.
package journal

import (
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/minhle2209/tradepulse/internal/risk"
)

// Journal is an append-only record of closed trades. Safe for concurrent
// recording.
type Journal struct {
	mu     sync.Mutex
	trades []risk.ClosedTrade
}

// New creates an empty journal.
func New() *Journal {
	return &Journal{}
}

// Record appends one closed trade.
func (j *Journal) Record(trade risk.ClosedTrade) {
	j.mu.Lock()
	j.trades = append(j.trades, trade)
	j.mu.Unlock()
}

// Trades returns a copy of the recorded trades in close order.
func (j *Journal) Trades() []risk.ClosedTrade {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]risk.ClosedTrade, len(j.trades))
	copy(out, j.trades)
	return out
}

// InstrumentSummary aggregates one instrument's round trips.
type InstrumentSummary struct {
	Instrument string
	Trades     int
	Winning    int
	PnL        float64
}

// Summary aggregates the whole session.
type Summary struct {
	TotalTrades  int
	Winning      int
	Losing       int
	TotalPnL     float64
	WinRate      float64
	ByInstrument []InstrumentSummary
}

// Summarize computes the session summary. Instrument order follows first
// appearance.
func (j *Journal) Summarize() Summary {
	trades := j.Trades()

	var s Summary
	index := make(map[string]int)
	for _, tr := range trades {
		s.TotalTrades++
		s.TotalPnL += tr.PnL
		if tr.PnL > 0 {
			s.Winning++
		} else {
			s.Losing++
		}

		i, ok := index[tr.Instrument]
		if !ok {
			i = len(s.ByInstrument)
			index[tr.Instrument] = i
			s.ByInstrument = append(s.ByInstrument, InstrumentSummary{Instrument: tr.Instrument})
		}
		s.ByInstrument[i].Trades++
		s.ByInstrument[i].PnL += tr.PnL
		if tr.PnL > 0 {
			s.ByInstrument[i].Winning++
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Winning) / float64(s.TotalTrades)
	}
	return s
}

// RenderConsole writes the trade list and per-instrument summary as tables.
func (j *Journal) RenderConsole(w io.Writer) {
	trades := j.Trades()
	summary := j.Summarize()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("SESSION TRADES")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Instrument", "Side", "Qty", "Entry", "Exit", "Held", "PnL", "Reason"})
	for _, tr := range trades {
		t.AppendRow(table.Row{
			tr.Instrument,
			tr.Side.String(),
			tr.Quantity,
			tr.EntryPrice,
			tr.ExitPrice,
			tr.ExitTime.Sub(tr.EntryTime).Round(time.Second),
			tr.PnL,
			string(tr.Reason),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()

	st := table.NewWriter()
	st.SetOutputMirror(w)
	st.SetTitle("PER-INSTRUMENT SUMMARY")
	st.SetStyle(table.StyleRounded)
	st.AppendHeader(table.Row{"Instrument", "Trades", "Winning", "PnL"})
	for _, is := range summary.ByInstrument {
		st.AppendRow(table.Row{is.Instrument, is.Trades, is.Winning, is.PnL})
	}
	st.AppendFooter(table.Row{"TOTAL", summary.TotalTrades, summary.Winning, summary.TotalPnL})
	st.Render()
}
