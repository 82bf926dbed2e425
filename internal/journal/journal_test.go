package journal

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/minhle2209/tradepulse/internal/risk"
	"github.com/minhle2209/tradepulse/pkg/types"
)

func sampleTrades() []risk.ClosedTrade {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []risk.ClosedTrade{
		{
			Instrument: "RELIANCE", Side: types.SideBuy, Quantity: 2000,
			EntryPrice: 100, ExitPrice: 108, PnL: 16000,
			EntryTime: base, ExitTime: base.Add(30 * time.Minute),
			Reason: types.ReasonTakeProfit,
		},
		{
			Instrument: "RELIANCE", Side: types.SideBuy, Quantity: 1800,
			EntryPrice: 110, ExitPrice: 104.5, PnL: -9900,
			EntryTime: base.Add(time.Hour), ExitTime: base.Add(2 * time.Hour),
			Reason: types.ReasonStopLoss,
		},
		{
			Instrument: "TCS", Side: types.SideBuy, Quantity: 500,
			EntryPrice: 400, ExitPrice: 410, PnL: 5000,
			EntryTime: base, ExitTime: base.Add(45 * time.Minute),
			Reason: types.ReasonSignalReversal,
		},
	}
}

func TestSummarize(t *testing.T) {
	j := New()
	for _, tr := range sampleTrades() {
		j.Record(tr)
	}

	s := j.Summarize()
	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.Winning)
	assert.Equal(t, 1, s.Losing)
	assert.InDelta(t, 11100, s.TotalPnL, 1e-9)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-9)

	require.Len(t, s.ByInstrument, 2)
	assert.Equal(t, "RELIANCE", s.ByInstrument[0].Instrument)
	assert.Equal(t, 2, s.ByInstrument[0].Trades)
	assert.InDelta(t, 6100, s.ByInstrument[0].PnL, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	s := New().Summarize()
	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate)
	assert.Empty(t, s.ByInstrument)
}

func TestRenderConsole(t *testing.T) {
	j := New()
	for _, tr := range sampleTrades() {
		j.Record(tr)
	}

	var buf bytes.Buffer
	j.RenderConsole(&buf)

	out := buf.String()
	assert.Contains(t, out, "SESSION TRADES")
	assert.Contains(t, out, "RELIANCE")
	assert.Contains(t, out, "STOP_LOSS")
	assert.Contains(t, out, "TOTAL")
}

func TestWriteXLSX(t *testing.T) {
	j := New()
	for _, tr := range sampleTrades() {
		j.Record(tr)
	}

	path := filepath.Join(t.TempDir(), "journal.xlsx")
	require.NoError(t, j.WriteXLSX(path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	rows, err := fx.GetRows("Trades")
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus three trades")
	assert.Equal(t, "Instrument", rows[0][0])
	assert.Equal(t, "RELIANCE", rows[1][0])

	summary, err := fx.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, "TOTAL", summary[len(summary)-1][0])
}
