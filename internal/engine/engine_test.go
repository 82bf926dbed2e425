package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhle2209/tradepulse/internal/detector"
	engineerrors "github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/internal/fusion"
	"github.com/minhle2209/tradepulse/internal/risk"
	"github.com/minhle2209/tradepulse/pkg/types"
)

type stubData struct {
	series    map[string]*types.PriceSeries
	seriesErr map[string]error
	ticks     map[string][]types.Tick
	ticksErr  map[string]error
}

func newStubData() *stubData {
	return &stubData{
		series:    make(map[string]*types.PriceSeries),
		seriesErr: make(map[string]error),
		ticks:     make(map[string][]types.Tick),
		ticksErr:  make(map[string]error),
	}
}

func (s *stubData) GetPriceSeries(_ context.Context, instrument string, _ types.Granularity, _ int) (*types.PriceSeries, error) {
	if err := s.seriesErr[instrument]; err != nil {
		return nil, err
	}
	return s.series[instrument], nil
}

func (s *stubData) GetTickWindow(_ context.Context, instrument string, _ time.Duration) ([]types.Tick, error) {
	if err := s.ticksErr[instrument]; err != nil {
		return nil, err
	}
	return s.ticks[instrument], nil
}

type captureGateway struct {
	submitted []types.OrderIntent
	err       error
}

func (g *captureGateway) Submit(_ context.Context, intent types.OrderIntent) error {
	if g.err != nil {
		return g.err
	}
	g.submitted = append(g.submitted, intent)
	return nil
}

func testEngineConfig() Config {
	cfg := DefaultConfig()
	cfg.SessionStart, cfg.SessionEnd = "", ""
	cfg.PeakValley = detector.PeakValleyConfig{Window: 2, RSIPeriod: 3, MAPeriod: 5, Oversold: 30, Overbought: 70}
	cfg.Fusion = fusion.DefaultConfig()
	return cfg
}

func newTestEngine(cfg Config, data DataSource, gw OrderGateway) *Engine {
	riskCfg := risk.Config{
		RiskPctPerTrade:  0.25,
		MaxPositionValue: 250000,
		StopPct:          0.05,
		TargetPct:        0.08,
		LotSize:          100,
		DailyLossLimit:   50000,
		MaxDailyTrades:   8,
	}
	account := risk.NewAccount(1_000_000, riskCfg.DailyLossLimit, riskCfg.MaxDailyTrades)
	mgr := risk.NewManager(riskCfg, account, zerolog.Nop())
	return New(cfg, data, gw, mgr, zerolog.Nop())
}

// valleySeries declines steeply into a trough and recovers so the bar
// detector confirms an oversold valley on the last bar.
func valleySeries(t *testing.T, instrument string, base time.Time) *types.PriceSeries {
	t.Helper()
	closes := []float64{100, 98, 96, 94, 92, 90, 88, 86, 84, 82, 80, 85, 88}
	series := types.NewPriceSeries(instrument, types.GranularityBar)
	for i, c := range closes {
		require.NoError(t, series.Append(types.OHLCV{
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	return series
}

func lastBar(series *types.PriceSeries) types.OHLCV {
	bar, _ := series.Last()
	return bar
}

func TestOnBar_ValleyDrivesEntry(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	data := newStubData()
	data.series["RELIANCE"] = valleySeries(t, "RELIANCE", base)
	gw := &captureGateway{}
	e := newTestEngine(testEngineConfig(), data, gw)

	intent, err := e.OnBar(context.Background(), "RELIANCE", lastBar(data.series["RELIANCE"]))
	require.NoError(t, err)
	require.NotNil(t, intent)

	assert.Equal(t, types.SideBuy, intent.Side)
	assert.Equal(t, types.ReasonEntrySignal, intent.Reason)
	// budget min(250000, 1000000*0.25) at close 88, floored to lots of 100.
	assert.InDelta(t, 2800, intent.Quantity, 1e-9)
	require.Len(t, gw.submitted, 1)

	e.HandleFill("RELIANCE", types.Fill{Price: 88, Quantity: intent.Quantity, Timestamp: base.Add(13 * time.Minute)})
	assert.Equal(t, risk.StateOpen, e.risk.Position("RELIANCE").State)
}

func TestOnBar_QuietTapeProducesNothing(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	series := types.NewPriceSeries("RELIANCE", types.GranularityBar)
	for i := 0; i < 13; i++ {
		require.NoError(t, series.Append(types.OHLCV{
			Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	data := newStubData()
	data.series["RELIANCE"] = series
	gw := &captureGateway{}
	e := newTestEngine(testEngineConfig(), data, gw)

	intent, err := e.OnBar(context.Background(), "RELIANCE", lastBar(series))
	require.NoError(t, err)
	assert.Nil(t, intent)
	assert.Empty(t, gw.submitted)
}

func TestOnBar_DataUnavailableSkipsCycle(t *testing.T) {
	data := newStubData()
	data.seriesErr["RELIANCE"] = engineerrors.NewDataUnavailable("datasource", "kline", fmt.Errorf("timeout"))
	gw := &captureGateway{}
	e := newTestEngine(testEngineConfig(), data, gw)

	bar := types.OHLCV{Close: 100, Timestamp: time.Now()}
	intent, err := e.OnBar(context.Background(), "RELIANCE", bar)

	assert.NoError(t, err, "unavailable data is a skip, not a failure")
	assert.Nil(t, intent)
	assert.Empty(t, gw.submitted)
}

func TestOnBar_UnexpectedDataErrorSurfaces(t *testing.T) {
	data := newStubData()
	data.seriesErr["RELIANCE"] = fmt.Errorf("decode failure")
	e := newTestEngine(testEngineConfig(), data, &captureGateway{})

	bar := types.OHLCV{Close: 100, Timestamp: time.Now()}
	_, err := e.OnBar(context.Background(), "RELIANCE", bar)

	require.Error(t, err)
	assert.True(t, engineerrors.Is(err, engineerrors.CategoryInternal))
}

func TestOnBar_ExitCheckedBeforeData(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	data := newStubData()
	data.series["RELIANCE"] = valleySeries(t, "RELIANCE", base)
	gw := &captureGateway{}
	e := newTestEngine(testEngineConfig(), data, gw)

	intent, err := e.OnBar(context.Background(), "RELIANCE", lastBar(data.series["RELIANCE"]))
	require.NoError(t, err)
	require.NotNil(t, intent)
	e.HandleFill("RELIANCE", types.Fill{Price: 88, Quantity: intent.Quantity, Timestamp: base.Add(13 * time.Minute)})

	// History becomes unavailable, but the open position must still react
	// to a close through its stop.
	data.seriesErr["RELIANCE"] = fmt.Errorf("feed down")
	exitBar := types.OHLCV{Close: 83, Timestamp: base.Add(20 * time.Minute)}
	exit, err := e.OnBar(context.Background(), "RELIANCE", exitBar)

	require.NoError(t, err)
	require.NotNil(t, exit)
	assert.Equal(t, types.ReasonStopLoss, exit.Reason)
}

func TestOnTick_MomentumDrivesEntry(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var ticks []types.Tick
	for i := 0; i < 60; i++ {
		ticks = append(ticks, types.Tick{
			Price:     100 + 0.15*float64(i),
			Volume:    10,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	data := newStubData()
	data.ticks["RELIANCE"] = ticks
	gw := &captureGateway{}
	e := newTestEngine(testEngineConfig(), data, gw)

	last := ticks[len(ticks)-1]
	intent, err := e.OnTick(context.Background(), "RELIANCE", last)
	require.NoError(t, err)
	require.NotNil(t, intent)
	assert.Equal(t, types.SideBuy, intent.Side)
	require.Len(t, gw.submitted, 1)
}

func TestSessionWindowBlocksEntries(t *testing.T) {
	// Valley confirmed just after the close: the consensus is fresh but the
	// session guard keeps the account flat.
	base := time.Date(2024, 3, 1, 15, 50, 0, 0, time.UTC)
	data := newStubData()
	data.series["RELIANCE"] = valleySeries(t, "RELIANCE", base)
	gw := &captureGateway{}

	cfg := testEngineConfig()
	cfg.SessionStart, cfg.SessionEnd = "09:15", "15:30"
	e := newTestEngine(cfg, data, gw)

	intent, err := e.OnBar(context.Background(), "RELIANCE", lastBar(data.series["RELIANCE"]))
	require.NoError(t, err)
	assert.Nil(t, intent)
	assert.Empty(t, gw.submitted)
}

func TestSessionWindowStillAllowsExits(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	data := newStubData()
	data.series["RELIANCE"] = valleySeries(t, "RELIANCE", base)
	gw := &captureGateway{}

	cfg := testEngineConfig()
	cfg.SessionStart, cfg.SessionEnd = "09:15", "15:30"
	e := newTestEngine(cfg, data, gw)

	intent, err := e.OnBar(context.Background(), "RELIANCE", lastBar(data.series["RELIANCE"]))
	require.NoError(t, err)
	require.NotNil(t, intent)
	e.HandleFill("RELIANCE", types.Fill{Price: 88, Quantity: intent.Quantity, Timestamp: base.Add(13 * time.Minute)})

	afterClose := types.OHLCV{Close: 83, Timestamp: time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)}
	exit, err := e.OnBar(context.Background(), "RELIANCE", afterClose)
	require.NoError(t, err)
	require.NotNil(t, exit)
	assert.Equal(t, types.ReasonStopLoss, exit.Reason)
}

func TestSubmitFailureRevertsReservation(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	data := newStubData()
	data.series["RELIANCE"] = valleySeries(t, "RELIANCE", base)
	gw := &captureGateway{err: fmt.Errorf("link down")}
	e := newTestEngine(testEngineConfig(), data, gw)

	intent, err := e.OnBar(context.Background(), "RELIANCE", lastBar(data.series["RELIANCE"]))

	require.Error(t, err)
	assert.True(t, engineerrors.Is(err, engineerrors.CategoryFillFailed))
	assert.Nil(t, intent)
	assert.Equal(t, risk.StateFlat, e.risk.Position("RELIANCE").State)
	assert.InDelta(t, 1_000_000, e.risk.Account().Snapshot().AvailableCapital, 1e-9)
}

func TestOnBarBatch_IsolatesFailures(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	data := newStubData()
	data.series["GOOD"] = valleySeries(t, "GOOD", base)
	data.seriesErr["BAD"] = fmt.Errorf("decode failure")
	gw := &captureGateway{}
	e := newTestEngine(testEngineConfig(), data, gw)

	results := e.OnBarBatch(context.Background(), map[string]types.OHLCV{
		"GOOD": lastBar(data.series["GOOD"]),
		"BAD":  {Close: 100, Timestamp: base.Add(12 * time.Minute)},
	})

	require.Len(t, results, 2)
	byInstrument := make(map[string]Result, 2)
	for _, r := range results {
		byInstrument[r.Instrument] = r
	}
	assert.Error(t, byInstrument["BAD"].Err)
	require.NoError(t, byInstrument["GOOD"].Err)
	require.NotNil(t, byInstrument["GOOD"].Intent, "one instrument's failure must not block the other")
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.BarLookback = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.SessionEnd = ""
	assert.Error(t, bad.Validate())

	bad = valid
	bad.SessionStart, bad.SessionEnd = "15:30", "09:15"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.SessionStart = "25:00"
	assert.Error(t, bad.Validate())
}
