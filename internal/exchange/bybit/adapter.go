package bybit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/pkg/types"
)

// AdapterConfig wires the adapter to one market segment.
type AdapterConfig struct {
	Category   string        // "spot", "linear"
	Interval   KlineInterval // bar interval served as GranularityBar
	TickRetain time.Duration // rolling tick history kept per instrument
	Retry      RetryConfig
}

// DefaultAdapterConfig returns the standard spot wiring.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Category:   "spot",
		Interval:   Interval1m,
		TickRetain: 5 * time.Minute,
		Retry:      DefaultRetryConfig(),
	}
}

// Adapter implements the engine's DataSource and OrderGateway over the
// Bybit REST API. The tick window is built from ticker polls: every
// PollTick appends the latest traded price to a rolling in-memory buffer.
type Adapter struct {
	client *Client
	cfg    AdapterConfig
	log    zerolog.Logger

	onFill       func(instrument string, fill types.Fill)
	onFillFailed func(instrument string, failure types.FillFailed)

	mu    sync.Mutex
	ticks map[string][]types.Tick
}

// NewAdapter creates an adapter over the given client.
func NewAdapter(client *Client, cfg AdapterConfig, log zerolog.Logger) *Adapter {
	return &Adapter{
		client: client,
		cfg:    cfg,
		log:    log.With().Str("component", "bybit").Logger(),
		ticks:  make(map[string][]types.Tick),
	}
}

// SetFillHandlers registers the execution confirmation callbacks. Must be
// called before Submit.
func (a *Adapter) SetFillHandlers(onFill func(string, types.Fill), onFillFailed func(string, types.FillFailed)) {
	a.onFill = onFill
	a.onFillFailed = onFillFailed
}

// GetPriceSeries fetches bar history and returns it oldest first. Fetch
// failures map to DATA_UNAVAILABLE so the engine skips the instrument for
// the cycle.
func (a *Adapter) GetPriceSeries(ctx context.Context, instrument string, granularity types.Granularity, lookback int) (*types.PriceSeries, error) {
	var klines []Kline
	err := Retry(ctx, a.cfg.Retry, func() error {
		var err error
		klines, err = a.client.GetKlines(ctx, KlineParams{
			Category: a.cfg.Category,
			Symbol:   instrument,
			Interval: a.cfg.Interval,
			Limit:    lookback,
		})
		return err
	})
	if err != nil {
		return nil, errors.NewDataUnavailable("bybit", "get_klines", err)
	}

	series := types.NewPriceSeries(instrument, granularity)
	for _, k := range klines {
		bar := types.OHLCV{
			Open:      k.OpenPrice,
			High:      k.HighPrice,
			Low:       k.LowPrice,
			Close:     k.ClosePrice,
			Volume:    k.Volume,
			Timestamp: k.StartTime,
		}
		if err := series.Append(bar); err != nil {
			return nil, errors.NewDataUnavailable("bybit", "get_klines", err)
		}
	}
	return series, nil
}

// PollTick fetches the latest traded price, records it in the rolling tick
// buffer and returns it as the event tick.
func (a *Adapter) PollTick(ctx context.Context, instrument string) (types.Tick, error) {
	var price float64
	err := Retry(ctx, a.cfg.Retry, func() error {
		var err error
		price, err = a.client.GetLatestPrice(ctx, a.cfg.Category, instrument)
		return err
	})
	if err != nil {
		return types.Tick{}, errors.NewDataUnavailable("bybit", "get_ticker", err)
	}

	tick := types.Tick{Price: price, Volume: 1, Timestamp: time.Now()}

	a.mu.Lock()
	buf := append(a.ticks[instrument], tick)
	cutoff := tick.Timestamp.Add(-a.cfg.TickRetain)
	for len(buf) > 0 && buf[0].Timestamp.Before(cutoff) {
		buf = buf[1:]
	}
	a.ticks[instrument] = buf
	a.mu.Unlock()

	return tick, nil
}

// GetTickWindow serves the rolling buffer filled by PollTick. An empty
// window is valid: the tick detector stays silent on it.
func (a *Adapter) GetTickWindow(_ context.Context, instrument string, lookback time.Duration) ([]types.Tick, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := a.ticks[instrument]
	cutoff := time.Now().Add(-lookback)
	start := 0
	for start < len(buf) && buf[start].Timestamp.Before(cutoff) {
		start++
	}
	out := make([]types.Tick, len(buf)-start)
	copy(out, buf[start:])
	return out, nil
}

// Submit places the intent as a market order. A transport or API failure
// is returned to the caller; a placed order is confirmed through the fill
// handler at the last polled price, since the placement response carries
// no execution price.
func (a *Adapter) Submit(ctx context.Context, intent types.OrderIntent) error {
	side := OrderSideBuy
	if intent.Side == types.SideSell {
		side = OrderSideSell
	}
	qty := strconv.FormatFloat(intent.Quantity, 'f', -1, 64)

	order, err := a.client.PlaceMarketOrder(ctx, a.cfg.Category, intent.Instrument, side, qty)
	if err != nil {
		return errors.Wrap(err, errors.CategoryFillFailed, "bybit", "place_order")
	}

	price, err := a.client.GetLatestPrice(ctx, a.cfg.Category, intent.Instrument)
	if err != nil {
		price = a.lastBufferedPrice(intent.Instrument)
	}
	if price <= 0 {
		if a.onFillFailed != nil {
			a.onFillFailed(intent.Instrument, types.FillFailed{Reason: "no execution price available"})
		}
		return nil
	}

	a.log.Info().
		Str("instrument", intent.Instrument).
		Str("order_id", order.OrderID).
		Str("side", string(side)).
		Float64("quantity", intent.Quantity).
		Float64("price", price).
		Msg("market order placed")

	if a.onFill != nil {
		a.onFill(intent.Instrument, types.Fill{
			Price:     price,
			Quantity:  intent.Quantity,
			Timestamp: time.Now(),
		})
	}
	return nil
}

func (a *Adapter) lastBufferedPrice(instrument string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf := a.ticks[instrument]
	if len(buf) == 0 {
		return 0
	}
	return buf[len(buf)-1].Price
}
