// Package paper provides an in-memory order gateway for dry runs and
// tests: every submitted intent fills instantly at the latest known price.
package paper

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/pkg/types"
)

// Gateway fills intents at the last price marked for the instrument.
type Gateway struct {
	log zerolog.Logger

	onFill       func(instrument string, fill types.Fill)
	onFillFailed func(instrument string, failure types.FillFailed)

	mu     sync.Mutex
	prices map[string]float64
}

// NewGateway creates an empty paper gateway.
func NewGateway(log zerolog.Logger) *Gateway {
	return &Gateway{
		log:    log.With().Str("component", "paper").Logger(),
		prices: make(map[string]float64),
	}
}

// SetFillHandlers registers the execution confirmation callbacks.
func (g *Gateway) SetFillHandlers(onFill func(string, types.Fill), onFillFailed func(string, types.FillFailed)) {
	g.onFill = onFill
	g.onFillFailed = onFillFailed
}

// MarkPrice records the execution price for subsequent fills.
func (g *Gateway) MarkPrice(instrument string, price float64) {
	g.mu.Lock()
	g.prices[instrument] = price
	g.mu.Unlock()
}

// Submit fills the intent synchronously at the marked price. An intent for
// an instrument without a marked price is rejected through the failure
// handler.
func (g *Gateway) Submit(_ context.Context, intent types.OrderIntent) error {
	g.mu.Lock()
	price, ok := g.prices[intent.Instrument]
	g.mu.Unlock()

	if !ok || price <= 0 {
		if g.onFillFailed != nil {
			g.onFillFailed(intent.Instrument, types.FillFailed{Reason: "no price marked"})
			return nil
		}
		return errors.New(errors.CategoryFillFailed, "paper", "submit", "no price marked")
	}

	g.log.Info().
		Str("instrument", intent.Instrument).
		Str("side", intent.Side.String()).
		Str("reason", string(intent.Reason)).
		Float64("quantity", intent.Quantity).
		Float64("price", price).
		Msg("paper fill")

	if g.onFill != nil {
		g.onFill(intent.Instrument, types.Fill{
			Price:     price,
			Quantity:  intent.Quantity,
			Timestamp: time.Now(),
		})
	}
	return nil
}
