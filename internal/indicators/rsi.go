package indicators

import (
	"fmt"

	"github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/pkg/types"
)

// DefaultRSIPeriod is Wilder's classic lookback.
const DefaultRSIPeriod = 14

// RSI computes Wilder's smoothed relative strength index over closes. The
// result is aligned with bars; the first period entries are undefined.
// Values lie in [0,100]; when the average loss is zero the RSI is 100
// rather than an error.
func RSI(bars []types.OHLCV, period int) (IndicatorValue, error) {
	if period < 1 {
		return IndicatorValue{}, errors.NewInvalidParameter("indicators",
			fmt.Sprintf("rsi period must be >= 1, got %d", period))
	}

	iv := newIndicatorValue(len(bars))
	if len(bars) <= period {
		return iv, nil
	}

	// Seed the averages with the arithmetic mean of the first period changes,
	// then apply Wilder smoothing with factor 1/period.
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := bars[i].Close - bars[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	iv.set(period, rsiFrom(avgGain, avgLoss))

	for i := period + 1; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		iv.set(i, rsiFrom(avgGain, avgLoss))
	}
	return iv, nil
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
