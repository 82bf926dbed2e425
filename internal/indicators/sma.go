package indicators

import (
	"fmt"

	"github.com/minhle2209/tradepulse/internal/errors"
	"github.com/minhle2209/tradepulse/pkg/types"
)

// MovingAverage computes the trailing arithmetic mean of closes over the
// given period. The result is aligned with bars; the first period-1 entries
// are undefined.
func MovingAverage(bars []types.OHLCV, period int) (IndicatorValue, error) {
	if period < 1 {
		return IndicatorValue{}, errors.NewInvalidParameter("indicators",
			fmt.Sprintf("moving average period must be >= 1, got %d", period))
	}

	iv := newIndicatorValue(len(bars))
	sum := 0.0
	for i, bar := range bars {
		sum += bar.Close
		if i >= period {
			sum -= bars[i-period].Close
		}
		if i >= period-1 {
			iv.set(i, sum/float64(period))
		}
	}
	return iv, nil
}
