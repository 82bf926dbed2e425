// Package indicators provides stateless rolling-window transforms over a
// price series. All functions are pure: safe to share across instruments
// and goroutines.
package indicators

// IndicatorValue is a sequence aligned one-to-one with the bars of the
// series it was computed from. Positions inside the warm-up window are
// explicitly undefined rather than holding a sentinel value; consumers must
// treat undefined as "no signal possible yet".
type IndicatorValue struct {
	values  []float64
	defined []bool
}

func newIndicatorValue(n int) IndicatorValue {
	return IndicatorValue{
		values:  make([]float64, n),
		defined: make([]bool, n),
	}
}

func (iv *IndicatorValue) set(i int, v float64) {
	iv.values[i] = v
	iv.defined[i] = true
}

// Len returns the length of the sequence.
func (iv IndicatorValue) Len() int {
	return len(iv.values)
}

// At returns the value at index i and whether it is defined.
func (iv IndicatorValue) At(i int) (float64, bool) {
	if i < 0 || i >= len(iv.values) || !iv.defined[i] {
		return 0, false
	}
	return iv.values[i], true
}

// Defined reports whether index i is past the warm-up window.
func (iv IndicatorValue) Defined(i int) bool {
	return i >= 0 && i < len(iv.defined) && iv.defined[i]
}

// Last returns the most recent value and whether it is defined.
func (iv IndicatorValue) Last() (float64, bool) {
	return iv.At(len(iv.values) - 1)
}
