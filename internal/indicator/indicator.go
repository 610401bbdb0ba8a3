// Package indicator computes technical indicators over float64 price series
// and the signal helpers used to turn them into entry/exit arrays.
//
// Every indicator returns a slice the same length as its input. Positions
// without enough history hold NaN, and any comparison against NaN is false,
// so warm-up bars never produce a signal.
package indicator

import "math"

// RSI computes the relative strength index with Wilder smoothing. The first
// average gain/loss is the simple mean of the first window changes, matching
// TA-Lib. Windows below 2 yield an all-NaN series.
func RSI(close []float64, window int) []float64 {
	out := nanSeries(len(close))
	if window < 2 || len(close) <= window {
		return out
	}

	var gain, loss float64
	for i := 1; i <= window; i++ {
		change := close[i] - close[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	n := float64(window)
	gain /= n
	loss /= n
	out[window] = rsiValue(gain, loss)

	for i := window + 1; i < len(close); i++ {
		change := close[i] - close[i-1]
		var g, l float64
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		gain = (gain*(n-1) + g) / n
		loss = (loss*(n-1) + l) / n
		out[i] = rsiValue(gain, loss)
	}
	return out
}

func rsiValue(gain, loss float64) float64 {
	if gain+loss == 0 {
		return 0
	}
	return 100 * gain / (gain + loss)
}

// SMA computes the simple moving average over window bars.
func SMA(close []float64, window int) []float64 {
	out := nanSeries(len(close))
	if window < 1 || len(close) < window {
		return out
	}
	var sum float64
	for i, v := range close {
		sum += v
		if i >= window {
			sum -= close[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// FShift shifts a signal series forward by n bars, filling the vacated head
// with false. A signal computed from data up to bar t therefore only becomes
// actionable at bar t+n.
func FShift(signal []bool, n int) []bool {
	out := make([]bool, len(signal))
	if n < 0 {
		n = 0
	}
	for i := n; i < len(signal); i++ {
		out[i] = signal[i-n]
	}
	return out
}

// Cache memoizes one indicator per window so a parameter sweep computes each
// distinct window only once.
type Cache struct {
	close []float64
	fn    func([]float64, int) []float64
	byWin map[int][]float64
}

// NewCache creates a Cache applying fn to close.
func NewCache(close []float64, fn func([]float64, int) []float64) *Cache {
	return &Cache{close: close, fn: fn, byWin: make(map[int][]float64)}
}

// Get returns fn(close, window), computing it on first use.
func (c *Cache) Get(window int) []float64 {
	if s, ok := c.byWin[window]; ok {
		return s
	}
	s := c.fn(c.close, window)
	c.byWin[window] = s
	return s
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
