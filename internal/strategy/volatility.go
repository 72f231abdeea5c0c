package strategy

import (
	"math"

	"github.com/shopspring/decimal"
)

// Volatility derives a normalized range measure from a mid-price series.
// The most recent interval*windowCount samples are partitioned into
// consecutive sub-windows of interval samples, newest first. Each
// sub-window contributes (max-min)/min and the result is the mean of
// those ratios.
//
// Returns NaN when fewer than one full sub-window of data exists.
// Callers must treat NaN as "unknown", never as "low volatility".
func Volatility(prices []decimal.Decimal, interval, windowCount int) float64 {
	if interval <= 0 || windowCount <= 0 || len(prices) < interval {
		return math.NaN()
	}

	lastIndex := len(prices) - 1
	firstIndex := lastIndex - interval*windowCount
	if firstIndex < 0 {
		firstIndex = 0
	}

	var ratios []float64
	for i := lastIndex; i > firstIndex; i -= interval {
		lo := i - interval + 1
		if lo < 0 {
			lo = 0
		}
		window := prices[lo : i+1]
		if len(window) == 0 {
			break
		}
		ratios = append(ratios, rangeRatio(window))
	}

	if len(ratios) == 0 {
		return math.NaN()
	}

	sum := 0.0
	for _, r := range ratios {
		sum += r
	}
	return sum / float64(len(ratios))
}

func rangeRatio(window []decimal.Decimal) float64 {
	lo, hi := window[0], window[0]
	for _, p := range window[1:] {
		if p.LessThan(lo) {
			lo = p
		}
		if p.GreaterThan(hi) {
			hi = p
		}
	}
	if lo.IsZero() {
		return 0
	}
	return hi.Sub(lo).Div(lo).InexactFloat64()
}
