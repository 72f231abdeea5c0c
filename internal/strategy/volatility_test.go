package strategy

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func decSeries(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func TestVolatility_TooFewSamplesIsUndefined(t *testing.T) {
	got := Volatility(decSeries(100, 101), 5, 3)
	if !math.IsNaN(got) {
		t.Errorf("volatility = %v, want NaN for short series", got)
	}
}

func TestVolatility_EmptySeriesIsUndefined(t *testing.T) {
	if got := Volatility(nil, 5, 3); !math.IsNaN(got) {
		t.Errorf("volatility = %v, want NaN for empty series", got)
	}
}

func TestVolatility_FlatSeriesIsZero(t *testing.T) {
	prices := decSeries(100, 100, 100, 100, 100, 100)
	got := Volatility(prices, 3, 2)
	if got != 0 {
		t.Errorf("volatility = %v, want 0 for flat series", got)
	}
}

func TestVolatility_MeanOfWindowRatios(t *testing.T) {
	// Two full windows of 3 samples. Newest window {104,106,102}:
	// (106-102)/102. Older window {100,110,105}: (110-100)/100.
	prices := decSeries(90, 100, 110, 105, 104, 106, 102)
	got := Volatility(prices, 3, 2)

	want := ((106.0-102.0)/102.0 + (110.0-100.0)/100.0) / 2
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("volatility = %v, want %v", got, want)
	}
}

func TestVolatility_RiseThenFallMatchesHandComputed(t *testing.T) {
	// Strictly increasing then decreasing, exactly window_count
	// intervals of data.
	prices := decSeries(100, 102, 104, 106, 104, 102)
	got := Volatility(prices, 3, 2)

	// Newest window {106,104,102}: 4/102. Older {100,102,104}: 4/100.
	want := (4.0/102.0 + 4.0/100.0) / 2
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("volatility = %v, want %v", got, want)
	}
}

func TestVolatility_PartialOldestWindowStillCounts(t *testing.T) {
	// 5 samples with interval 3: one full newest window and a partial
	// older one.
	prices := decSeries(100, 110, 104, 104, 104)
	got := Volatility(prices, 3, 2)
	if math.IsNaN(got) {
		t.Fatal("expected defined volatility with one full window")
	}
	if got <= 0 {
		t.Errorf("volatility = %v, want > 0", got)
	}
}

func TestVolatility_InvalidParams(t *testing.T) {
	prices := decSeries(100, 101, 102)
	if got := Volatility(prices, 0, 2); !math.IsNaN(got) {
		t.Errorf("interval 0: got %v, want NaN", got)
	}
	if got := Volatility(prices, 2, 0); !math.IsNaN(got) {
		t.Errorf("window count 0: got %v, want NaN", got)
	}
}
