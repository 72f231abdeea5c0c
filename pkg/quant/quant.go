package quant

import (
	"github.com/shopspring/decimal"
)

// QuantizeFloor rounds v down to the nearest multiple of step.
// A zero or negative step returns v unchanged (no venue rule known).
// Negative inputs floor away from zero, which keeps "never exceed the
// requested size" true for order amounts.
func QuantizeFloor(v, step decimal.Decimal) decimal.Decimal {
	if step.Sign() <= 0 {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

// DeviationRatio returns |a - ref| / ref.
// A zero or negative reference returns zero so that callers comparing
// against a tolerance treat a broken reference as "no deviation known".
func DeviationRatio(a, ref decimal.Decimal) decimal.Decimal {
	if ref.Sign() <= 0 {
		return decimal.Zero
	}
	return a.Sub(ref).Abs().Div(ref)
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
