package quant

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestQuantizeFloor(t *testing.T) {
	got := QuantizeFloor(dec("10.1234"), dec("0.01"))
	if !got.Equal(dec("10.12")) {
		t.Errorf("expected 10.12, got %s", got)
	}

	got = QuantizeFloor(dec("0.999"), dec("0.25"))
	if !got.Equal(dec("0.75")) {
		t.Errorf("expected 0.75, got %s", got)
	}

	// Exact multiple stays put
	got = QuantizeFloor(dec("5"), dec("0.5"))
	if !got.Equal(dec("5")) {
		t.Errorf("expected 5, got %s", got)
	}

	// Zero step is a no-op
	got = QuantizeFloor(dec("1.23456789"), decimal.Zero)
	if !got.Equal(dec("1.23456789")) {
		t.Errorf("expected passthrough, got %s", got)
	}
}

func TestDeviationRatio(t *testing.T) {
	got := DeviationRatio(dec("101.5"), dec("100"))
	if !got.Equal(dec("0.015")) {
		t.Errorf("expected 0.015, got %s", got)
	}

	got = DeviationRatio(dec("97"), dec("100"))
	if !got.Equal(dec("0.03")) {
		t.Errorf("expected 0.03, got %s", got)
	}

	// Zero reference never divides
	got = DeviationRatio(dec("97"), decimal.Zero)
	if !got.IsZero() {
		t.Errorf("expected 0 for zero reference, got %s", got)
	}
}

func TestMinDecimal(t *testing.T) {
	if !MinDecimal(dec("1"), dec("2")).Equal(dec("1")) {
		t.Error("expected 1")
	}
	if !MinDecimal(dec("-3"), dec("2")).Equal(dec("-3")) {
		t.Error("expected -3")
	}
}
