package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatUnits_WholeAmounts(t *testing.T) {
	if got := FormatUnits(10_000_000, 6); got != "10.00" {
		t.Fatalf("expected 10.00, got %s", got)
	}
	if got := FormatUnits(0, 6); got != "0.00" {
		t.Fatalf("expected 0.00, got %s", got)
	}
	if got := FormatUnits(1_500_000, 6); got != "1.50" {
		t.Fatalf("expected 1.50, got %s", got)
	}
}

func TestFormatUnits_FractionalAmounts(t *testing.T) {
	if got := FormatUnits(10_123_456, 6); got != "10.123456" {
		t.Fatalf("expected 10.123456, got %s", got)
	}
	if got := FormatUnits(1, 6); got != "0.000001" {
		t.Fatalf("expected 0.000001, got %s", got)
	}
	if got := FormatUnits(-2_500_000, 6); got != "-2.50" {
		t.Fatalf("expected -2.50, got %s", got)
	}
}

func TestFormatParse_RoundTrip(t *testing.T) {
	cases := []struct {
		raw      int64
		decimals int32
	}{
		{0, 6},
		{1, 6},
		{999_999, 6},
		{10_000_000, 6},
		{10_123_456, 6},
		{123_456_789_012_345, 6},
		{42, 0},
		{1_050, 2},
		{7, 18},
		{-3_141_592, 6},
	}

	for _, tc := range cases {
		formatted := FormatUnits(tc.raw, tc.decimals)
		back, err := ParseUnits(formatted, tc.decimals)
		if err != nil {
			t.Fatalf("parse %q (decimals=%d): %v", formatted, tc.decimals, err)
		}
		if back != tc.raw {
			t.Fatalf("round trip %d -> %q -> %d (decimals=%d)", tc.raw, formatted, back, tc.decimals)
		}
	}
}

func TestParseUnits_RejectsExcessPrecision(t *testing.T) {
	if _, err := ParseUnits("1.2345678", 6); err == nil {
		t.Fatal("expected precision error")
	}
}

func TestParseUnits_RejectsGarbage(t *testing.T) {
	if _, err := ParseUnits("not-a-number", 6); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFiatValue(t *testing.T) {
	rate := decimal.RequireFromString("1.00")
	if got := FiatValue(10_000_000, 6, rate); got != 10 {
		t.Fatalf("expected 10, got %f", got)
	}

	rate = decimal.RequireFromString("0.85")
	if got := FiatValue(10_000_000, 6, rate); got != 8.5 {
		t.Fatalf("expected 8.5, got %f", got)
	}
}
