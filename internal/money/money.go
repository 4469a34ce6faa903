package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// minDisplayPlaces is the smallest number of decimal places a formatted amount
// carries, so "10" renders as "10.00" regardless of token precision.
const minDisplayPlaces = 2

// FormatUnits renders a raw base-unit amount as a human readable decimal
// string. The representation is exact: ParseUnits with the same precision
// recovers the original raw amount.
func FormatUnits(raw int64, decimals int32) string {
	d := decimal.New(raw, -decimals)

	places := decimals
	if places < minDisplayPlaces {
		places = minDisplayPlaces
	}
	for places > minDisplayPlaces && d.Round(places-1).Equal(d) {
		places--
	}
	return d.StringFixed(places)
}

// ParseUnits converts a formatted decimal string back into raw base units.
// It fails if the value carries more precision than the token supports or
// overflows int64.
func ParseUnits(formatted string, decimals int32) (int64, error) {
	d, err := decimal.NewFromString(formatted)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", formatted, err)
	}

	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q exceeds %d decimal places", formatted, decimals)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q overflows base units", formatted)
	}
	return scaled.IntPart(), nil
}

// FiatValue converts a raw base-unit amount into a fiat estimate using the
// supplied exchange rate.
func FiatValue(raw int64, decimals int32, rate decimal.Decimal) float64 {
	v, _ := decimal.New(raw, -decimals).Mul(rate).Float64()
	return v
}
