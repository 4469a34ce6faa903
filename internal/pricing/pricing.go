package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrRateUnavailable indicates no exchange rate could be produced for the
// requested pair. Callers treat this as non-fatal and omit fiat values.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Source quotes exchange rates for currency pairs such as "USDC/USD".
type Source interface {
	Rate(ctx context.Context, pair string) (decimal.Decimal, error)
}

// StaticSource serves rates from a fixed table. It backs development and
// stablecoin deployments where the peg is configured rather than quoted.
type StaticSource struct {
	rates map[string]decimal.Decimal
}

// NewStaticSource builds a source from a pair -> rate table.
func NewStaticSource(rates map[string]decimal.Decimal) *StaticSource {
	table := make(map[string]decimal.Decimal, len(rates))
	for pair, rate := range rates {
		table[strings.ToUpper(pair)] = rate
	}
	return &StaticSource{rates: table}
}

// Rate returns the configured rate for the pair.
func (s *StaticSource) Rate(_ context.Context, pair string) (decimal.Decimal, error) {
	rate, ok := s.rates[strings.ToUpper(pair)]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no rate for %s", ErrRateUnavailable, pair)
	}
	return rate, nil
}

// ParseRates decodes a comma separated "PAIR=rate" list, the format used by
// the EXCHANGE_RATES environment variable.
func ParseRates(s string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pair, value, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("invalid rate entry %q", entry)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", pair, err)
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("rate for %s must be positive", pair)
		}
		rates[strings.ToUpper(strings.TrimSpace(pair))] = rate
	}
	return rates, nil
}
