package pricing

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const rateKeyPrefix = "rate:v1:"

// CachedSource layers a Redis cache over another rate source so repeated
// balance reads do not hammer the upstream quote provider. Cache failures
// fall through to the wrapped source.
type CachedSource struct {
	next   Source
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedSource wraps next with a Redis cache.
func NewCachedSource(next Source, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedSource {
	return &CachedSource{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Rate returns the cached rate for the pair, consulting the wrapped source on
// a miss.
func (s *CachedSource) Rate(ctx context.Context, pair string) (decimal.Decimal, error) {
	key := rateKeyPrefix + pair

	cached, err := s.cache.Get(ctx, key).Result()
	if err == nil {
		if rate, parseErr := decimal.NewFromString(cached); parseErr == nil {
			return rate, nil
		}
		s.logger.Warn("discarding malformed cached rate", "pair", pair, "value", cached)
	} else if err != redis.Nil {
		s.logger.Warn("rate cache lookup failed", "pair", pair, "error", err)
	}

	rate, err := s.next.Rate(ctx, pair)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if err := s.cache.Set(ctx, key, rate.String(), s.ttl).Err(); err != nil {
		s.logger.Warn("rate cache store failed", "pair", pair, "error", err)
	}
	return rate, nil
}
