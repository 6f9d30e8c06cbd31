package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which event ids a consumer has already seen.
// Keys expire after a TTL, so the store bounds how long a redelivery can
// be recognised rather than recording history forever.
type IdempotencyStore interface {
	// MarkProcessed records key atomically and reports whether it was new
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	Close() error
}

// DefaultIdempotencyTTL covers the relay's full retry schedule with margin
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyConfig controls consumer-side deduplication
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig enables deduplication with DefaultIdempotencyTTL
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: DefaultIdempotencyTTL, Enabled: true}
}

// WithDefaults fills a zero TTL with DefaultIdempotencyTTL
func (c IdempotencyConfig) WithDefaults() IdempotencyConfig {
	if c.TTL <= 0 {
		c.TTL = DefaultIdempotencyTTL
	}
	return c
}
