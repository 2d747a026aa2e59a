package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-sales-stats/internal/resilience"
)

// RedisProbe pings the client.
func RedisProbe(c redis.UniversalClient) Probe {
	return func(ctx context.Context) error {
		return c.Ping(ctx).Err()
	}
}

// BreakerProbe fails while the breaker refuses outbound calls.
func BreakerProbe(b *resilience.Breaker) Probe {
	return func(context.Context) error {
		if s := b.State(); s == resilience.Open {
			return fmt.Errorf("circuit %s", s)
		}
		return nil
	}
}
