package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResetThrottleRepository limits password-reset issuance per key using
// Redis keys that expire after the window.
type ResetThrottleRepository struct {
	client *redis.Client
	prefix string
}

func NewResetThrottleRepository(client *redis.Client) *ResetThrottleRepository {
	return &ResetThrottleRepository{client: client, prefix: "farmgate:reset-throttle:"}
}

// Allow reports whether key may proceed. The first call in a window claims
// it; later calls in the same window are refused.
func (r *ResetThrottleRepository) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, time.Now().UTC().Format(time.RFC3339), window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim reset throttle: %w", err)
	}
	return ok, nil
}
