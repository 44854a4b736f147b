package cache

import (
	"context"
	"fmt"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// TicketKey is the cache key for a single ticket read.
func TicketKey(id uint) string { return fmt.Sprintf("ticket:%d", id) }

// TicketTTL bounds staleness of cached ticket reads; status changes also
// invalidate eagerly via the event path.
const TicketTTL = 5 * time.Minute
