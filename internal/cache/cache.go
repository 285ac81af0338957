package cache

import (
	"context"
	"time"
)

// BytesCache — рекомендательный кэш: промах или ошибка не считаются фатальными,
// источник истины всегда Postgres.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
