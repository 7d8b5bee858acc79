package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const watermarkKeyPrefix = "feed:watermark:"

// WatermarkStore persists the per-user read watermark as a unix-millisecond
// value. A user that has never read anything yields the zero time.
type WatermarkStore struct {
	provider *RedisProvider
}

func NewWatermarkStore(provider *RedisProvider) *WatermarkStore {
	return &WatermarkStore{provider: provider}
}

func (s *WatermarkStore) Read(ctx context.Context, userID string) (time.Time, error) {
	val, err := s.provider.Get(ctx, watermarkKeyPrefix+userID).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read watermark: %w", err)
	}
	millis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed watermark value %q: %w", val, err)
	}
	return time.UnixMilli(millis).UTC(), nil
}

func (s *WatermarkStore) Write(ctx context.Context, userID string, t time.Time) error {
	key := watermarkKeyPrefix + userID
	if err := s.provider.Set(ctx, key, strconv.FormatInt(t.UnixMilli(), 10)).Err(); err != nil {
		return fmt.Errorf("failed to write watermark: %w", err)
	}
	return nil
}
