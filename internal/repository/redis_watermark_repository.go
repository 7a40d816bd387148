package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/anniversary-reminder/internal/calendar"
)

// RedisWatermarkRepository keeps the watermark under a single Redis key.
type RedisWatermarkRepository struct {
	Client *redis.Client
	Key    string
}

func NewRedisWatermarkRepository(client *redis.Client) *RedisWatermarkRepository {
	return &RedisWatermarkRepository{Client: client, Key: "reminder:watermark:" + DefaultWatermarkName}
}

func (r *RedisWatermarkRepository) Load(ctx context.Context) (calendar.Date, bool, error) {
	val, err := r.Client.Get(ctx, r.Key).Result()
	if errors.Is(err, redis.Nil) {
		return calendar.Date{}, false, nil
	}
	if err != nil {
		return calendar.Date{}, false, err
	}
	day, err := calendar.Parse(val)
	if err != nil {
		return calendar.Date{}, false, fmt.Errorf("watermark %s: %w", r.Key, err)
	}
	return day, true, nil
}

func (r *RedisWatermarkRepository) Save(ctx context.Context, day calendar.Date) error {
	return r.Client.Set(ctx, r.Key, day.String(), 0).Err()
}
