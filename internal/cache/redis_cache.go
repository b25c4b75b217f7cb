package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loyaltyops/notify-dispatch/internal/model"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type outcomeValue struct {
	Success   bool      `json:"success"`
	Provider  string    `json:"provider,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

func (c *RedisCache) StoreOutcome(ctx context.Context, userID int64, channel model.Channel, out model.DeliveryOutcome, sentAt time.Time) error {
	key := fmt.Sprintf("delivery:%d:%s", userID, channel)
	val := outcomeValue{
		Success:   out.Success,
		Provider:  out.Provider,
		MessageID: out.MessageID,
		Error:     out.Error,
		SentAt:    sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}
