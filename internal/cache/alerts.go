package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AlertRecord captures the last alerted result for a matched pair.
type AlertRecord struct {
	NetMargin float64   `json:"net_margin"`
	Strategy  string    `json:"strategy"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AlertCache remembers the best opportunity already alerted per pair so a
// persisting opportunity is not re-announced on every cycle.
type AlertCache interface {
	Get(ctx context.Context, pairKey string) (*AlertRecord, bool, error)
	Set(ctx context.Context, pairKey string, record AlertRecord) error
	Close() error
}

type redisAlertCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisAlertCache builds a cache keyed by the canonical pair key.
func NewRedisAlertCache(addr, password string, db int, ttl time.Duration, prefix string) (AlertCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 240 * time.Hour
	}
	if prefix == "" {
		prefix = "pair_alert"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisAlertCache{client: client, ttl: ttl, prefix: prefix}, nil
}

func (c *redisAlertCache) key(pairKey string) string {
	return fmt.Sprintf("%s:%s", c.prefix, pairKey)
}

func (c *redisAlertCache) Get(ctx context.Context, pairKey string) (*AlertRecord, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(pairKey)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var record AlertRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

func (c *redisAlertCache) Set(ctx context.Context, pairKey string, record AlertRecord) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(pairKey), payload, c.ttl).Err()
}

func (c *redisAlertCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
