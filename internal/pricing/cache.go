package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a redis-backed read-through cache for resolved group costs. The
// TTL keeps admin price changes made outside this process from sticking for
// long; in-process changes invalidate explicitly.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(addr, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func groupKey(name string) string {
	return "price:group:" + name
}

func (c *Cache) GetGroupCost(ctx context.Context, name string) (int, bool, error) {
	cost, err := c.client.Get(ctx, groupKey(name)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	return cost, true, nil
}

func (c *Cache) SetGroupCost(ctx context.Context, name string, cost int) error {
	return c.client.Set(ctx, groupKey(name), cost, c.ttl).Err()
}

func (c *Cache) InvalidateGroup(ctx context.Context, name string) error {
	return c.client.Del(ctx, groupKey(name)).Err()
}
