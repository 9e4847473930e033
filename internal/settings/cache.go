package settings

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// MemoryCache is the single-process cache used when Redis is not configured.
type MemoryCache struct {
	mu         sync.RWMutex
	values     map[string]string
	generation int64
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Load(_ context.Context) (map[string]string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.values == nil {
		return nil, false, nil
	}
	return copyMap(c.values), true, nil
}

func (c *MemoryCache) Generation(_ context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation, nil
}

func (c *MemoryCache) Save(_ context.Context, generation int64, values map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return nil
	}
	c.values = copyMap(values)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.values = nil
	c.generation++
	c.mu.Unlock()
	return nil
}

const (
	redisKey           = "settings:all"
	redisGenerationKey = "settings:generation"
)

// RedisCache shares the settings blob between API instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Load(ctx context.Context) (map[string]string, bool, error) {
	data, err := c.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, false, err
	}
	return values, true, nil
}

func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	return readGeneration(ctx, c.client)
}

// Save writes the blob under WATCH so a concurrent Invalidate aborts it.
func (c *RedisCache) Save(ctx context.Context, generation int64, values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readGeneration(ctx, tx)
		if err != nil {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, data, c.ttl)
			return nil
		})
		return err
	}, redisGenerationKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, redisGenerationKey)
		pipe.Del(ctx, redisKey)
		return nil
	})
	return err
}

func readGeneration(ctx context.Context, r redis.Cmdable) (int64, error) {
	n, err := r.Get(ctx, redisGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
