package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adityakurhade/finsight/pkg/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache is the ephemeral result store interface. All cache operations go
// through here. Implementations must be safe for concurrent use; writes are
// last-writer-wins per key with no guarantee beyond per-key atomic set.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	SetTaskState(ctx context.Context, state models.TaskState, ttl time.Duration) error
	GetTaskState(ctx context.Context, taskID uuid.UUID) (models.TaskState, bool, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// SetTaskState stores the JSON snapshot for state.TaskID, overwriting any
// previous snapshot for that task.
func (c *RedisCache) SetTaskState(ctx context.Context, state models.TaskState, ttl time.Duration) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal task state: %w", err)
	}
	return c.client.Set(ctx, TaskStateKey(state.TaskID), body, ttl).Err()
}

func (c *RedisCache) GetTaskState(ctx context.Context, taskID uuid.UUID) (models.TaskState, bool, error) {
	val, err := c.client.Get(ctx, TaskStateKey(taskID)).Bytes()
	if err == redis.Nil {
		return models.TaskState{}, false, nil
	}
	if err != nil {
		return models.TaskState{}, false, err
	}

	var state models.TaskState
	if err := json.Unmarshal(val, &state); err != nil {
		return models.TaskState{}, false, fmt.Errorf("unmarshal task state: %w", err)
	}
	return state, true, nil
}
