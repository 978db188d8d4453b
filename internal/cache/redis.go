package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent from the cache.
var ErrMiss = errors.New("cache: miss")

// Redis is a small JSON key-value cache used to serve published share
// payloads without re-reading object storage.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	return &Redis{client: client}
}

// NewRedisFromClient wraps an existing client; used by tests.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Get(ctx context.Context, key string, out any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal(data, out)
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Client exposes the underlying connection for collaborators that need
// redis primitives beyond get/set, like the rate limiter.
func (r *Redis) Client() *redis.Client {
	return r.client
}
