package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/repcoach/repcoach/pkg/logger"
)

// RedisInterface defines the minimal interface needed by cache operations.
// This allows both real redis.Client and mock implementations to be used.
type RedisInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

type Redis struct {
	client RedisInterface
	config *Config
	once   sync.Once // guarantees idempotent, race-free Close
	ctx    context.Context
}

const fallbackRedisPingTimeout time.Duration = 10 * time.Second

// NewRedis creates a new Redis client with the provided configuration.
func NewRedis(ctx context.Context, cfg *Config) (*Redis, error) {
	log := logger.FromContext(ctx).With("component", "infra_redis")
	ctx = logger.ContextWithLogger(ctx, log)
	if cfg == nil || cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = fallbackRedisPingTimeout
	}
	if err := pingRedis(ctx, client, timeout); err != nil {
		client.Close()
		return nil, err
	}
	log.With("cache_driver", "redis", "addr", cfg.Addr, "db", cfg.DB).Info("Redis connection established")
	return &Redis{client: client, config: cfg, ctx: ctx}, nil
}

// NewRedisFromClient wraps an existing client, e.g. one pointed at miniredis.
func NewRedisFromClient(ctx context.Context, client RedisInterface, cfg *Config) *Redis {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Redis{client: client, config: cfg, ctx: ctx}
}

func pingRedis(ctx context.Context, client RedisInterface, timeout time.Duration) error {
	pingCtx, pingCancel := context.WithTimeout(ctx, timeout)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("pinging Redis server (timeout=%s): %w", timeout, err)
	}
	return nil
}

// Close shuts down the Redis connection.
func (r *Redis) Close() error {
	var err error
	r.once.Do(func() {
		err = r.client.Close()
		if err != nil {
			logger.FromContext(r.ctx).Error("Redis connection close failed", "error", err)
		} else {
			logger.FromContext(r.ctx).Debug("Redis connection closed")
		}
	})
	return err
}

// Client exposes the underlying client for stores that share the connection.
func (r *Redis) Client() RedisInterface { return r.client }

func (r *Redis) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (r *Redis) key(k string) string { return r.config.Prefix + k }

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set implements Cache. Entries expire after the configured TTL.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, r.config.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Cache.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// GetMany returns the values found among keys; misses are absent from the map.
func (r *Redis) GetMany(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.key(k)
	}
	vals, err := r.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}
