package cache

import (
	"context"
	"errors"

	"github.com/repcoach/repcoach/pkg/logger"
)

// Cache is a string key/value store with best-effort semantics.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// GetMany returns only the keys that were found.
	GetMany(ctx context.Context, keys []string) (map[string]string, error)
}

var (
	_ Cache = (*Local)(nil)
	_ Cache = (*Redis)(nil)
	_ Cache = (*Tiered)(nil)
)

// Tiered reads the local LRU first, then Redis, and backfills the local tier
// on a remote hit. Remote failures are logged and treated as misses.
type Tiered struct {
	local  *Local
	remote *Redis
}

func NewTiered(local *Local, remote *Redis) *Tiered {
	return &Tiered{local: local, remote: remote}
}

// SetupCache builds the tiered cache. Without a Redis address only the local
// tier is used.
func SetupCache(ctx context.Context, cfg *Config) (*Tiered, error) {
	local := NewLocal(cfg)
	if cfg.Addr == "" {
		logger.FromContext(ctx).Info("Redis not configured; using local cache only")
		return NewTiered(local, nil), nil
	}
	remote, err := NewRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewTiered(local, remote), nil
}

// Redis returns the shared tier, nil when running local-only.
func (t *Tiered) Redis() *Redis { return t.remote }

func (t *Tiered) Get(ctx context.Context, key string) (string, error) {
	if v, err := t.local.Get(ctx, key); err == nil {
		recordLookup(ctx, "local", true)
		return v, nil
	}
	recordLookup(ctx, "local", false)
	if t.remote == nil {
		return "", ErrNotFound
	}
	v, err := t.remote.Get(ctx, key)
	switch {
	case err == nil:
		recordLookup(ctx, "redis", true)
		_ = t.local.Set(ctx, key, v)
		return v, nil
	case errors.Is(err, ErrNotFound):
		recordLookup(ctx, "redis", false)
	default:
		logger.FromContext(ctx).Warn("Redis cache read failed", "key", key, "error", err)
	}
	return "", ErrNotFound
}

func (t *Tiered) Set(ctx context.Context, key, value string) error {
	_ = t.local.Set(ctx, key, value)
	if t.remote == nil {
		return nil
	}
	if err := t.remote.Set(ctx, key, value); err != nil {
		logger.FromContext(ctx).Warn("Redis cache write failed", "key", key, "error", err)
	}
	return nil
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.local.Delete(ctx, key)
	if t.remote == nil {
		return nil
	}
	return t.remote.Delete(ctx, key)
}

func (t *Tiered) GetMany(ctx context.Context, keys []string) (map[string]string, error) {
	found, _ := t.local.GetMany(ctx, keys)
	if t.remote == nil || len(found) == len(keys) {
		return found, nil
	}
	missing := make([]string, 0, len(keys)-len(found))
	for _, k := range keys {
		if _, ok := found[k]; !ok {
			missing = append(missing, k)
		}
	}
	remote, err := t.remote.GetMany(ctx, missing)
	if err != nil {
		logger.FromContext(ctx).Warn("Redis cache read failed", "keys", len(missing), "error", err)
		return found, nil
	}
	for k, v := range remote {
		found[k] = v
		_ = t.local.Set(ctx, k, v)
	}
	return found, nil
}

// Close releases the shared tier.
func (t *Tiered) Close() error {
	if t.remote == nil {
		return nil
	}
	return t.remote.Close()
}
