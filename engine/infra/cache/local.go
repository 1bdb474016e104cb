package cache

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Local is the in-process LRU tier.
type Local struct {
	lru *expirable.LRU[string, string]
}

func NewLocal(cfg *Config) *Local {
	return &Local{lru: expirable.NewLRU[string, string](cfg.localSize(), nil, cfg.ttl())}
}

func (l *Local) Get(_ context.Context, key string) (string, error) {
	if v, ok := l.lru.Get(key); ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (l *Local) Set(_ context.Context, key, value string) error {
	l.lru.Add(key, value)
	return nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	l.lru.Remove(key)
	return nil
}

func (l *Local) GetMany(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := l.lru.Get(k); ok {
			out[k] = v
		}
	}
	return out, nil
}

func (l *Local) Len() int { return l.lru.Len() }
