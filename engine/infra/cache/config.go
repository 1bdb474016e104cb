package cache

import (
	"time"

	"github.com/repcoach/repcoach/pkg/config"
)

const (
	defaultLocalSize = 512
	defaultTTL       = 24 * time.Hour
)

type Config struct {
	// Addr is host:port of the Redis server. Empty disables the shared tier.
	Addr     string
	Password string
	DB       int
	Prefix   string
	PoolSize int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration

	// LocalSize bounds the in-process LRU tier.
	LocalSize int
	TTL       time.Duration
}

// FromAppConfig creates a cache Config from the centralized app configuration.
func FromAppConfig(appConfig *config.Config) *Config {
	return &Config{
		Addr:      appConfig.Redis.Addr,
		Password:  appConfig.Redis.Password.Value(),
		DB:        appConfig.Redis.DB,
		Prefix:    appConfig.Redis.Prefix,
		LocalSize: appConfig.Cache.LocalSize,
		TTL:       appConfig.Cache.TTL,
	}
}

func (c *Config) localSize() int {
	if c.LocalSize > 0 {
		return c.LocalSize
	}
	return defaultLocalSize
}

func (c *Config) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return defaultTTL
}
