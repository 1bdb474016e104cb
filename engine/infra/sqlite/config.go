package sqlite

import (
	"time"

	"github.com/repcoach/repcoach/pkg/config"
)

// Config captures SQLite store configuration derived from application settings.
type Config struct {
	// Path is the database location or ":memory:" for in-memory deployments.
	Path string

	// MaxOpenConns controls the pool size exposed by database/sql.
	MaxOpenConns int

	// MaxIdleConns limits idle connections retained in the pool.
	MaxIdleConns int

	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// BusyTimeout configures sqlite busy timeout via PRAGMA busy_timeout.
	BusyTimeout time.Duration
}

func ConfigFromApp(cfg *config.DatabaseConfig) *Config {
	if cfg == nil {
		return &Config{Path: memoryPath}
	}
	return &Config{
		Path:         cfg.Path,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	}
}
