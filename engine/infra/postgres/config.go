package postgres

import (
	"fmt"
	"net/url"
	"time"

	"github.com/repcoach/repcoach/pkg/config"
)

// Config holds PostgreSQL connection settings for the driver.
// Prefer providing a DSN via ConnString. When empty, a DSN will be
// synthesized from the individual fields.
type Config struct {
	ConnString         string
	Host               string
	Port               string
	User               string
	Password           string
	DBName             string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	PingTimeout        time.Duration
	HealthCheckTimeout time.Duration
}

// ConfigFromApp maps the application database section onto the driver config.
func ConfigFromApp(cfg *config.DatabaseConfig) *Config {
	if cfg == nil {
		return &Config{}
	}
	return &Config{
		ConnString:   cfg.ConnString,
		Host:         cfg.Host,
		Port:         cfg.Port,
		User:         cfg.User,
		Password:     cfg.Password.Value(),
		DBName:       cfg.DBName,
		SSLMode:      cfg.SSLMode,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	}
}

// DSN returns the connection string used by both the pool and migrations.
func (c *Config) DSN() string { return dsn(c) }

func dsn(cfg *Config) string {
	if cfg.ConnString != "" {
		return cfg.ConnString
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}
