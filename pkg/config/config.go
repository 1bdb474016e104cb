package config

import (
	"time"
)

// Config represents the complete configuration for the repcoach service.
type Config struct {
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Database   DatabaseConfig   `koanf:"database"   validate:"required"`
	Redis      RedisConfig      `koanf:"redis"`
	LLM        LLMConfig        `koanf:"llm"        validate:"required"`
	Agent      AgentConfig      `koanf:"agent"      validate:"required"`
	Audit      AuditConfig      `koanf:"audit"`
	Cache      CacheConfig      `koanf:"cache"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	Runtime    RuntimeConfig    `koanf:"runtime"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host        string        `koanf:"host"         validate:"required"        env:"SERVER_HOST"`
	Port        int           `koanf:"port"         validate:"min=1,max=65535" env:"SERVER_PORT"`
	Timeout     time.Duration `koanf:"timeout"                                 env:"SERVER_TIMEOUT"`
	UserHeader  string        `koanf:"user_header"  validate:"required"        env:"SERVER_USER_HEADER"`
	EmailHeader string        `koanf:"email_header"                            env:"SERVER_EMAIL_HEADER"`
}

// DatabaseConfig selects the store driver and its connection settings.
type DatabaseConfig struct {
	Driver       string          `koanf:"driver"         validate:"oneof=postgres sqlite" env:"DB_DRIVER"`
	ConnString   string          `koanf:"conn_string"                                     env:"DB_CONN_STRING"`
	Host         string          `koanf:"host"                                            env:"DB_HOST"`
	Port         string          `koanf:"port"                                            env:"DB_PORT"`
	User         string          `koanf:"user"                                            env:"DB_USER"`
	Password     SensitiveString `koanf:"password"                                        env:"DB_PASSWORD"    sensitive:"true"`
	DBName       string          `koanf:"name"                                            env:"DB_NAME"`
	SSLMode      string          `koanf:"ssl_mode"                                        env:"DB_SSL_MODE"`
	Path         string          `koanf:"path"                                            env:"DB_PATH"`
	MaxOpenConns int             `koanf:"max_open_conns" validate:"min=0"                 env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns int             `koanf:"max_idle_conns" validate:"min=0"                 env:"DB_MAX_IDLE_CONNS"`
	AutoMigrate  bool            `koanf:"auto_migrate"                                    env:"DB_AUTO_MIGRATE"`
}

// RedisConfig configures the shared cache. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string          `koanf:"addr"     env:"REDIS_ADDR"`
	Password SensitiveString `koanf:"password" env:"REDIS_PASSWORD" sensitive:"true"`
	DB       int             `koanf:"db"       env:"REDIS_DB"`
	Prefix   string          `koanf:"prefix"   env:"REDIS_PREFIX"`
}

// LLMConfig contains model provider configuration.
type LLMConfig struct {
	Provider         string          `koanf:"provider"           validate:"oneof=anthropic openai ollama mock" env:"LLM_PROVIDER"`
	Model            string          `koanf:"model"              validate:"required"                          env:"LLM_MODEL"`
	APIKey           SensitiveString `koanf:"api_key"                                                         env:"LLM_API_KEY"            sensitive:"true"`
	BaseURL          string          `koanf:"base_url"                                                        env:"LLM_BASE_URL"`
	MaxTokens        int             `koanf:"max_tokens"         validate:"min=1"                             env:"LLM_MAX_TOKENS"`
	Timeout          time.Duration   `koanf:"timeout"                                                         env:"LLM_TIMEOUT"`
	RetryAttempts    int             `koanf:"retry_attempts"     validate:"min=1,max=10"                      env:"LLM_RETRY_ATTEMPTS"`
	RetryBackoffBase time.Duration   `koanf:"retry_backoff_base"                                              env:"LLM_RETRY_BACKOFF_BASE"`
}

// AgentConfig bounds the tool-calling conversation loop.
type AgentConfig struct {
	ToolCalling    bool `koanf:"tool_calling"    env:"AGENT_TOOL_CALLING"`
	MaxRounds      int  `koanf:"max_rounds"      validate:"min=1,max=20" env:"AGENT_MAX_ROUNDS"`
	RepairAttempts int  `koanf:"repair_attempts" validate:"min=0,max=5"  env:"AGENT_REPAIR_ATTEMPTS"`
}

// AuditConfig controls the per-request model audit log.
type AuditConfig struct {
	Enabled       bool     `koanf:"enabled"        env:"AUDIT_ENABLED"`
	AllowedEmails []string `koanf:"allowed_emails" env:"AUDIT_ALLOWED_EMAILS" validate:"dive,email"`
}

// CacheConfig configures the exercise description cache tiers.
type CacheConfig struct {
	LocalSize int           `koanf:"local_size" validate:"min=1" env:"CACHE_LOCAL_SIZE"`
	TTL       time.Duration `koanf:"ttl"                         env:"CACHE_TTL"`
}

// RateLimitConfig contains per-user chat rate limiting configuration.
type RateLimitConfig struct {
	Limit  int64         `koanf:"limit"  validate:"min=0" env:"RATELIMIT_LIMIT"`
	Period time.Duration `koanf:"period"                  env:"RATELIMIT_PERIOD"`
	Prefix string        `koanf:"prefix"                  env:"RATELIMIT_PREFIX"`
}

// MonitoringConfig controls the Prometheus metrics endpoint.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"`
}

// RuntimeConfig contains process-level settings.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error"          env:"RUNTIME_LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        5173,
			Timeout:     2 * time.Minute,
			UserHeader:  "X-User-ID",
			EmailHeader: "X-User-Email",
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Host:         "localhost",
			Port:         "5432",
			User:         "postgres",
			DBName:       "repcoach",
			SSLMode:      "disable",
			Path:         "repcoach.db",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
			AutoMigrate:  true,
		},
		Redis: RedisConfig{
			Prefix: "repcoach:",
		},
		LLM: LLMConfig{
			Provider:         "anthropic",
			Model:            "claude-sonnet-4-20250514",
			MaxTokens:        16384,
			Timeout:          90 * time.Second,
			RetryAttempts:    3,
			RetryBackoffBase: 400 * time.Millisecond,
		},
		Agent: AgentConfig{
			ToolCalling:    true,
			MaxRounds:      6,
			RepairAttempts: 2,
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		Cache: CacheConfig{
			LocalSize: 512,
			TTL:       24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Limit:  30,
			Period: time.Minute,
			Prefix: "repcoach:ratelimit:",
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
	}
}
