package monitoring

import (
	"fmt"
	"strings"

	"github.com/repcoach/repcoach/pkg/config"
)

// Config holds configuration for monitoring service
type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path"    yaml:"path"    mapstructure:"path"`
}

// DefaultConfig returns default monitoring configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		Path:    "/metrics",
	}
}

// FromAppConfig derives the monitoring settings from the loaded application config.
func FromAppConfig(cfg *config.MonitoringConfig) *Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	out.Enabled = cfg.Enabled
	if cfg.Path != "" {
		out.Path = cfg.Path
	}
	return out
}

// Validate validates the monitoring configuration
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("monitoring path cannot be empty")
	}
	if c.Path[0] != '/' {
		return fmt.Errorf("monitoring path must start with '/': got %s", c.Path)
	}
	if strings.HasPrefix(c.Path, "/api/") {
		return fmt.Errorf("monitoring path cannot be under /api/")
	}
	if strings.ContainsRune(c.Path, '?') {
		return fmt.Errorf("monitoring path cannot contain query parameters")
	}
	return nil
}
