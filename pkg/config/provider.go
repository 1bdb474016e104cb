package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceCLI     SourceType = "cli"
)

// Source supplies a nested configuration map.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

type yamlProvider struct {
	path string
}

// NewYAMLProvider reads a YAML file. A missing file yields no values.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	if y.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(y.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}
	return filterNilValues(out), nil
}

func (y *yamlProvider) Type() SourceType { return SourceYAML }

func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			result[k] = filterNilValues(nested)
			continue
		}
		result[k] = v
	}
	return result
}

type cliProvider struct {
	values map[string]any
}

// NewCLIProvider wraps flag values already keyed by config path (e.g. "server.port").
func NewCLIProvider(values map[string]any) Source {
	return &cliProvider{values: values}
}

func (c *cliProvider) Load() (map[string]any, error) {
	out := make(map[string]any)
	for path, value := range c.values {
		setNested(out, path, value)
	}
	return out, nil
}

func (c *cliProvider) Type() SourceType { return SourceCLI }

func setNested(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := m
	for i, part := range parts {
		if i == len(parts)-1 {
			current[part] = value
			return
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding values already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}
