package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix marks variables mapped by naming convention rather than an explicit env tag.
const envPrefix = "REPCOACH_"

// Service loads and validates configuration.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(cfg *Config) error
	GetSource(key string) SourceType
}

type loader struct {
	koanf     *koanf.Koanf
	validator *validator.Validate
	sources   map[string]SourceType
	mu        sync.RWMutex
}

func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(SensitiveString("")) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

func NewService() Service {
	return &loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
		sources:   make(map[string]SourceType),
	}
}

// Load applies defaults, then sources in order, then the environment.
// Later layers win.
func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.koanf = koanf.New(".")
	l.mu.Lock()
	l.sources = make(map[string]SourceType)
	l.mu.Unlock()
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	l.track(SourceDefault, nil)
	for _, source := range sources {
		if source == nil {
			continue
		}
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	return l.unmarshalAndValidate()
}

func (l *loader) loadSource(source Source) error {
	data, err := source.Load()
	if err != nil {
		return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
	}
	if len(data) == 0 {
		return nil
	}
	before := l.snapshot()
	for key, value := range flattenMap("", data) {
		if err := l.koanf.Set(key, value); err != nil {
			return fmt.Errorf("failed to set key %s from source %s: %w", key, source.Type(), err)
		}
	}
	l.track(source.Type(), before)
	return nil
}

func (l *loader) loadEnvironment() error {
	envToPath := make(map[string]string)
	for _, mapping := range GenerateEnvMappings() {
		envToPath[mapping.EnvVar] = mapping.ConfigPath
	}
	before := l.snapshot()
	if err := l.koanf.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key string, value string) (string, any) {
			if path, ok := envToPath[key]; ok {
				return path, value
			}
			if strings.HasPrefix(key, envPrefix) {
				return transformEnvKey(strings.TrimPrefix(key, envPrefix)), value
			}
			return "", nil
		},
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	l.track(SourceEnv, before)
	return nil
}

// transformEnvKey maps LLM_RETRY_ATTEMPTS to llm.retry_attempts.
func transformEnvKey(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == '_' })
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + "." + strings.Join(parts[1:], "_")
	}
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	var cfg Config
	if err := l.koanf.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (l *loader) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := l.validator.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return validateCustom(cfg)
}

func validateCustom(cfg *Config) error {
	if cfg.Database.Driver == "postgres" && cfg.Database.ConnString == "" {
		if cfg.Database.Host == "" || cfg.Database.Port == "" ||
			cfg.Database.User == "" || cfg.Database.DBName == "" {
			return fmt.Errorf("database configuration incomplete: either conn_string or individual components required")
		}
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		return fmt.Errorf("database path is required for sqlite driver")
	}
	if cfg.RateLimit.Limit > 0 && cfg.RateLimit.Period <= 0 {
		return fmt.Errorf("ratelimit period must be positive when a limit is set")
	}
	return nil
}

func (l *loader) GetSource(key string) SourceType {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if source, ok := l.sources[key]; ok {
		return source
	}
	return SourceDefault
}

func (l *loader) snapshot() map[string]any {
	out := make(map[string]any)
	for _, key := range l.koanf.Keys() {
		out[key] = l.koanf.Get(key)
	}
	return out
}

func (l *loader) track(source SourceType, before map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range l.koanf.Keys() {
		prev, existed := before[key]
		if before == nil || !existed || !reflect.DeepEqual(prev, l.koanf.Get(key)) {
			l.sources[key] = source
		}
	}
}

func flattenMap(prefix string, m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flattenMap(key, nested) {
				result[fk] = fv
			}
			continue
		}
		result[key] = v
	}
	return result
}
