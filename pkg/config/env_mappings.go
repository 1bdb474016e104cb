package config

import (
	"reflect"
	"sync"
)

// EnvMapping binds an environment variable to a config path.
type EnvMapping struct {
	EnvVar     string
	ConfigPath string
}

var (
	cachedMappings []EnvMapping
	mappingsOnce   sync.Once
)

// GenerateEnvMappings derives mappings from the env struct tags on Config.
func GenerateEnvMappings() []EnvMapping {
	mappingsOnce.Do(func() {
		cachedMappings = extractMappings(reflect.TypeOf(Config{}), "")
	})
	return cachedMappings
}

func extractMappings(t reflect.Type, prefix string) []EnvMapping {
	var mappings []EnvMapping
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		koanfTag := field.Tag.Get("koanf")
		if koanfTag == "" || koanfTag == "-" {
			continue
		}
		path := koanfTag
		if prefix != "" {
			path = prefix + "." + koanfTag
		}
		if envTag := field.Tag.Get("env"); envTag != "" && envTag != "-" {
			mappings = append(mappings, EnvMapping{EnvVar: envTag, ConfigPath: path})
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			mappings = append(mappings, extractMappings(field.Type, path)...)
		}
	}
	return mappings
}
