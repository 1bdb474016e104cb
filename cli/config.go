package cli

import (
	"fmt"

	"github.com/repcoach/repcoach/pkg/config"
	"github.com/repcoach/repcoach/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// overrideFlags maps flag names onto configuration paths. Only flags set
// explicitly on the command line take part.
var overrideFlags = []struct {
	name  string
	path  string
	usage string
}{
	{"host", "server.host", "HTTP listen host"},
	{"port", "server.port", "HTTP listen port"},
	{"db-driver", "database.driver", "store driver (postgres, sqlite)"},
	{"db-path", "database.path", "sqlite database file"},
	{"llm-provider", "llm.provider", "model provider (anthropic, openai, ollama, mock)"},
	{"llm-model", "llm.model", "model name"},
}

func addOverrideFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	for _, f := range overrideFlags {
		if f.name == "port" {
			flags.Int(f.name, 0, f.usage)
			continue
		}
		flags.String(f.name, "", f.usage)
	}
}

func collectOverrides(flags *pflag.FlagSet) (map[string]any, error) {
	values := make(map[string]any)
	for _, f := range overrideFlags {
		flag := flags.Lookup(f.name)
		if flag == nil || !flag.Changed {
			continue
		}
		if flag.Value.Type() == "int" {
			v, err := flags.GetInt(f.name)
			if err != nil {
				return nil, fmt.Errorf("failed to get %s flag: %w", f.name, err)
			}
			values[f.path] = v
			continue
		}
		values[f.path] = flag.Value.String()
	}
	return values, nil
}

// SetupGlobalConfig loads the .env file, the YAML file, the environment and
// flag overrides, then installs the config and logger on cmd's context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.AddFlagSet(cmd.PersistentFlags())
	envFile, err := flags.GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
	}
	configFile, err := flags.GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	overrides, err := collectOverrides(flags)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc := config.NewService()
	cfg, err := svc.Load(ctx, config.NewYAMLProvider(configFile), config.NewCLIProvider(overrides))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	if !flags.Changed("log-level") {
		logLevel = cfg.Runtime.LogLevel
	}
	log := logger.SetupLogger(logLevel, logJSON, logSource)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	ctx = config.ContextWithService(ctx, svc)
	cmd.SetContext(ctx)
	log.Debug("Configuration loaded", "config_file", configFile, "environment", cfg.Runtime.Environment)
	return nil
}
