package logger

import (
	"fmt"

	"github.com/spf13/cobra"
)

func SetupLogger(logLevel string, logJSON, logSource bool) Logger {
	var level LogLevel
	switch logLevel {
	case "debug":
		level = DebugLevel
	case "warn":
		level = WarnLevel
	case "error":
		level = ErrorLevel
	default:
		level = InfoLevel
	}
	return Init(&Config{
		Level:      level,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
}

// AddFlags registers the shared logging flags on cmd.
func AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON")
	cmd.PersistentFlags().Bool("log-source", false, "include caller information in logs")
}

func GetLoggerConfig(cmd *cobra.Command) (string, bool, bool, error) {
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return "", false, false, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	logJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		return "", false, false, fmt.Errorf("failed to get log-json flag: %w", err)
	}
	logSource, err := cmd.Flags().GetBool("log-source")
	if err != nil {
		return "", false, false, fmt.Errorf("failed to get log-source flag: %w", err)
	}
	return logLevel, logJSON, logSource, nil
}
