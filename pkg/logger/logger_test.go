package logger

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return logger from context when present", func(t *testing.T) {
		expected := NewLogger(TestConfig())
		ctx := ContextWithLogger(t.Context(), expected)

		actual := FromContext(ctx)

		require.NotNil(t, actual)
		assert.Equal(t, expected, actual)
	})

	t.Run("Should fall back to default logger when context holds another type", func(t *testing.T) {
		ctx := context.WithValue(t.Context(), LoggerCtxKey, "not a logger")

		l := FromContext(ctx)

		require.NotNil(t, l)
		l.Info("fallback message")
	})

	t.Run("Should return default logger for nil context", func(t *testing.T) {
		//nolint:staticcheck // nil context is part of the contract
		l := FromContext(nil)
		require.NotNil(t, l)
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should write text output at info level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: InfoLevel, Output: &buf, TimeFormat: "15:04:05"})

		l.Info("program created", "program_id", "p-1")

		assert.Contains(t, buf.String(), "program created")
		assert.Contains(t, buf.String(), "p-1")
	})

	t.Run("Should emit JSON when enabled", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true, TimeFormat: "15:04:05"})

		l.Info("json message")

		assert.Contains(t, buf.String(), `"msg":"json message"`)
	})

	t.Run("Should carry fields added through With", func(t *testing.T) {
		var buf bytes.Buffer
		base := NewLogger(&Config{Level: InfoLevel, Output: &buf, TimeFormat: "15:04:05"})

		base.With("component", "gateway").Info("sent")

		assert.Contains(t, buf.String(), "component")
		assert.Contains(t, buf.String(), "gateway")
	})
}

func TestLoggerLevels(t *testing.T) {
	t.Run("Should filter messages below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: WarnLevel, Output: &buf, TimeFormat: "15:04:05"})

		l.Debug("debug message")
		l.Info("info message")
		l.Warn("warn message")
		l.Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("Should drop everything when disabled", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewLogger(&Config{Level: DisabledLevel, Output: &buf, TimeFormat: "15:04:05"})

		l.Error("error message")

		assert.Empty(t, buf.String())
	})
}

func TestConfigDefaults(t *testing.T) {
	t.Run("Should provide test configuration that discards output", func(t *testing.T) {
		cfg := TestConfig()
		assert.Equal(t, DisabledLevel, cfg.Level)
		assert.Equal(t, io.Discard, cfg.Output)
	})

	t.Run("Should detect the test binary", func(t *testing.T) {
		assert.True(t, IsTestEnvironment())
	})
}

func TestGetLoggerConfig(t *testing.T) {
	t.Run("Should read logging flags from command", func(t *testing.T) {
		cmd := &cobra.Command{Use: "test"}
		AddFlags(cmd)
		require.NoError(t, cmd.ParseFlags([]string{"--log-level=debug", "--log-json"}))

		level, asJSON, source, err := GetLoggerConfig(cmd)

		require.NoError(t, err)
		assert.Equal(t, "debug", level)
		assert.True(t, asJSON)
		assert.False(t, source)
	})
}
