package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

type ContextKey string

const LoggerCtxKey ContextKey = "logger"

var (
	defaultLogger Logger
	defaultMu     sync.RWMutex
)

type (
	LogLevel string
	// Logger defines the interface for structured logging
	Logger interface {
		Debug(msg string, keyvals ...any)
		Info(msg string, keyvals ...any)
		Warn(msg string, keyvals ...any)
		Error(msg string, keyvals ...any)
		With(keyvals ...any) Logger
	}

	loggerImpl struct {
		charmLogger *charmlog.Logger
	}
)

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
	NoLevel       LogLevel = ""
)

func (c LogLevel) String() string {
	return string(c)
}

func (c LogLevel) ToCharmlogLevel() charmlog.Level {
	switch c {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return charmlog.Level(1000)
	default:
		return charmlog.InfoLevel
	}
}

func (l *loggerImpl) Debug(msg string, keyvals ...any) {
	l.charmLogger.Debug(msg, keyvals...)
}

func (l *loggerImpl) Info(msg string, keyvals ...any) {
	l.charmLogger.Info(msg, keyvals...)
}

func (l *loggerImpl) Warn(msg string, keyvals ...any) {
	l.charmLogger.Warn(msg, keyvals...)
}

func (l *loggerImpl) Error(msg string, keyvals ...any) {
	l.charmLogger.Error(msg, keyvals...)
}

func (l *loggerImpl) With(keyvals ...any) Logger {
	return &loggerImpl{charmLogger: l.charmLogger.With(keyvals...)}
}

type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stdout,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// TestConfig silences all output.
func TestConfig() *Config {
	return &Config{
		Level:      DisabledLevel,
		Output:     io.Discard,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		if IsTestEnvironment() {
			cfg = TestConfig()
		} else {
			cfg = DefaultConfig()
		}
	}
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	charmLogger := charmlog.NewWithOptions(output, charmlog.Options{
		ReportCaller:    cfg.AddSource,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           cfg.Level.ToCharmlogLevel(),
	})
	if cfg.JSON {
		charmLogger.SetFormatter(charmlog.JSONFormatter)
	} else {
		charmLogger.SetFormatter(charmlog.TextFormatter)
	}
	return &loggerImpl{charmLogger: charmLogger}
}

// NewForTests returns a logger that discards everything.
func NewForTests() Logger {
	return NewLogger(TestConfig())
}

func Init(cfg *Config) Logger {
	l := NewLogger(cfg)
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	return l
}

func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, l)
}

// FromContext returns the logger stored in ctx or the process default.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(LoggerCtxKey).(Logger); ok && l != nil {
			return l
		}
	}
	return GetDefault()
}

func GetDefault() Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// IsTestEnvironment reports whether the binary is a go test binary.
func IsTestEnvironment() bool {
	if len(os.Args) == 0 {
		return false
	}
	bin := os.Args[0]
	if strings.HasSuffix(bin, ".test") || strings.Contains(bin, "/_test/") {
		return true
	}
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "-test.") {
			return true
		}
	}
	return false
}
