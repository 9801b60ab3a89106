package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/sifan077/snaplink/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// ServiceName is attached to every entry as the "service" field.
const ServiceName = "snaplink"

// Config drives how the zap logger is built.
type Config struct {
	Development bool
	Level       string
	Encoding    string
	// Fields are attached to every entry.
	Fields map[string]any
}

// FromApp derives a logger config from the application settings.
func FromApp(app config.AppConfig) Config {
	return Config{
		Development: !app.IsProduction(),
		Level:       app.LogLevel,
		Encoding:    app.LogEncoding,
		Fields: map[string]any{
			"service": ServiceName,
			"env":     app.Env,
		},
	}
}

var (
	mu     sync.RWMutex
	global *zap.Logger
	colors = shouldColorize(os.Stderr)
)

// Init builds a zap logger with the provided config and stores it globally.
func Init(cfg Config) (*zap.Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	if global != nil {
		_ = global.Sync()
	}

	global = l
	return global, nil
}

// L returns the global logger, or a no-op logger before Init.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// Sync flushes the global logger. Errors from syncing a terminal are ignored.
func Sync() error {
	mu.RLock()
	l := global
	mu.RUnlock()

	if l == nil {
		return nil
	}

	if err := l.Sync(); err != nil {
		if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, os.ErrInvalid) {
			return nil
		}
		return err
	}
	return nil
}

// New returns a zap.Logger configured according to cfg.
func New(cfg Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	switch zapCfg.Encoding {
	case "json", "console":
	default:
		return nil, fmt.Errorf("logger: unsupported encoding %q", zapCfg.Encoding)
	}

	zapCfg.EncoderConfig = buildEncoderConfig(zapCfg.Encoding)
	zapCfg.InitialFields = cfg.Fields

	if cfg.Level != "" {
		level, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zapCfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// ParseLevel accepts zap level names in any case.
func ParseLevel(raw string) (zapcore.Level, error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(raw)))); err != nil {
		return level, fmt.Errorf("logger: invalid level %q: %w", raw, err)
	}
	return level, nil
}

func buildEncoderConfig(encoding string) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		MessageKey:       "msg",
		StacktraceKey:    "stack",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " | ",
	}

	if encoding == "console" {
		cfg.EncodeLevel = levelEncoder(colors)
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	} else {
		cfg.ConsoleSeparator = " "
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		cfg.EncodeDuration = zapcore.MillisDurationEncoder
	}

	return cfg
}

func levelEncoder(colorize bool) zapcore.LevelEncoder {
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		label := fmt.Sprintf("%-5s", strings.ToUpper(level.String()))
		if colorize {
			label = levelColor(level) + label + colorReset
		}
		enc.AppendString(label)
	}
}

func shouldColorize(file *os.File) bool {
	if os.Getenv("NO_COLOR") != "" || file == nil {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

const (
	colorReset  = "\x1b[0m"
	colorGreen  = "\x1b[32m"
	colorCyan   = "\x1b[36m"
	colorYellow = "\x1b[33m"
	colorRed    = "\x1b[31m"
)

func levelColor(level zapcore.Level) string {
	switch {
	case level <= zapcore.DebugLevel:
		return colorCyan
	case level == zapcore.InfoLevel:
		return colorGreen
	case level == zapcore.WarnLevel:
		return colorYellow
	default:
		return colorRed
	}
}
