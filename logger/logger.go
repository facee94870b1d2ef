// Package logger wraps zap behind a small key/value interface.
package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Interface is the logging surface every package depends on.
type Interface interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	With(fields ...any) Interface
}

// Config selects the level and encoder.
type Config struct {
	Level       string
	Development bool
	// Encoding is "console" or "json". Empty picks console for development
	// and json otherwise.
	Encoding string
}

// Common field keys.
const (
	KeyRunID   = "run_id"
	KeySite    = "site"
	KeyKeyword = "keyword"
	KeyURL     = "url"
	KeyPage    = "page"
	KeyError   = "error"
)

var levels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// Logger implements Interface on top of zap.
type Logger struct {
	zapLogger *zap.Logger
}

// New builds a logger writing to stderr, leaving stdout for results.
func New(cfg Config) (*Logger, error) {
	level, ok := levels[strings.ToLower(cfg.Level)]
	if cfg.Level == "" {
		level, ok = zapcore.InfoLevel, true
	}
	if !ok {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
		if cfg.Development {
			encoding = "console"
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("15:04:05.000"))
		}
		encoderConfig.ConsoleSeparator = " | "
	}

	var encoder zapcore.Encoder
	switch encoding {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log encoding %q", encoding)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return &Logger{zapLogger: zap.New(core, opts...)}, nil
}

// FromZap wraps an existing zap logger. Tests pass an observer core here.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{zapLogger: z}
}

func (l *Logger) Debug(msg string, fields ...any) { l.zapLogger.Debug(msg, toZapFields(fields)...) }
func (l *Logger) Info(msg string, fields ...any)  { l.zapLogger.Info(msg, toZapFields(fields)...) }
func (l *Logger) Warn(msg string, fields ...any)  { l.zapLogger.Warn(msg, toZapFields(fields)...) }
func (l *Logger) Error(msg string, fields ...any) { l.zapLogger.Error(msg, toZapFields(fields)...) }

// With returns a child logger carrying fields on every entry.
func (l *Logger) With(fields ...any) Interface {
	return &Logger{zapLogger: l.zapLogger.With(toZapFields(fields)...)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zapLogger.Sync()
}

// toZapFields turns alternating key/value pairs into zap fields. A zap.Field
// may be passed directly. A dangling key is recorded with a nil value.
func toZapFields(fields []any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields)/2+1)
	for i := 0; i < len(fields); i++ {
		switch f := fields[i].(type) {
		case zap.Field:
			out = append(out, f)
		case string:
			if i+1 >= len(fields) {
				out = append(out, zap.Any(f, nil))
				continue
			}
			if err, ok := fields[i+1].(error); ok {
				out = append(out, zap.NamedError(f, err))
			} else {
				out = append(out, zap.Any(f, fields[i+1]))
			}
			i++
		default:
			out = append(out, zap.Any(fmt.Sprintf("field_%d", i), f))
		}
	}
	return out
}

type nop struct{}

// NewNop returns a logger that discards everything.
func NewNop() Interface { return nop{} }

func (nop) Debug(string, ...any)    {}
func (nop) Info(string, ...any)     {}
func (nop) Warn(string, ...any)     {}
func (nop) Error(string, ...any)    {}
func (n nop) With(...any) Interface { return n }
