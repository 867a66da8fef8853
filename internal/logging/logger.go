// Package logging wraps zap with the field-chaining surface the services use.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields is a convenience map for structured log fields.
type Fields map[string]interface{}

// Logger is the project logger. All services receive one by injection; there
// is no package-level singleton.
type Logger struct {
	base        *zap.Logger
	atomicLevel zap.AtomicLevel
}

// Entry carries accumulated fields toward a single log call.
type Entry struct {
	logger *Logger
	fields []zap.Field
}

// New builds a JSON-encoded zap logger at the given level. Development
// environments get console encoding instead.
func New(level, environment string) *Logger {
	atomicLevel := zap.NewAtomicLevelAt(parseLevel(level))

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if environment == "development" {
		devCfg := zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(devCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), atomicLevel)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{base: base, atomicLevel: atomicLevel}
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{base: zap.NewNop(), atomicLevel: zap.NewAtomicLevel()}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) SetLevel(level string) {
	l.atomicLevel.SetLevel(parseLevel(level))
}

func (l *Logger) WithField(key string, value interface{}) *Entry {
	return &Entry{logger: l, fields: []zap.Field{zap.Any(key, value)}}
}

func (l *Logger) WithFields(fields Fields) *Entry {
	return &Entry{logger: l, fields: toZapFields(fields)}
}

func (l *Logger) WithError(err error) *Entry {
	return &Entry{logger: l, fields: []zap.Field{zap.Error(err)}}
}

func (l *Logger) Debug(msg string) { l.base.Debug(msg) }
func (l *Logger) Info(msg string)  { l.base.Info(msg) }
func (l *Logger) Warn(msg string)  { l.base.Warn(msg) }
func (l *Logger) Error(msg string) { l.base.Error(msg) }
func (l *Logger) Fatal(msg string) { l.base.Fatal(msg) }

func (l *Logger) Sync() error { return l.base.Sync() }

func (e *Entry) WithField(key string, value interface{}) *Entry {
	return &Entry{logger: e.logger, fields: append(copyFields(e.fields), zap.Any(key, value))}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{logger: e.logger, fields: append(copyFields(e.fields), toZapFields(fields)...)}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{logger: e.logger, fields: append(copyFields(e.fields), zap.Error(err))}
}

func (e *Entry) Debug(msg string) { e.logger.base.With(e.fields...).Debug(msg) }
func (e *Entry) Info(msg string)  { e.logger.base.With(e.fields...).Info(msg) }
func (e *Entry) Warn(msg string)  { e.logger.base.With(e.fields...).Warn(msg) }
func (e *Entry) Error(msg string) { e.logger.base.With(e.fields...).Error(msg) }

func toZapFields(fields Fields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		out = append(out, zap.Any(key, value))
	}
	return out
}

func copyFields(in []zap.Field) []zap.Field {
	out := make([]zap.Field, len(in))
	copy(out, in)
	return out
}
