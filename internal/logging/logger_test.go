package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		levelStr string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"invalid", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.levelStr, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.levelStr))
		})
	}
}

func TestLoggerConstruction(t *testing.T) {
	assert.NotNil(t, New("info", "production"))
	assert.NotNil(t, New("debug", "development"))
	assert.NotNil(t, NewNop())
}

func TestSetLevel(t *testing.T) {
	logger := New("info", "production")
	assert.Equal(t, zapcore.InfoLevel, logger.atomicLevel.Level())

	logger.SetLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, logger.atomicLevel.Level())

	logger.SetLevel("error")
	assert.Equal(t, zapcore.ErrorLevel, logger.atomicLevel.Level())
}

func TestEntryChaining(t *testing.T) {
	logger := NewNop()

	entry := logger.WithField("a", 1).
		WithFields(Fields{"b": 2, "c": 3}).
		WithError(fmt.Errorf("boom"))

	assert.Len(t, entry.fields, 4)

	// Chained entries do not mutate their parent.
	base := logger.WithField("a", 1)
	_ = base.WithField("b", 2)
	assert.Len(t, base.fields, 1)
}
