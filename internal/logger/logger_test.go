package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestAppLogger_LevelMapping(t *testing.T) {
	l := NewAppLogger(&Config{LogLevel: "warn"})
	assert.Equal(t, zapcore.WarnLevel, l.getLoggerLevel())

	l = NewAppLogger(&Config{LogLevel: "unknown"})
	assert.Equal(t, zapcore.DebugLevel, l.getLoggerLevel())
}

func TestAppLogger_InitLogger(t *testing.T) {
	l := NewAppLogger(&Config{LogLevel: "info", DevMode: true, Encoder: "console"})
	l.InitLogger()

	assert.NotNil(t, l.Logger())
	assert.True(t, l.Logger().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Logger().Core().Enabled(zapcore.DebugLevel))
}
