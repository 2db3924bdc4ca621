package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("production"))
}

func TestLoggingBeforeInit(t *testing.T) {
	// Init 전에도 패닉 없이 동작해야 함
	assert.NotPanics(t, func() {
		Info("before init", "key", "value")
		L().Info("structured before init")
		Named("test").Debug("named before init")
	})
}
