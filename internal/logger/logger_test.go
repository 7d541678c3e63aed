package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	assert.True(t, New("debug").Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("info").Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("warn").Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, New("bogus").Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, New("").Desugar().Core().Enabled(zapcore.InfoLevel))
}
