package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestNew(t *testing.T) {
	logger, err := New("production", "warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewTemporalLogger_ForwardsKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewTemporalLogger(zap.New(core))

	logger.Info("Checkout stage changed", "attempt_id", "attempt-1", "to", "widget_open")
	logger.Error("Checkout step failed", "step", "order creation")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Checkout stage changed", entries[0].Message)
	assert.Equal(t, "attempt-1", entries[0].ContextMap()["attempt_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "order creation", entries[1].ContextMap()["step"])
}
